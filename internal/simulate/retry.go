package simulate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultRetryBackoff = 100 * time.Millisecond

// storeWithRetry runs a storage write, doubling the backoff after each failed
// attempt. Every failed attempt counts toward FlushErrors.
func (r *Runner) storeWithRetry(ctx context.Context, target string, size int, write func(context.Context) error) error {
	maxRetries := r.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := r.cfg.RetryBackoff
	if delay <= 0 {
		delay = defaultRetryBackoff
	}

	for attempt := 1; ; attempt++ {
		err := write(ctx)
		if err == nil {
			return nil
		}
		if r.metrics != nil {
			r.metrics.FlushErrors.Inc()
		}
		r.logger.Warn("storage write failed",
			zap.String("target", target),
			zap.Int("items", size),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt > maxRetries {
			return fmt.Errorf("%s after %d attempts: %w", target, attempt, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
