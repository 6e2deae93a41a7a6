package simulate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"ammpool/internal/ledger"
	"ammpool/internal/metrics"
	"ammpool/internal/model"
	"ammpool/internal/pool"
	"ammpool/internal/registry"
	"ammpool/internal/storage"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrUnknownOperation = errors.New("unknown operation")
	ErrPoolNotFound     = errors.New("pool not found")
)

// RunConfig holds runtime settings for a simulation.
type RunConfig struct {
	Registry     registry.Config
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
	FailFast     bool
}

// ResultWriter receives one OperationResult per scenario line.
type ResultWriter interface {
	Write(value interface{}) error
}

// Summary counts scenario lines by outcome.
type Summary struct {
	Total    int
	Applied  int
	Reverted int
	Events   uint64
}

// Runner replays scenario operations against in-memory pools and ledgers.
type Runner struct {
	cfg       RunConfig
	registry  *registry.Registry
	book      *ledger.Book
	events    *eventBuffer
	storage   storage.Storage
	snapshots []storage.SnapshotStore
	results   ResultWriter
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// Option customises a Runner.
type Option func(*Runner)

func WithStorage(s storage.Storage) Option {
	return func(r *Runner) { r.storage = s }
}

func WithSnapshotStores(stores ...storage.SnapshotStore) Option {
	return func(r *Runner) { r.snapshots = append(r.snapshots, stores...) }
}

func WithResults(w ResultWriter) Option {
	return func(r *Runner) { r.results = w }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithBook(b *ledger.Book) Option {
	return func(r *Runner) { r.book = b }
}

// NewRunner builds a Runner and the registry it drives.
func NewRunner(cfg RunConfig, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	r := &Runner{
		cfg:    cfg,
		events: &eventBuffer{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.book == nil {
		r.book = ledger.NewBook()
	}

	sinks := pool.Sinks{r.events}
	if r.metrics != nil {
		sinks = append(sinks, r.metrics)
	}
	reg, err := registry.New(cfg.Registry, sinks, logger)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	r.registry = reg
	return r, nil
}

func (r *Runner) Registry() *registry.Registry { return r.registry }
func (r *Runner) Book() *ledger.Book           { return r.book }

// Run applies every JSONL operation read from in, then flushes events and
// writes final snapshots.
func (r *Runner) Run(ctx context.Context, in io.Reader) (Summary, error) {
	var summary Summary

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}
		summary.Total++

		var op model.Operation
		var result model.OperationResult
		var opErr error
		started := time.Now()
		if err := json.Unmarshal(line, &op); err != nil {
			opErr = fmt.Errorf("%w: %v", ErrInvalidOperation, err)
			result = model.OperationResult{Op: op.Op}
		} else {
			result, opErr = r.Apply(ctx, op)
		}
		result.Line = lineNo
		if r.metrics != nil {
			r.metrics.ObserveOperation(op.Op, opErr, time.Since(started))
		}

		if opErr != nil {
			summary.Reverted++
			result.Error = opErr.Error()
			r.logger.Warn("operation reverted", zap.Int("line", lineNo), zap.String("op", op.Op), zap.Error(opErr))
		} else {
			summary.Applied++
		}
		if r.results != nil {
			if err := r.results.Write(result); err != nil {
				return summary, fmt.Errorf("write result: %w", err)
			}
		}
		if opErr != nil && r.cfg.FailFast {
			if err := r.Finish(ctx); err != nil {
				r.logger.Warn("finish after failure", zap.Error(err))
			}
			return summary, fmt.Errorf("line %d: %w", lineNo, opErr)
		}

		if r.events.Len() >= r.cfg.BatchSize {
			if err := r.Flush(ctx); err != nil {
				return summary, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}

	if err := r.Finish(ctx); err != nil {
		return summary, err
	}
	summary.Events = r.events.seqValue()

	r.logger.Info("simulation complete",
		zap.Int("total", summary.Total),
		zap.Int("applied", summary.Applied),
		zap.Int("reverted", summary.Reverted),
		zap.Uint64("events", summary.Events),
		zap.Int("pools", r.registry.PoolCount()),
	)
	return summary, nil
}

// Flush writes pending events to storage, retrying with exponential backoff.
// Events stay buffered when every attempt fails.
func (r *Runner) Flush(ctx context.Context) error {
	if r.storage == nil {
		r.events.take()
		return nil
	}
	batch := r.events.take()
	if len(batch) == 0 {
		return nil
	}
	if err := r.storeWithRetry(ctx, "events", len(batch), func(ctx context.Context) error {
		return r.storage.PutEventBatch(ctx, batch)
	}); err != nil {
		r.events.requeue(batch)
		return fmt.Errorf("store %w", err)
	}
	r.logger.Debug("event batch stored", zap.Int("events", len(batch)), zap.Uint64("last_seq", batch[len(batch)-1].Seq))
	return nil
}

// Finish flushes remaining events and writes snapshots of every pool.
func (r *Runner) Finish(ctx context.Context) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	if len(r.snapshots) == 0 {
		return nil
	}
	snaps := r.registry.Snapshots()
	for _, store := range r.snapshots {
		if err := r.storeWithRetry(ctx, "snapshots", len(snaps), func(ctx context.Context) error {
			return store.PutSnapshots(ctx, snaps)
		}); err != nil {
			return fmt.Errorf("store %w", err)
		}
	}
	r.logger.Info("snapshots stored", zap.Int("pools", len(snaps)))
	return nil
}
