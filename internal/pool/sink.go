package pool

import (
	"context"
	"errors"

	"ammpool/internal/model"
)

// EventSink receives events while the emitting pool still holds its
// operation lock, so events from one pool arrive in commit order. Sink errors
// are logged and never revert the operation. A sink that calls back into the
// pool must pass along the context it was given; see Asset.
type EventSink interface {
	HandleEvent(ctx context.Context, event model.PoolEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event model.PoolEvent) error

func (f EventSinkFunc) HandleEvent(ctx context.Context, event model.PoolEvent) error {
	return f(ctx, event)
}

// Sinks fans an event out to every non-nil sink.
type Sinks []EventSink

func (s Sinks) HandleEvent(ctx context.Context, event model.PoolEvent) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.HandleEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
