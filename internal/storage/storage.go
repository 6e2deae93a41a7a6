package storage

import (
	"context"
	"errors"

	"ammpool/internal/model"
)

// Storage defines a sink for pool events.
type Storage interface {
	PutEventBatch(ctx context.Context, events []model.PoolEvent) error
}

// SnapshotStore persists the final state of pools.
type SnapshotStore interface {
	PutSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error
}

// Multi writes every batch to each backend in order.
type Multi []Storage

func (m Multi) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.PutEventBatch(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
