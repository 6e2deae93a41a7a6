package simulate

import (
	"context"
	"sync"

	"ammpool/internal/model"
)

// eventBuffer numbers events in emission order and holds them until the
// runner flushes a batch to storage.
type eventBuffer struct {
	mu      sync.Mutex
	seq     uint64
	pending []model.PoolEvent
}

func (b *eventBuffer) HandleEvent(_ context.Context, event model.PoolEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	event.Seq = b.seq
	b.pending = append(b.pending, event)
	return nil
}

func (b *eventBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// take removes and returns every pending event.
func (b *eventBuffer) take() []model.PoolEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out
}

// requeue puts events back in front of anything emitted since take.
func (b *eventBuffer) requeue(events []model.PoolEvent) {
	if len(events) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(append(make([]model.PoolEvent, 0, len(events)+len(b.pending)), events...), b.pending...)
}

func (b *eventBuffer) seqValue() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
