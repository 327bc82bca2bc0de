package emit

import (
	"context"
	"sync"
)

// BufferedEmitter accumulates events in memory and forwards them to an
// inner Emitter only on Flush, trading real-time delivery for fewer,
// batched calls into the inner backend.
type BufferedEmitter struct {
	inner Emitter

	mu     sync.Mutex
	buffer []Event
	cap    int
}

// NewBufferedEmitter wraps inner, auto-flushing once buffer length
// reaches capacity (0 means unbounded until an explicit Flush).
func NewBufferedEmitter(inner Emitter, capacity int) *BufferedEmitter {
	return &BufferedEmitter{inner: inner, cap: capacity}
}

func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	b.buffer = append(b.buffer, event)
	full := b.cap > 0 && len(b.buffer) >= b.cap
	b.mu.Unlock()
	if full {
		_ = b.Flush(context.Background())
	}
}

func (b *BufferedEmitter) EmitBatch(ctx context.Context, events []Event) error {
	b.mu.Lock()
	b.buffer = append(b.buffer, events...)
	b.mu.Unlock()
	return nil
}

// Flush drains the buffer into the inner emitter's EmitBatch.
func (b *BufferedEmitter) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.buffer
	b.buffer = nil
	b.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	if err := b.inner.EmitBatch(ctx, pending); err != nil {
		return err
	}
	return b.inner.Flush(ctx)
}

// Pending returns a snapshot of the currently buffered events, for tests.
func (b *BufferedEmitter) Pending() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.buffer))
	copy(out, b.buffer)
	return out
}
