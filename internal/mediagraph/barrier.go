package mediagraph

import (
	"context"
	"sync"
)

// Barrier releases every waiter once target parties have arrived — the
// four-way startup rendezvous from §4.7 (pipeline construction, the two
// pump tasks, and the input sub-task). Grounded on the teacher's
// close-a-channel-once broadcast idiom (cvpipe/pipeline.go's
// FirstRawFrame), generalized to an arbitrary party count instead of one.
type Barrier struct {
	mu      sync.Mutex
	arrived int
	target  int
	release chan struct{}
}

// NewBarrier builds a barrier that releases once target parties arrive.
func NewBarrier(target int) *Barrier {
	return &Barrier{target: target, release: make(chan struct{})}
}

// Arrive registers one party as ready. Safe to call more than target times;
// only the target-th call closes the release channel.
func (b *Barrier) Arrive() {
	b.mu.Lock()
	b.arrived++
	reached := b.arrived == b.target
	b.mu.Unlock()
	if reached {
		close(b.release)
	}
}

// Wait blocks until every party has arrived or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
