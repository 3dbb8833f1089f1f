// Package shutdown coordinates orderly termination across the many
// independently spawned goroutines of a media/input session: the media
// graph pumps, the orchestrator's send/forward pumps, the transport's
// on-track readers, and the client's input capture loop register here and
// race wait_for_error against their own work. The RTCP readers, the latency
// sender loop, and the signaling reads do not register.
//
// Grounded on utils/shutdown.rs from the original Rust session engine: a
// two-semaphore design (one broadcasts "an error happened", one releases
// exactly once after every registered task has acknowledged it) backed here
// by golang.org/x/sync/semaphore instead of tokio::sync::Semaphore.
package shutdown

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxOutstanding bounds how many tasks may be registered against a single
// Coordinator. A media/input session spawns on the order of 10 tasks; this
// is generous headroom, not a tuned limit.
const maxOutstanding = 1 << 16

// Coordinator is the reference-counted task registry and two-phase
// (error -> drain) shutdown signal shared by every task in a session.
type Coordinator struct {
	mu          sync.Mutex
	outstanding uint32
	errorRaised bool
	reason      string

	errorSem    *semaphore.Weighted
	shutdownSem *semaphore.Weighted
	shutdownRel sync.Once
}

// New returns a Coordinator with zero outstanding tasks and no error raised.
func New() *Coordinator {
	c := &Coordinator{
		errorSem:    semaphore.NewWeighted(maxOutstanding),
		shutdownSem: semaphore.NewWeighted(1),
	}
	// Start both semaphores fully acquired so the first Release call is the
	// one that makes a permit observable, mirroring Semaphore::new(0).
	_ = c.errorSem.Acquire(context.Background(), maxOutstanding)
	_ = c.shutdownSem.Acquire(context.Background(), 1)
	return c
}

// Register increments outstanding_tasks. Must be called by each task before
// its first suspension point.
func (c *Coordinator) Register(taskName string) {
	c.mu.Lock()
	c.outstanding++
	c.mu.Unlock()
}

// WaitForError suspends until an error has been raised by any task; on wake
// it decrements outstanding_tasks, releasing wait_for_shutdown when the last
// task has acknowledged. Returns ctx.Err() if ctx is cancelled first without
// ever observing an error — in that case outstanding is left unchanged.
func (c *Coordinator) WaitForError(ctx context.Context) error {
	if err := c.errorSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.observeOne()
	return nil
}

// CheckForError is a non-blocking poll; if an error is pending it behaves as
// WaitForError (consuming one observation) and returns true.
func (c *Coordinator) CheckForError() bool {
	if !c.errorSem.TryAcquire(1) {
		return false
	}
	c.observeOne()
	return true
}

// WaitForShutdown is released exactly once, after the last registered task
// has acknowledged the error.
func (c *Coordinator) WaitForShutdown(ctx context.Context) error {
	return c.shutdownSem.Acquire(ctx, 1)
}

// NotifyError raises the error flag. If isOrigin is false the caller is also
// counted as having observed the error (it decrements its own outstanding
// count instead of waiting on WaitForError). On the first call enough
// permits are released that every still-registered task can observe the
// error exactly once; subsequent calls are idempotent.
func (c *Coordinator) NotifyError(isOrigin bool, reason string) {
	c.mu.Lock()
	if !isOrigin && c.outstanding > 0 {
		c.outstanding--
	}
	first := !c.errorRaised
	if first {
		c.errorRaised = true
		c.reason = reason
	}
	remaining := c.outstanding
	c.mu.Unlock()

	if first && remaining > 0 {
		c.errorSem.Release(int64(remaining))
	}
	if remaining == 0 {
		c.releaseShutdown()
	}
}

// Reason returns the reason passed to the first NotifyError call, or "" if
// no error has been raised yet.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Outstanding reports the current outstanding task count. Exposed for tests
// that verify the coordinator reaches zero after every task exits.
func (c *Coordinator) Outstanding() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

func (c *Coordinator) observeOne() {
	c.mu.Lock()
	if c.outstanding > 0 {
		c.outstanding--
	}
	remaining := c.outstanding
	c.mu.Unlock()
	if remaining == 0 {
		c.releaseShutdown()
	}
}

func (c *Coordinator) releaseShutdown() {
	c.shutdownRel.Do(func() {
		c.shutdownSem.Release(1)
	})
}
