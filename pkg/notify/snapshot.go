package notify

import (
	"sync"
	"time"
)

// Snapshot is a read-only view of a container's value at a point in time.
// Holders must call Release when done; the container's writers wait (bounded)
// for all snapshots to be released before committing the next value.
type Snapshot[T any] struct {
	value   T
	tracker *tracker
	once    sync.Once
}

// Value returns the captured value.
func (s *Snapshot[T]) Value() T { return s.value }

// Release marks the snapshot as no longer in use. Safe to call repeatedly.
func (s *Snapshot[T]) Release() {
	s.once.Do(s.tracker.release)
}

// tracker counts live snapshots for one container.
type tracker struct {
	mu      sync.Mutex
	live    int
	drained chan struct{} // closed whenever live drops to zero
}

func newTracker() *tracker {
	drained := make(chan struct{})
	close(drained)
	return &tracker{drained: drained}
}

func (t *tracker) acquire() {
	t.mu.Lock()
	if t.live == 0 {
		t.drained = make(chan struct{})
	}
	t.live++
	t.mu.Unlock()
}

func (t *tracker) release() {
	t.mu.Lock()
	t.live--
	if t.live == 0 {
		close(t.drained)
	}
	t.mu.Unlock()
}

func (t *tracker) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// waitIdle blocks until no snapshots are live, or the timeout elapses.
// Reports whether the tracker drained in time.
func (t *tracker) waitIdle(timeout time.Duration) bool {
	t.mu.Lock()
	if t.live == 0 {
		t.mu.Unlock()
		return true
	}
	drained := t.drained
	t.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-drained:
		return true
	case <-timer.C:
		return false
	}
}
