package notify

import (
	"context"
	"sync"
)

// Subscription is an ordered stream of snapshots from one Notify. Values are
// buffered per subscription, so a slow consumer never blocks the writer or
// other subscribers. Only snapshots handed out by Next count as held; a
// backlog of undelivered values costs memory, not writer latency.
type Subscription[T any] struct {
	id      uint64
	owner   *Notify[T]
	tracker *tracker

	mu     sync.Mutex
	queue  []queued[T]
	closed bool
	ready  chan struct{} // capacity 1, wake-up signal for Next
}

type queued[T any] struct {
	value       T
	invalidated bool
}

// Next blocks until a value is available and returns it as a snapshot the
// caller must Release. It returns ErrEndOfStream once the container is gone,
// ErrCanceled when ctx ends first, and ErrInvalidated when the subscription
// held up a writer past the release timeout and may have missed values.
func (s *Subscription[T]) Next(ctx context.Context) (*Snapshot[T], error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			if item.invalidated {
				return nil, ErrInvalidated
			}
			s.tracker.acquire()
			return &Snapshot[T]{value: item.value, tracker: s.tracker}, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return nil, ErrEndOfStream
		}
		select {
		case <-ctx.Done():
			return nil, ErrCanceled
		case <-s.ready:
		}
	}
}

// Unsubscribe detaches the subscription and drops any undelivered values.
// Next returns ErrEndOfStream afterwards.
func (s *Subscription[T]) Unsubscribe() {
	if s.owner != nil {
		s.owner.unsubscribe(s.id)
	}
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
	s.close()
}

func (s *Subscription[T]) push(item queued[T]) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, item)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}
