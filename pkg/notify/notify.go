// Package notify provides a broadcast-capable shared-state container.
//
// A Notify wraps a single value. Writers replace the value through Update or
// Set; every committed value is multicast to all live subscriptions in commit
// order. Subscribers never block the writer: each subscription buffers
// pending values, and delivered values are reference-counted snapshots so the
// container can tell when readers are holding on to old state.
package notify

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrTimeout is returned when a bounded wait elapses before completion.
	ErrTimeout = errors.New("notify: timed out")
	// ErrCanceled is returned when the caller's context is canceled.
	ErrCanceled = errors.New("notify: canceled")
	// ErrEndOfStream is returned once the container has been closed.
	ErrEndOfStream = errors.New("notify: end of stream")
	// ErrInvalidated is returned from Subscription.Next when the subscriber
	// held a snapshot past the release timeout and may have missed values.
	ErrInvalidated = errors.New("notify: subscription invalidated")
)

// DefaultReleaseTimeout bounds how long a writer waits for outstanding
// snapshots to be released before proceeding anyway.
const DefaultReleaseTimeout = time.Second

// Notify is a value with multicast change notification. Committed values are
// treated as immutable; Update builds a replacement rather than mutating in
// place, so snapshots handed to subscribers stay valid forever.
type Notify[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[uint64]*Subscription[T]
	nextID uint64 // per-container, so tests never share ordering state
	closed bool

	tracker        *tracker
	releaseTimeout time.Duration
	logger         log.FieldLogger
}

// Option configures a Notify.
type Option func(*config)

type config struct {
	releaseTimeout time.Duration
	logger         log.FieldLogger
}

// WithReleaseTimeout overrides DefaultReleaseTimeout.
func WithReleaseTimeout(d time.Duration) Option {
	return func(c *config) { c.releaseTimeout = d }
}

// WithLogger sets the logger used to report slow subscribers.
func WithLogger(logger log.FieldLogger) Option {
	return func(c *config) { c.logger = logger }
}

// New returns a Notify holding value.
func New[T any](value T, opts ...Option) *Notify[T] {
	cfg := config{
		releaseTimeout: DefaultReleaseTimeout,
		logger:         log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Notify[T]{
		value:          value,
		subs:           make(map[uint64]*Subscription[T]),
		tracker:        newTracker(),
		releaseTimeout: cfg.releaseTimeout,
		logger:         cfg.logger,
	}
}

// Get returns the current value without tracking a snapshot.
func (n *Notify[T]) Get() T {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// Set replaces the current value and broadcasts it.
func (n *Notify[T]) Set(value T) {
	n.Update(func(T) T { return value })
}

// Update applies fn to the current value, commits the result and broadcasts
// it to every subscription. fn must return a new value rather than mutating
// the old one; previously delivered snapshots must stay unchanged.
//
// Before committing, Update waits up to the release timeout for all
// outstanding snapshots to be released. If the wait times out the write
// proceeds anyway: the condition is logged and every subscription receives an
// invalidation marker so slow readers can detect the gap and re-synchronize.
func (n *Notify[T]) Update(fn func(T) T) T {
	if !n.tracker.waitIdle(n.releaseTimeout) {
		n.logger.Warnf("notify: %d snapshot(s) still held after %s; invalidating subscribers",
			n.tracker.outstanding(), n.releaseTimeout)
		n.invalidateAll()
	}

	n.mu.Lock()
	next := fn(n.value)
	n.value = next
	for _, sub := range n.subs {
		sub.push(queued[T]{value: next})
	}
	n.mu.Unlock()
	return next
}

// Subscribe returns a subscription that yields the current value first,
// followed by every later committed value in commit order.
func (n *Notify[T]) Subscribe() *Subscription[T] {
	n.mu.Lock()
	defer n.mu.Unlock()
	sub := n.newSubscription()
	if n.closed {
		sub.close()
		return sub
	}
	sub.push(queued[T]{value: n.value})
	return sub
}

// Changes is Subscribe without the initial value.
func (n *Notify[T]) Changes() *Subscription[T] {
	n.mu.Lock()
	defer n.mu.Unlock()
	sub := n.newSubscription()
	if n.closed {
		sub.close()
	}
	return sub
}

// newSubscription registers a subscription; caller holds n.mu.
func (n *Notify[T]) newSubscription() *Subscription[T] {
	sub := &Subscription[T]{
		id:      n.nextID,
		owner:   n,
		tracker: n.tracker,
		ready:   make(chan struct{}, 1),
	}
	n.nextID++
	n.subs[sub.id] = sub
	return sub
}

// Close ends every subscription. Pending values are still delivered before
// Next reports ErrEndOfStream.
func (n *Notify[T]) Close() {
	n.mu.Lock()
	subs := make([]*Subscription[T], 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	n.subs = make(map[uint64]*Subscription[T])
	n.closed = true
	n.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (n *Notify[T]) invalidateAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.subs {
		sub.push(queued[T]{invalidated: true})
	}
}

func (n *Notify[T]) unsubscribe(id uint64) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}
