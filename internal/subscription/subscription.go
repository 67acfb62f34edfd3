// Package subscription wraps a single device push stream in a closable handle.
package subscription

import (
	"sync"

	"github.com/mmcdole/groundlink/internal/domain"
)

// Closer is anything a session can tear down
type Closer interface {
	Close()
}

// Subscription is a live handle over one pushed value stream. It is owned
// exclusively by whoever opened it. After Close no further delivery starts;
// Done reports when the last in-flight delivery has returned.
type Subscription[T any] struct {
	mu       sync.Mutex
	value    T
	hasValue bool
	closed   bool
	inflight int
	queue    []T  // Pushed but not yet delivered
	draining bool // A goroutine is running the delivery loop
	deliver  func(T)
	release  func()

	done     chan struct{}
	doneOnce sync.Once
}

// Open registers deliver on stream. Values are delivered in the order the
// stream pushes them. When the stream cannot be opened the returned
// subscription is already closed and holds no value.
func Open[T any](stream domain.Stream[T], deliver func(T)) *Subscription[T] {
	s := &Subscription[T]{
		deliver: deliver,
		done:    make(chan struct{}),
	}
	if stream == nil {
		s.abandon()
		return s
	}

	release, err := stream.Observe(s.push)
	if err != nil {
		s.abandon()
		return s
	}

	s.mu.Lock()
	if s.closed {
		// Closed from inside a synchronous first delivery
		s.mu.Unlock()
		if release != nil {
			release()
		}
		return s
	}
	s.release = release
	s.mu.Unlock()
	return s
}

// Closed returns an already closed subscription with no value
func Closed[T any]() *Subscription[T] {
	s := &Subscription[T]{done: make(chan struct{})}
	s.abandon()
	return s
}

// push queues v and, unless another goroutine is already delivering, drains
// the queue. Only one goroutine runs deliver at a time, so values arrive in
// push order even when the source pushes from several goroutines.
func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.value, s.hasValue = v, true
	s.queue = append(s.queue, v)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.inflight++
	s.mu.Unlock()

	defer s.finish()
	for {
		s.mu.Lock()
		if s.closed || len(s.queue) == 0 {
			s.draining = false
			s.queue = nil
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		deliver := s.deliver
		s.mu.Unlock()

		if deliver != nil {
			deliver(next)
		}
	}
}

func (s *Subscription[T]) finish() {
	s.mu.Lock()
	s.inflight--
	idle := s.closed && s.inflight == 0
	s.mu.Unlock()
	if idle {
		s.doneOnce.Do(func() { close(s.done) })
	}
}

// abandon marks a subscription that never opened: closed and absent
func (s *Subscription[T]) abandon() {
	s.mu.Lock()
	var zero T
	s.value, s.hasValue = zero, false
	s.closed = true
	s.deliver = nil
	idle := s.inflight == 0
	s.mu.Unlock()
	if idle {
		s.doneOnce.Do(func() { close(s.done) })
	}
}

// Value returns the last delivered value
func (s *Subscription[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Close detaches the callback and releases the source registration.
// Closing twice is a no-op. Close may be called from inside the delivery
// callback and never waits; use Done to wait for an in-flight delivery
// started by another goroutine.
func (s *Subscription[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.deliver = nil
	s.queue = nil
	release := s.release
	s.release = nil
	idle := s.inflight == 0
	s.mu.Unlock()

	if release != nil {
		release()
	}
	if idle {
		s.doneOnce.Do(func() { close(s.done) })
	}
}

// IsClosed reports whether Close was called or the stream never opened
func (s *Subscription[T]) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Done is closed once the subscription is closed and no delivery is running.
// Waiting on Done from inside the delivery callback never returns.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}
