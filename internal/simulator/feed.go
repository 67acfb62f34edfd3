package simulator

import (
	"slices"
	"sync"

	"github.com/mmcdole/groundlink/internal/domain"
)

var _ domain.Stream[int] = (*Feed[int])(nil)

// Feed is an in-memory push stream. Like a device peripheral reference, a new
// observer is handed the latest value synchronously from Observe.
type Feed[T any] struct {
	mu        sync.Mutex
	observers map[int]func(T)
	nextID    int
	value     T
	hasValue  bool
	available bool

	onObserve func()
	onRelease func()
}

// NewFeed creates an available feed with no value yet
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{observers: make(map[int]func(T)), available: true}
}

// Hooks installs callbacks run on every registration and release
func (f *Feed[T]) Hooks(onObserve, onRelease func()) *Feed[T] {
	f.mu.Lock()
	f.onObserve, f.onRelease = onObserve, onRelease
	f.mu.Unlock()
	return f
}

// Observe implements domain.Stream
func (f *Feed[T]) Observe(deliver func(T)) (func(), error) {
	f.mu.Lock()
	if !f.available {
		f.mu.Unlock()
		return nil, domain.ErrUnavailable
	}
	id := f.nextID
	f.nextID++
	f.observers[id] = deliver
	v, has := f.value, f.hasValue
	onObserve := f.onObserve
	f.mu.Unlock()

	if onObserve != nil {
		onObserve()
	}
	if has {
		deliver(v)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.observers, id)
			onRelease := f.onRelease
			f.mu.Unlock()
			if onRelease != nil {
				onRelease()
			}
		})
	}, nil
}

// Push stores v and delivers it to every current observer, in registration order
func (f *Feed[T]) Push(v T) {
	f.mu.Lock()
	f.value, f.hasValue = v, true
	ids := make([]int, 0, len(f.observers))
	for id := range f.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	targets := make([]func(T), 0, len(ids))
	for _, id := range ids {
		targets = append(targets, f.observers[id])
	}
	f.mu.Unlock()

	for _, deliver := range targets {
		deliver(v)
	}
}

// Store replaces the value handed to new observers without notifying the
// current ones, like a device cache that changed behind a listener's back.
func (f *Feed[T]) Store(v T) {
	f.mu.Lock()
	f.value, f.hasValue = v, true
	f.mu.Unlock()
}

// Latest returns the last pushed value
func (f *Feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.hasValue
}

// SetAvailable toggles whether new observers can register. Making a feed
// unavailable also forgets its value and drops current observers.
func (f *Feed[T]) SetAvailable(available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = available
	if !available {
		var zero T
		f.value, f.hasValue = zero, false
		f.observers = make(map[int]func(T))
	}
}

// Observers returns the number of live registrations
func (f *Feed[T]) Observers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}
