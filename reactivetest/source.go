package reactivetest

import (
	"sync"

	"github.com/creastat/reactive/core"
)

// Source is a manually driven stream. Every call to Next, Error or Complete is
// delivered synchronously to the observers subscribed at that moment.
type Source[T any] struct {
	mu            sync.Mutex
	observers     map[int]core.Observer[T]
	next          int
	subscriptions int
	disposals     int
}

// NewSource constructs an idle Source
func NewSource[T any]() *Source[T] {
	return &Source[T]{observers: make(map[int]core.Observer[T])}
}

// Subscribe registers observer until the returned disposable is released or
// the source terminates
func (s *Source[T]) Subscribe(observer core.Observer[T]) core.Disposable {
	s.mu.Lock()
	id := s.next
	s.next++
	s.observers[id] = observer
	s.subscriptions++
	s.mu.Unlock()

	return &sourceSubscription[T]{source: s, id: id}
}

// Next emits value to current observers
func (s *Source[T]) Next(value T) {
	for _, o := range s.snapshot(false) {
		o.OnNext(value)
	}
}

// Error fails current observers and detaches them
func (s *Source[T]) Error(err error) {
	for _, o := range s.snapshot(true) {
		o.OnError(err)
	}
}

// Complete completes current observers and detaches them
func (s *Source[T]) Complete() {
	for _, o := range s.snapshot(true) {
		o.OnCompleted()
	}
}

// Active returns the number of attached observers
func (s *Source[T]) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// Subscriptions returns the total number of Subscribe calls
func (s *Source[T]) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions
}

// Disposals returns the number of subscriptions released through Dispose
func (s *Source[T]) Disposals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposals
}

func (s *Source[T]) snapshot(detach bool) []core.Observer[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Observer[T], 0, len(s.observers))
	for i := 0; i < s.next; i++ {
		if o, ok := s.observers[i]; ok {
			out = append(out, o)
		}
	}
	if detach {
		clear(s.observers)
	}
	return out
}

type sourceSubscription[T any] struct {
	source *Source[T]
	id     int
	once   sync.Once
}

func (d *sourceSubscription[T]) Dispose() {
	d.once.Do(func() {
		d.source.mu.Lock()
		defer d.source.mu.Unlock()
		if _, ok := d.source.observers[d.id]; ok {
			delete(d.source.observers, d.id)
			d.source.disposals++
		}
	})
}
