package reactive

import (
	"sync"

	"github.com/creastat/reactive/core"
)

// serializer runs submitted functions one at a time in submission order.
//
// The caller that finds the serializer idle drains the queue on its own
// goroutine; calls made while a drain is in progress, including reentrant
// calls from inside a running function, are queued and return immediately.
//
// While the drainer is inside within(key, ...), functions submitted with that
// key run in place instead, one at a time, so a producer emitting during its
// own Subscribe is delivered without buffering. Once one of them has been
// queued, the rest of the window queues too to keep their order.
type serializer struct {
	mu       sync.Mutex
	queue    []func()
	draining bool

	window  uint64
	inPlace bool
	spilled bool
	idle    *sync.Cond
}

func (s *serializer) run(fn func()) {
	s.runFor(0, fn)
}

// runFor is run for functions belonging to key
func (s *serializer) runFor(key uint64, fn func()) {
	s.mu.Lock()
	if key != 0 && key == s.window {
		if !s.inPlace && !s.spilled {
			s.inPlace = true
			s.mu.Unlock()
			s.runInPlace(fn)
			return
		}
		s.spilled = true
	}
	s.queue = append(s.queue, fn)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

func (s *serializer) runInPlace(fn func()) {
	defer func() {
		s.mu.Lock()
		s.inPlace = false
		s.idle.Broadcast()
		s.mu.Unlock()
	}()
	fn()
}

// within runs fn with key's window open. It must only be called from a
// function run by the drainer, and returns once no in-place function is left
// running.
func (s *serializer) within(key uint64, fn func()) {
	s.mu.Lock()
	if s.idle == nil {
		s.idle = sync.NewCond(&s.mu)
	}
	s.window = key
	s.spilled = false
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.window = 0
		for s.inPlace {
			s.idle.Wait()
		}
		s.mu.Unlock()
	}()
	fn()
}

func (s *serializer) drain() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.draining = false
			s.queue = nil
			s.mu.Unlock()
			panic(r)
		}
	}()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		next()
	}
}

// Serialize delivers the notifications of a producer that calls its observer
// from several goroutines one at a time, and drops anything after the first
// terminal notification.
func Serialize[T any]() Operator[T, T] {
	return func(source core.Stream[T]) core.Stream[T] {
		return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
			if source == nil {
				observer.OnError(ErrNilStream)
				return Disposed()
			}
			return source.Subscribe(&serializedObserver[T]{downstream: observer})
		})
	}
}

type serializedObserver[T any] struct {
	serial     serializer
	downstream core.Observer[T]
	done       bool
}

func (o *serializedObserver[T]) IsStopped() bool {
	return isStopped(o.downstream)
}

func (o *serializedObserver[T]) OnNext(value T) {
	o.serial.run(func() {
		if o.done {
			return
		}
		o.downstream.OnNext(value)
	})
}

func (o *serializedObserver[T]) OnError(err error) {
	o.serial.run(func() {
		if o.done {
			return
		}
		o.done = true
		o.downstream.OnError(err)
	})
}

func (o *serializedObserver[T]) OnCompleted() {
	o.serial.run(func() {
		if o.done {
			return
		}
		o.done = true
		o.downstream.OnCompleted()
	})
}
