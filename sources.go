package reactive

import (
	"context"
	"iter"
	"slices"
	"sync/atomic"

	"github.com/creastat/reactive/core"
)

// safeObserver enforces the notification grammar for a producer: nothing is
// delivered after the first terminal notification or after stop.
type safeObserver[T any] struct {
	downstream core.Observer[T]
	stopped    atomic.Bool
}

func (o *safeObserver[T]) OnNext(value T) {
	if o.stopped.Load() {
		return
	}
	o.downstream.OnNext(value)
}

func (o *safeObserver[T]) OnError(err error) {
	if o.stopped.CompareAndSwap(false, true) {
		o.downstream.OnError(err)
	}
}

func (o *safeObserver[T]) OnCompleted() {
	if o.stopped.CompareAndSwap(false, true) {
		o.downstream.OnCompleted()
	}
}

func (o *safeObserver[T]) stop() {
	o.stopped.Store(true)
}

func (o *safeObserver[T]) isStopped() bool {
	return o.stopped.Load() || isStopped(o.downstream)
}

func (o *safeObserver[T]) IsStopped() bool {
	return o.isStopped()
}

// isStopped reports whether observer has signalled through core.Stoppable
// that it accepts nothing more
func isStopped(observer any) bool {
	s, ok := observer.(core.Stoppable)
	return ok && s.IsStopped()
}

// Create builds a stream from a subscribe function. The observer handed to
// subscribe ignores calls after a terminal notification or after the returned
// disposable has been released. It implements core.Stoppable, so a producer
// emitting synchronously can stop early.
func Create[T any](subscribe func(observer core.Observer[T]) core.Disposable) core.Stream[T] {
	return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
		safe := &safeObserver[T]{downstream: observer}
		inner := subscribe(safe)
		return NewDisposable(func() {
			safe.stop()
			if inner != nil {
				inner.Dispose()
			}
		})
	})
}

// FromSeq replays a finite sequence synchronously on subscribe, then completes.
// The replay ends early once the observer reports itself stopped.
func FromSeq[T any](seq iter.Seq[T]) core.Stream[T] {
	return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
		safe := &safeObserver[T]{downstream: observer}
		for v := range seq {
			if safe.isStopped() {
				return Disposed()
			}
			safe.OnNext(v)
		}
		safe.OnCompleted()
		return NewDisposable(safe.stop)
	})
}

// FromSlice replays items synchronously on subscribe, then completes
func FromSlice[T any](items []T) core.Stream[T] {
	return FromSeq(slices.Values(items))
}

// Of replays the given values synchronously on subscribe, then completes
func Of[T any](items ...T) core.Stream[T] {
	return FromSlice(items)
}

// FromFuture emits the resolved value of f and completes, or fails with an
// *AsyncRejectionError when f is rejected. An already settled future is
// replayed synchronously; otherwise a goroutine waits for it until disposal.
func FromFuture[T any](f core.Future[T]) core.Stream[T] {
	return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
		safe := &safeObserver[T]{downstream: observer}

		select {
		case <-f.Done():
			emitSettled(f, safe)
			return Disposed()
		default:
		}

		stop := make(chan struct{})
		go func() {
			select {
			case <-f.Done():
				emitSettled(f, safe)
			case <-stop:
			}
		}()

		return NewDisposable(func() {
			safe.stop()
			close(stop)
		})
	})
}

func emitSettled[T any](f core.Future[T], observer core.Observer[T]) {
	v, err := f.Result()
	if err != nil {
		observer.OnError(&AsyncRejectionError{Err: err})
		return
	}
	observer.OnNext(v)
	observer.OnCompleted()
}

// FromChannel relays values received on ch until it is closed, then completes.
// Cancelling ctx terminates the stream with ctx.Err().
func FromChannel[T any](ctx context.Context, ch <-chan T) core.Stream[T] {
	return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
		safe := &safeObserver[T]{downstream: observer}
		stop := make(chan struct{})

		go func() {
			for {
				select {
				case <-stop:
					return
				case <-ctx.Done():
					safe.OnError(ctx.Err())
					return
				case v, ok := <-ch:
					if !ok {
						safe.OnCompleted()
						return
					}
					safe.OnNext(v)
				}
			}
		}()

		return NewDisposable(func() {
			safe.stop()
			close(stop)
		})
	})
}

// Empty completes immediately without emitting
func Empty[T any]() core.Stream[T] {
	return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
		observer.OnCompleted()
		return Disposed()
	})
}

// Never neither emits nor terminates
func Never[T any]() core.Stream[T] {
	return core.StreamFunc[T](func(core.Observer[T]) core.Disposable {
		return Disposed()
	})
}

// Throw fails immediately with err
func Throw[T any](err error) core.Stream[T] {
	return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
		observer.OnError(err)
		return Disposed()
	})
}
