package reactive

import (
	"context"
	"sync"

	"github.com/creastat/reactive/core"
)

// Subscribe subscribes plain callbacks to a stream. Nil callbacks are ignored.
func Subscribe[T any](stream core.Stream[T], onNext func(T), onError func(error), onCompleted func()) core.Disposable {
	return stream.Subscribe(core.ObserverFuncs[T]{
		Next:      onNext,
		Error:     onError,
		Completed: onCompleted,
	})
}

// Collect subscribes to stream and blocks until it terminates, returning every
// value received. When ctx is cancelled first the subscription is disposed and
// the values received so far are returned with ctx.Err().
func Collect[T any](ctx context.Context, stream core.Stream[T]) ([]T, error) {
	var (
		mu     sync.Mutex
		values []T
	)
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	d := stream.Subscribe(core.ObserverFuncs[T]{
		Next: func(v T) {
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		},
		Error:     finish,
		Completed: func() { finish(nil) },
	})
	defer d.Dispose()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]T, len(values))
	copy(out, values)
	return out, err
}

// ToChannel subscribes to stream and relays its notifications on the returned
// channel, which is closed after the terminal notification or when ctx is
// cancelled.
func ToChannel[T any](ctx context.Context, stream core.Stream[T], buffer int) <-chan core.Notification[T] {
	if buffer < 0 {
		buffer = 0
	}
	out := make(chan core.Notification[T], buffer)

	go func() {
		var (
			mu     sync.Mutex
			closed bool
			once   sync.Once
		)
		terminated := make(chan struct{})

		emit := func(n core.Notification[T]) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
			if n.Kind.IsTerminal() {
				once.Do(func() { close(terminated) })
			}
		}

		d := stream.Subscribe(core.ObserverFuncs[T]{
			Next:      func(v T) { emit(core.Next(v)) },
			Error:     func(err error) { emit(core.Error[T](err)) },
			Completed: func() { emit(core.Completed[T]()) },
		})

		select {
		case <-terminated:
		case <-ctx.Done():
		}
		d.Dispose()

		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out
}
