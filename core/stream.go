package core

// Observer consumes the notifications of a stream.
//
// A well-behaved producer calls OnNext zero or more times followed by at most
// one of OnError or OnCompleted, and never calls the observer concurrently.
type Observer[T any] interface {
	OnNext(value T)
	OnError(err error)
	OnCompleted()
}

// Disposable releases a subscription. Dispose is idempotent.
type Disposable interface {
	Dispose()
}

// Stoppable is implemented by observers that can report they accept no
// further notifications. Synchronous producers check it between emissions so
// they stop before their Subscribe call returns a disposable.
type Stoppable interface {
	IsStopped() bool
}

// Stream is a push-based producer of values terminated by completion or error
type Stream[T any] interface {
	Subscribe(observer Observer[T]) Disposable
}

// StreamFunc adapts a subscribe function to the Stream interface
type StreamFunc[T any] func(observer Observer[T]) Disposable

// Subscribe calls f(observer)
func (f StreamFunc[T]) Subscribe(observer Observer[T]) Disposable {
	return f(observer)
}

// ObserverFuncs adapts plain callbacks to the Observer interface.
// Nil callbacks are ignored.
type ObserverFuncs[T any] struct {
	Next      func(value T)
	Error     func(err error)
	Completed func()
}

func (o ObserverFuncs[T]) OnNext(value T) {
	if o.Next != nil {
		o.Next(value)
	}
}

func (o ObserverFuncs[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs[T]) OnCompleted() {
	if o.Completed != nil {
		o.Completed()
	}
}
