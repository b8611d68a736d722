package core

import (
	"context"
	"sync"
)

// Future is a single-value asynchronous handle.
//
// Done is closed once the future settles; Result must only be relied upon
// after that and returns either the resolved value or the rejection error.
type Future[T any] interface {
	Done() <-chan struct{}
	Result() (T, error)
}

// Promise is a Future settled explicitly by its owner
type Promise[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// NewPromise creates an unsettled promise
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve settles the promise with a value. Only the first settle call wins.
func (p *Promise[T]) Resolve(value T) bool {
	settled := false
	p.once.Do(func() {
		p.value = value
		close(p.done)
		settled = true
	})
	return settled
}

// Reject settles the promise with an error. Only the first settle call wins.
func (p *Promise[T]) Reject(err error) bool {
	settled := false
	p.once.Do(func() {
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

// Done returns a channel closed once the promise settles
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled value or error
func (p *Promise[T]) Result() (T, error) {
	<-p.done
	return p.value, p.err
}

// Go runs fn in a goroutine and returns a future for its result
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) Future[T] {
	p := NewPromise[T]()
	go func() {
		v, err := fn(ctx)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p
}

// Resolved returns an already resolved future
func Resolved[T any](value T) Future[T] {
	p := NewPromise[T]()
	p.Resolve(value)
	return p
}

// Rejected returns an already rejected future
func Rejected[T any](err error) Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}
