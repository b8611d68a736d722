// Package reactivetest provides observers and producers for testing streams.
package reactivetest

import (
	"sync"
	"time"

	"github.com/creastat/reactive/core"
)

// Recorder is an observer that records every notification it receives.
//
// Recorder is safe under concurrent calls.
type Recorder[T any] struct {
	mu            sync.Mutex
	notifications []core.Notification[T]
	terminated    chan struct{}
	once          sync.Once
	onNext        func(T)
}

// NewRecorder constructs a Recorder
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{terminated: make(chan struct{})}
}

// OnNextHook registers fn to run after each recorded value. It is used to
// trigger reentrant calls such as disposal from inside a callback.
func (r *Recorder[T]) OnNextHook(fn func(T)) *Recorder[T] {
	r.mu.Lock()
	r.onNext = fn
	r.mu.Unlock()
	return r
}

func (r *Recorder[T]) OnNext(value T) {
	r.mu.Lock()
	r.notifications = append(r.notifications, core.Next(value))
	hook := r.onNext
	r.mu.Unlock()

	if hook != nil {
		hook(value)
	}
}

func (r *Recorder[T]) OnError(err error) {
	r.record(core.Error[T](err))
}

func (r *Recorder[T]) OnCompleted() {
	r.record(core.Completed[T]())
}

func (r *Recorder[T]) record(n core.Notification[T]) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
	r.once.Do(func() { close(r.terminated) })
}

// Notifications returns a snapshot copy of recorded notifications
func (r *Recorder[T]) Notifications() []core.Notification[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]core.Notification[T], len(r.notifications))
	copy(cp, r.notifications)
	return cp
}

// Values returns the recorded OnNext values in arrival order
func (r *Recorder[T]) Values() []T {
	ns := r.Notifications()
	out := make([]T, 0, len(ns))
	for _, n := range ns {
		if n.Kind == core.NotificationNext {
			out = append(out, n.Value)
		}
	}
	return out
}

// Errors returns every recorded error
func (r *Recorder[T]) Errors() []error {
	var out []error
	for _, n := range r.Notifications() {
		if n.Kind == core.NotificationError {
			out = append(out, n.Err)
		}
	}
	return out
}

// Err returns the first recorded error, if any
func (r *Recorder[T]) Err() error {
	if errs := r.Errors(); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Completions returns the number of recorded OnCompleted calls
func (r *Recorder[T]) Completions() int {
	count := 0
	for _, n := range r.Notifications() {
		if n.Kind == core.NotificationCompleted {
			count++
		}
	}
	return count
}

// Completed reports whether OnCompleted was recorded
func (r *Recorder[T]) Completed() bool {
	return r.Completions() > 0
}

// Terminated reports whether a terminal notification was recorded
func (r *Recorder[T]) Terminated() bool {
	select {
	case <-r.terminated:
		return true
	default:
		return false
	}
}

// Wait blocks until a terminal notification is recorded or timeout elapses
func (r *Recorder[T]) Wait(timeout time.Duration) bool {
	select {
	case <-r.terminated:
		return true
	case <-time.After(timeout):
		return false
	}
}
