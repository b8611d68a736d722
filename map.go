package reactive

import (
	"fmt"
	"runtime"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/reactive/core"
)

// Map projects each element with mapper
func Map[T, R any](mapper func(T) R, opts ...Option) Operator[T, R] {
	return mapIndexed(func(v T, _ int) (R, error) {
		return mapper(v), nil
	}, newConfig(opts))
}

// MapIndexed projects each element with mapper, passing its position in the
// source starting at 0. The position counter belongs to one subscription.
//
// A mapper error or panic terminates the output with a *MapperError and
// disposes the source subscription.
func MapIndexed[T, R any](mapper func(value T, index int) (R, error), opts ...Option) Operator[T, R] {
	return mapIndexed(mapper, newConfig(opts))
}

func mapIndexed[T, R any](mapper func(T, int) (R, error), cfg config) Operator[T, R] {
	return func(source core.Stream[T]) core.Stream[R] {
		return core.StreamFunc[R](func(observer core.Observer[R]) core.Disposable {
			if source == nil {
				observer.OnError(ErrNilStream)
				return Disposed()
			}
			m := &mapObserver[T, R]{
				downstream: observer,
				mapper:     mapper,
				logger:     cfg.moduleLogger("map"),
			}
			m.upstream.Set(source.Subscribe(m))
			return &m.upstream
		})
	}
}

type mapObserver[T, R any] struct {
	downstream core.Observer[R]
	mapper     func(T, int) (R, error)
	logger     telemetry.Logger
	upstream   Assignable
	index      int
	done       bool
}

func (m *mapObserver[T, R]) OnNext(value T) {
	if m.done {
		return
	}
	if isStopped(m.downstream) {
		m.done = true
		return
	}
	index := m.index
	m.index++

	result, err := m.apply(value, index)
	if err != nil {
		m.done = true
		m.logger.Debug("mapper failed", telemetry.Int("index", index), telemetry.Err(err))
		m.downstream.OnError(err)
		m.upstream.Dispose()
		return
	}
	m.downstream.OnNext(result)
}

// IsStopped lets a synchronous source stop before its disposable is assigned
func (m *mapObserver[T, R]) IsStopped() bool {
	return m.done || m.upstream.IsDisposed() || isStopped(m.downstream)
}

func (m *mapObserver[T, R]) OnError(err error) {
	if m.done {
		return
	}
	m.done = true
	m.downstream.OnError(err)
}

func (m *mapObserver[T, R]) OnCompleted() {
	if m.done {
		return
	}
	m.done = true
	m.downstream.OnCompleted()
}

// apply invokes the mapper, converting a returned error or a panic into a *MapperError
func (m *mapObserver[T, R]) apply(value T, index int) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &MapperError{
				Index: index,
				Err:   fmt.Errorf("mapper panicked: %v\nStack trace:\n%s", r, string(buf[:n])),
			}
		}
	}()

	result, err = m.mapper(value, index)
	if err != nil {
		return result, &MapperError{Index: index, Err: err}
	}
	return result, nil
}
