package reactive

import (
	"sync/atomic"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/reactive/core"
)

// MergeAll flattens a stream of streams, forwarding every inner value in
// arrival order.
//
// The output completes once the outer stream and every inner stream it
// produced have completed. The first error from the outer stream or any inner
// stream is forwarded exactly once, after which every subscription is
// disposed. Disposing the output releases the outer and every live inner
// subscription synchronously, including from inside an observer callback.
func MergeAll[T any](opts ...Option) Operator[core.Stream[T], T] {
	return mergeAll[T](newConfig(opts))
}

// Merge interleaves the given streams
func Merge[T any](streams ...core.Stream[T]) core.Stream[T] {
	return MergeAll[T]()(FromSlice(streams))
}

func mergeAll[T any](cfg config) Operator[core.Stream[T], T] {
	return func(source core.Stream[core.Stream[T]]) core.Stream[T] {
		return core.StreamFunc[T](func(observer core.Observer[T]) core.Disposable {
			if source == nil {
				observer.OnError(ErrNilStream)
				return Disposed()
			}
			m := &merger[T]{
				downstream: observer,
				logger:     cfg.moduleLogger("merge"),
				inners:     newRegistry(),
			}
			m.start(source)
			return m
		})
	}
}

// merger is the state of one MergeAll subscription.
//
// Every notification from the outer or an inner stream is funneled through
// serial, so active and outerDone are only touched by one function at a time.
// stopped flips exactly once, on the first terminal event or on Dispose.
type merger[T any] struct {
	downstream core.Observer[T]
	logger     telemetry.Logger
	serial     serializer
	outer      Assignable
	inners     *registry

	// active counts the outer stream until it completes, plus every live inner
	active    int
	outerDone bool

	stopped atomic.Bool
}

func (m *merger[T]) start(source core.Stream[core.Stream[T]]) {
	m.active = 1
	m.logger.Debug("merge subscribed")
	m.outer.Set(source.Subscribe(outerObserver[T]{m: m}))
}

func (m *merger[T]) subscribeInner(inner core.Stream[T]) {
	if m.stopped.Load() {
		return
	}
	if inner == nil {
		m.fail(ErrNilStream)
		return
	}

	h, ok := m.inners.reserve()
	if !ok {
		return
	}
	m.active++
	m.logger.Trace("subscribing inner", telemetry.Int("inner", int(h)), telemetry.Int("active", m.active))

	var d core.Disposable
	m.serial.within(uint64(h), func() {
		d = inner.Subscribe(&innerObserver[T]{m: m, h: h})
	})
	m.inners.attach(h, d)
}

func (m *merger[T]) forward(value T) {
	if m.stopped.Load() {
		return
	}
	m.downstream.OnNext(value)
}

func (m *merger[T]) completeInner(h handle) {
	if m.stopped.Load() {
		return
	}
	d, live := m.inners.release(h)
	if !live {
		return
	}
	if d != nil {
		d.Dispose()
	}
	m.active--
	m.logger.Trace("inner completed", telemetry.Int("inner", int(h)), telemetry.Int("active", m.active))

	if m.active == 0 && m.outerDone {
		m.complete()
	}
}

func (m *merger[T]) completeOuter() {
	if m.stopped.Load() || m.outerDone {
		return
	}
	m.outerDone = true
	m.active--
	m.logger.Trace("outer completed", telemetry.Int("active", m.active))

	if m.active == 0 {
		m.complete()
	}
}

func (m *merger[T]) complete() {
	if !m.stopped.CompareAndSwap(false, true) {
		return
	}
	m.logger.Debug("merge completed")
	m.downstream.OnCompleted()
	m.release()
}

func (m *merger[T]) fail(err error) {
	if !m.stopped.CompareAndSwap(false, true) {
		return
	}
	m.logger.Debug("merge failed", telemetry.Err(err), telemetry.Int("active", m.active))
	m.downstream.OnError(err)
	m.release()
}

// release disposes the outer subscription and every registered inner one
func (m *merger[T]) release() {
	m.outer.Dispose()
	for _, d := range m.inners.drain() {
		d.Dispose()
	}
}

// isStopped reports whether producers may stop emitting: the merge has
// terminated or the downstream observer accepts nothing more
func (m *merger[T]) isStopped() bool {
	return m.stopped.Load() || isStopped(m.downstream)
}

// Dispose cancels the merge. It is idempotent and safe to call from inside a
// callback of any of the merged streams.
func (m *merger[T]) Dispose() {
	if m.stopped.CompareAndSwap(false, true) {
		m.logger.Debug("merge disposed")
	}
	m.release()
}

type outerObserver[T any] struct {
	m *merger[T]
}

// IsStopped stops a synchronous outer stream once the merge has terminated
func (o outerObserver[T]) IsStopped() bool {
	return o.m.isStopped()
}

func (o outerObserver[T]) OnNext(inner core.Stream[T]) {
	o.m.serial.run(func() { o.m.subscribeInner(inner) })
}

func (o outerObserver[T]) OnError(err error) {
	o.m.serial.run(func() { o.m.fail(err) })
}

func (o outerObserver[T]) OnCompleted() {
	o.m.serial.run(o.m.completeOuter)
}

// innerObserver forwards one inner subscription's notifications into the merge
type innerObserver[T any] struct {
	m    *merger[T]
	h    handle
	done bool
}

func (o *innerObserver[T]) IsStopped() bool {
	return o.m.isStopped()
}

func (o *innerObserver[T]) OnNext(value T) {
	o.m.serial.runFor(uint64(o.h), func() {
		if o.done {
			return
		}
		o.m.forward(value)
	})
}

func (o *innerObserver[T]) OnError(err error) {
	o.m.serial.runFor(uint64(o.h), func() {
		if o.done {
			return
		}
		o.done = true
		o.m.fail(err)
	})
}

func (o *innerObserver[T]) OnCompleted() {
	o.m.serial.runFor(uint64(o.h), func() {
		if o.done {
			return
		}
		o.done = true
		o.m.completeInner(o.h)
	})
}
