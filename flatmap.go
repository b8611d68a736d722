package reactive

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/reactive/core"
)

// projectFunc produces the unclassified projection result for one element
type projectFunc[T any] func(value T, index int) (any, error)

// FlatMap projects each element of the source to an inner stream and merges
// the emissions of all active inner streams into one output stream.
//
// mapper is either a per-element function or a constant projection target.
// Supported function shapes are func(T) R and func(T) (R, error) where R is
// any, []U, iter.Seq[U], core.Future[U], core.Stream[U] or Projection[U].
// Results are classified with Normalize. Any other value is used as the
// projection of every element, ignoring the element's value.
func FlatMap[T, U any](mapper any, opts ...Option) Operator[T, U] {
	cfg := newConfig(opts)
	if project, ok := resolveMapper[T, U](mapper); ok {
		return flatMap[T, U](project, cfg)
	}
	return flatMapTarget[T, U](mapper, cfg)
}

// FlatMapIndexed is FlatMap with an index-aware mapper. The mapper receives
// each element with its position in the source, starting at 0 for every new
// subscription. Supported shapes mirror FlatMap with a (T, int) parameter list.
func FlatMapIndexed[T, U any](mapper any, opts ...Option) Operator[T, U] {
	cfg := newConfig(opts)
	if project, ok := resolveIndexedMapper[T, U](mapper); ok {
		return flatMap[T, U](project, cfg)
	}
	return flatMapTarget[T, U](mapper, cfg)
}

// ValidateTarget reports whether target can be used as a constant projection
// target for inner streams of U
func ValidateTarget[U any](target any) error {
	_, err := Normalize[U](target)
	if err != nil && target != nil && reflect.TypeOf(target).Kind() == reflect.Func {
		return &ProjectionError{
			Message: "mapper signature not supported",
			Details: fmt.Sprintf("%T", target),
		}
	}
	return err
}

func flatMapTarget[T, U any](target any, cfg config) Operator[T, U] {
	if err := ValidateTarget[U](target); err != nil {
		cfg.moduleLogger("flatmap").Warn("invalid flatmap target", telemetry.Err(err))
		return func(core.Stream[T]) core.Stream[U] {
			return Throw[U](err)
		}
	}
	return flatMap[T, U](func(T, int) (any, error) {
		return target, nil
	}, cfg)
}

func flatMap[T, U any](project projectFunc[T], cfg config) Operator[T, U] {
	normalize := func(value T, index int) (core.Stream[U], error) {
		r, err := project(value, index)
		if err != nil {
			return nil, err
		}
		p, err := Normalize[U](r)
		if err != nil {
			return nil, err
		}
		return p.Stream(), nil
	}
	return Compose(mapIndexed(normalize, cfg), mergeAll[U](cfg))
}

func resolveMapper[T, U any](mapper any) (projectFunc[T], bool) {
	switch fn := mapper.(type) {
	case func(T) any:
		return func(v T, _ int) (any, error) { return fn(v), nil }, true
	case func(T) (any, error):
		return func(v T, _ int) (any, error) { return fn(v) }, true
	case func(T) []U:
		return func(v T, _ int) (any, error) { return fn(v), nil }, true
	case func(T) ([]U, error):
		return func(v T, _ int) (any, error) { return settle(fn(v)) }, true
	case func(T) iter.Seq[U]:
		return func(v T, _ int) (any, error) { return fn(v), nil }, true
	case func(T) core.Future[U]:
		return func(v T, _ int) (any, error) { return fn(v), nil }, true
	case func(T) core.Stream[U]:
		return func(v T, _ int) (any, error) { return fn(v), nil }, true
	case func(T) (core.Stream[U], error):
		return func(v T, _ int) (any, error) { return settle(fn(v)) }, true
	case func(T) Projection[U]:
		return func(v T, _ int) (any, error) { return fn(v), nil }, true
	}
	return nil, false
}

func resolveIndexedMapper[T, U any](mapper any) (projectFunc[T], bool) {
	switch fn := mapper.(type) {
	case func(T, int) any:
		return func(v T, i int) (any, error) { return fn(v, i), nil }, true
	case func(T, int) (any, error):
		return projectFunc[T](fn), true
	case func(T, int) []U:
		return func(v T, i int) (any, error) { return fn(v, i), nil }, true
	case func(T, int) ([]U, error):
		return func(v T, i int) (any, error) { return settle(fn(v, i)) }, true
	case func(T, int) iter.Seq[U]:
		return func(v T, i int) (any, error) { return fn(v, i), nil }, true
	case func(T, int) core.Future[U]:
		return func(v T, i int) (any, error) { return fn(v, i), nil }, true
	case func(T, int) core.Stream[U]:
		return func(v T, i int) (any, error) { return fn(v, i), nil }, true
	case func(T, int) (core.Stream[U], error):
		return func(v T, i int) (any, error) { return settle(fn(v, i)) }, true
	case func(T, int) Projection[U]:
		return func(v T, i int) (any, error) { return fn(v, i), nil }, true
	}
	return nil, false
}

// settle drops the result of a failed mapper call so the error alone is reported
func settle[R any](r R, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
