// Package reactive provides push-based stream operators built around FlatMap
// and the MergeAll engine behind it.
package reactive

import "github.com/creastat/reactive/core"

// Operator is a composable pipeline stage from a stream of T to a stream of U
type Operator[T, U any] func(source core.Stream[T]) core.Stream[U]

// Compose chains two operators into one
func Compose[A, B, C any](first Operator[A, B], second Operator[B, C]) Operator[A, C] {
	return func(source core.Stream[A]) core.Stream[C] {
		return second(first(source))
	}
}
