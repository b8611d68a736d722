package reactive

import (
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/creastat/reactive/core"
)

// Projection is a classified projection result. Exactly one of its payloads is
// set, matching Kind.
type Projection[U any] struct {
	kind   core.ProjectionKind
	seq    iter.Seq[U]
	future core.Future[U]
	stream core.Stream[U]
}

// SequenceOf classifies a finite slice
func SequenceOf[U any](items []U) Projection[U] {
	return Projection[U]{kind: core.ProjectionSequence, seq: slices.Values(items)}
}

// SeqOf classifies a finite iterator
func SeqOf[U any](seq iter.Seq[U]) Projection[U] {
	return Projection[U]{kind: core.ProjectionSequence, seq: seq}
}

// AsyncOf classifies a single-value asynchronous handle
func AsyncOf[U any](f core.Future[U]) Projection[U] {
	return Projection[U]{kind: core.ProjectionAsync, future: f}
}

// StreamOf classifies a stream, which is passed through unchanged
func StreamOf[U any](s core.Stream[U]) Projection[U] {
	return Projection[U]{kind: core.ProjectionStream, stream: s}
}

// Kind returns the projection variant
func (p Projection[U]) Kind() core.ProjectionKind {
	return p.kind
}

// Stream returns the inner stream for the projection
func (p Projection[U]) Stream() core.Stream[U] {
	switch p.kind {
	case core.ProjectionSequence:
		return FromSeq(p.seq)
	case core.ProjectionAsync:
		return FromFuture(p.future)
	case core.ProjectionStream:
		return p.stream
	default:
		return Throw[U](&ProjectionError{
			Message: "projection not classified",
			Details: "use Normalize or one of the Projection constructors",
		})
	}
}

// Normalize classifies a projection result by inspecting its capabilities, in
// order: a []U or iter.Seq[U] is a sequence, a core.Future[U] is an async
// handle, a core.Stream[U] is a stream. Anything else is a *ProjectionError.
func Normalize[U any](r any) (Projection[U], error) {
	switch v := r.(type) {
	case nil:
		return Projection[U]{}, &ProjectionError{
			Message: "invalid projection result",
			Details: "mapper returned nil",
		}
	case Projection[U]:
		if v.kind == "" {
			break
		}
		return v, nil
	case []U:
		return SequenceOf(v), nil
	case iter.Seq[U]:
		if v != nil {
			return SeqOf(v), nil
		}
	case func(yield func(U) bool):
		if v != nil {
			return SeqOf(iter.Seq[U](v)), nil
		}
	case core.Future[U]:
		return AsyncOf(v), nil
	case core.Stream[U]:
		return StreamOf(v), nil
	}

	return Projection[U]{}, &ProjectionError{
		Message: "invalid projection result",
		Details: fmt.Sprintf("%T is not a sequence, future or stream of %s", r, reflect.TypeFor[U]()),
	}
}
