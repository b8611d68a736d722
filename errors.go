package reactive

import (
	"errors"
	"fmt"
)

// ErrNilStream is reported when a nil stream is subscribed or emitted as an inner stream
var ErrNilStream = errors.New("reactive: nil stream")

// ProjectionError reports a projection target or result that is not a
// sequence, a future or a stream
type ProjectionError struct {
	Message string
	Details string
}

func (e *ProjectionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// MapperError reports a failure raised while invoking a caller-supplied mapper.
// Index is the position of the element the mapper was invoked with.
type MapperError struct {
	Index int
	Err   error
}

func (e *MapperError) Error() string {
	return fmt.Sprintf("mapper failed at index %d: %v", e.Index, e.Err)
}

func (e *MapperError) Unwrap() error {
	return e.Err
}

// AsyncRejectionError reports the rejection of a future used as a projection target
type AsyncRejectionError struct {
	Err error
}

func (e *AsyncRejectionError) Error() string {
	return fmt.Sprintf("async handle rejected: %v", e.Err)
}

func (e *AsyncRejectionError) Unwrap() error {
	return e.Err
}
