package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrSerialization matches every *SerializationError.
	ErrSerialization = errors.New("wire: serialization failed")
	// ErrDeserialization matches every *DeserializationError.
	ErrDeserialization = errors.New("wire: deserialization failed")
)

// SerializationError reports a value that cannot be framed. Well-typed values
// produced by this package's constructors never trigger it.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrSerialization, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrSerialization, e.Reason)
}

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

func (e *SerializationError) Unwrap() error { return e.Err }

// DeserializationError reports a malformed or truncated frame.
type DeserializationError struct {
	Reason string
	Err    error
}

func (e *DeserializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrDeserialization, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrDeserialization, e.Reason)
}

func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

func (e *DeserializationError) Unwrap() error { return e.Err }
