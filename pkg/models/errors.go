package models

import (
	"fmt"

	"github.com/surrealdb/recordcodec/pkg/constants"
)

// SerializationError reports a value that cannot be written as the type
// its field resolved to. It is not recoverable by the codec.
type SerializationError struct {
	Field string
	Type  PropertyType
	Value Value
	Err   error
}

func (e *SerializationError) Error() string {
	msg := fmt.Sprintf("cannot serialize field %q as %s", e.Field, e.Type)
	if e.Value != nil {
		msg += fmt.Sprintf(" (value of type %s)", e.Value.Type())
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SerializationError) Unwrap() []error {
	if e.Err == nil {
		return []error{constants.ErrSerialization}
	}
	return []error{constants.ErrSerialization, e.Err}
}

// LinkCastError reports an element of a link collection that is not a
// reference.
type LinkCastError struct {
	Field string
	Index int
	Got   PropertyType
}

func (e *LinkCastError) Error() string {
	return fmt.Sprintf("field %q: element %d of type %s cannot be cast to a link", e.Field, e.Index, e.Got)
}

func (e *LinkCastError) Unwrap() error {
	return constants.ErrLinkCast
}
