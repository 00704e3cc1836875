package record

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a raw reading with a missing field or a field of the wrong kind
	ErrValidation = errors.New("invalid reading")
	// ErrMalformedTimestamp marks a timestamp that is not ISO-8601
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// ValidationError names the offending field of a raw reading
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: field %q %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TimestampError carries the unparsable timestamp string
type TimestampError struct {
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("%v %q: %v", ErrMalformedTimestamp, e.Value, e.Err)
}

func (e *TimestampError) Unwrap() []error { return []error{ErrMalformedTimestamp, e.Err} }
