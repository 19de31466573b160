package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a memory has neither text nor media, or a
// chat query is blank. It is never retried.
var ErrEmptyInput = errors.New("empty input")

// TransportError reports that a native provider call could not complete.
// Err is usually an *llm.Error.
type TransportError struct {
	Model string
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("could not complete %s with %s: %v", e.Op, e.Model, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportFailure reports whether err is or wraps a *TransportError.
func IsTransportFailure(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
