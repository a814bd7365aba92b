package client

import (
	"errors"
	"fmt"
)

// ErrRequestTooLarge matches any RequestTooLargeError.
var ErrRequestTooLarge = errors.New("request too large")

// ErrNoInputs is returned when no binary was found to analyze.
var ErrNoInputs = errors.New("no assemblies to analyze")

// RequestTooLargeError rejects a run whose inputs exceed the admission limit.
type RequestTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *RequestTooLargeError) Error() string {
	return fmt.Sprintf("request too large: inputs total %d bytes, the limit is %d bytes", e.Size, e.Limit)
}

func (e *RequestTooLargeError) Is(target error) bool {
	return target == ErrRequestTooLarge
}
