package feed

import (
	"errors"
	"fmt"
)

// TransportError means the request could not be completed
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError means the source answered but the answer was unusable:
// a non-2xx status or a body that could not be decoded
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ErrEmptyResult is returned when the source reports zero aircraft
var ErrEmptyResult = errors.New("no live flights found")

// failureKind names the failure class for logs and the result reason
func failureKind(err error) string {
	var transport *TransportError
	var upstream *UpstreamError
	switch {
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &upstream):
		return "upstream"
	case errors.Is(err, ErrEmptyResult):
		return "empty"
	default:
		return "unknown"
	}
}
