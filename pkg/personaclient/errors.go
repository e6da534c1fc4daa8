package personaclient

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the service reports no persona for the given
// unique id. It is an answer, not a failure; callers use it to verify
// deletions.
var ErrNotFound = errors.New("persona not found")

// TransportError reports a network failure or timeout before any HTTP status
// was received.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("persona service %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError reports a non-success HTTP status from the persona service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("persona service returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("persona service returned %d", e.Status)
}

// DataFormatError reports a response body that is not shaped as expected.
type DataFormatError struct {
	Reason string
}

func (e *DataFormatError) Error() string {
	return "unexpected persona service response: " + e.Reason
}
