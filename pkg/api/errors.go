package api

import (
	"errors"
	"fmt"
)

// ConnectivityError wraps a transport-level failure: the request never
// produced an HTTP response.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// ServerError is a non-2xx response with the server's error message.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// AsServerError checks if err is a ServerError and returns it.
func AsServerError(err error) (*ServerError, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ValidationError is a missing or malformed local input, caught before any
// request is issued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrNoCredential is returned when a call requiring authorization is made
// without a bearer token. This is a precondition failure, not retryable.
var ErrNoCredential = errors.New("no bearer credential available")

// PartialBatchError reports a multi-item operation where some items failed
// while others succeeded. The per-item outcomes live with the orchestrator;
// this error only summarizes.
type PartialBatchError struct {
	Total  int
	Failed int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%d of %d items failed", e.Failed, e.Total)
}

// AsPartialBatch checks if err is a PartialBatchError and returns it.
func AsPartialBatch(err error) (*PartialBatchError, bool) {
	var pe *PartialBatchError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
