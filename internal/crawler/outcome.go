package crawler

import (
	"errors"
	"fmt"
)

// Failure taxonomy for per-operation outcomes. None of these abort a run.
var (
	// ErrTransport covers timeouts, connection failures, and unreadable bodies.
	ErrTransport = errors.New("transport fault")
	// ErrRemoteAPI covers error payloads reported by a remote API.
	ErrRemoteAPI = errors.New("remote api fault")
	// ErrNotFound marks a legitimate empty result, e.g. no career page.
	ErrNotFound = errors.New("not found")
)

// Fault tags why an operation produced no value.
type Fault string

// Fault values.
const (
	FaultNone      Fault = ""
	FaultTransport Fault = "transport"
	FaultRemoteAPI Fault = "remote_api"
	FaultNotFound  Fault = "not_found"
)

// Outcome is the result of one unit operation: a value, or a tagged failure.
type Outcome[T any] struct {
	Value T
	Fault Fault
	Err   error
}

// Succeeded wraps a value.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Failed builds a failed outcome, tagging err with its fault class.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Fault: FaultOf(err), Err: err}
}

// OK reports whether the operation produced a value.
func (o Outcome[T]) OK() bool {
	return o.Fault == FaultNone
}

// FaultOf classifies err against the sentinel taxonomy. Unclassified errors
// count as transport faults.
func FaultOf(err error) Fault {
	switch {
	case err == nil:
		return FaultNone
	case errors.Is(err, ErrNotFound):
		return FaultNotFound
	case errors.Is(err, ErrRemoteAPI):
		return FaultRemoteAPI
	default:
		return FaultTransport
	}
}

// TransportError wraps err so it matches ErrTransport.
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}
