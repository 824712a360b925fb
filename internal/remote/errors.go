package remote

import (
	"errors"
	"fmt"
)

// TransportError means the request never produced a usable response:
// network unreachable, timeout, or a non-2xx status without a parseable
// error body.
type TransportError struct {
	Op  string // "list", "get", "mutate"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SemanticError means the backend understood the request and rejected
// it: validation failure, stale state, permission denied, not found.
// Code and Reason come from the server's error envelope.
type SemanticError struct {
	Code   string
	Reason string
}

func (e *SemanticError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend rejected request: %s", e.Code)
	}
	return fmt.Sprintf("backend rejected request: %s: %s", e.Code, e.Reason)
}

// Server error codes the engine cares about.
const (
	CodeNotFound = "not_found"
	CodeConflict = "conflict"
)

// IsTransport reports whether err is (or wraps) a transport error.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsSemantic reports whether err is (or wraps) a semantic rejection.
func IsSemantic(err error) bool {
	var se *SemanticError
	return errors.As(err, &se)
}

// IsNotFound reports whether err is a not-found rejection.
func IsNotFound(err error) bool {
	var se *SemanticError
	return errors.As(err, &se) && se.Code == CodeNotFound
}
