package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in a collaborator call: transport
// errors, bad status codes or malformed responses. The store is left untouched
// and the user may retry the same action.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrBusy indicates a collaborator call is already in flight for the session.
type ErrBusy struct {
	Action string
}

func (e *ErrBusy) Error() string {
	return fmt.Sprintf("busy: %s rejected while a request is in flight", e.Action)
}

// ErrNavigation indicates a view transition that is not allowed.
type ErrNavigation struct {
	From   View
	To     View
	Reason string
}

func (e *ErrNavigation) Error() string {
	return fmt.Sprintf("cannot navigate from %s to %s: %s", e.From, e.To, e.Reason)
}

// ErrInvariantViolation is a programming error: a duplicate analysis id or a
// malformed commit. It is never expected from valid inputs.
type ErrInvariantViolation struct {
	Invariant string
	Detail    string
}

func (e *ErrInvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated [%s]: %s", e.Invariant, e.Detail)
}

// ErrSessionClosed is returned by operations on an ended session.
var ErrSessionClosed = errors.New("session closed")
