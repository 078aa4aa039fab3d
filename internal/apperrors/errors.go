package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a referenced document could not be found.
// Atomic ledger operations return it when the parent entity (customer,
// supplier) has been deleted out from under the caller.
var ErrNotFound = errors.New("document not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrInsufficientStock indicates that a stock adjustment would drive a
// product's stock below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// OperationContext identifies the mutation that produced a failure. It is
// attached to every classified error so the notification channel can report
// what was attempted, not just that something went wrong.
type OperationContext struct {
	Path      string // collection path, e.g. "products" or "suppliers/<id>/transactions"
	Operation string // "create", "update", "delete", "list", "atomic", "reset"
	Payload   any    // the data that was being written, if any
}

func (oc OperationContext) String() string {
	return fmt.Sprintf("%s %s", oc.Operation, oc.Path)
}

// PermissionError is the classification for writes and subscriptions the
// remote store refused outright. It is never retried; the triggering
// mutation is rolled back and the error is published on the failure channel.
type PermissionError struct {
	Context OperationContext
	Cause   error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s: %v", e.Context, e.Cause)
}

func (e *PermissionError) Unwrap() error { return e.Cause }

// NewPermissionError wraps a store-level refusal with its operation context.
func NewPermissionError(ctx OperationContext, cause error) *PermissionError {
	return &PermissionError{Context: ctx, Cause: cause}
}

// TransientError is the classification for everything else that can fail at
// the remote boundary: network errors, store-side validation, contention
// retry exhaustion. Callers may re-invoke the operation; the engine never
// retries a failed mutation on its own.
type TransientError struct {
	Context OperationContext
	Cause   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("operation failed: %s: %v", e.Context, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// NewTransientError wraps a generic remote failure with its operation context.
func NewTransientError(ctx OperationContext, cause error) *TransientError {
	return &TransientError{Context: ctx, Cause: cause}
}

// IsPermissionDenied reports whether err is classified as a store refusal.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
