package ports

import "github.com/hanoutiya/hanoutiya-core/internal/apperrors"

// FailureEvent is one failed-and-rolled-back mutation, as published on the
// process-wide failure channel. Listeners translate these into user-facing
// notifications; the engine itself never retries.
type FailureEvent struct {
	Context apperrors.OperationContext
	Err     error
}

// PermissionDenied reports whether the event came from a store refusal
// rather than a transient failure.
func (e FailureEvent) PermissionDenied() bool {
	return apperrors.IsPermissionDenied(e.Err)
}

// FailureNotifier receives exactly one event per failed mutation.
type FailureNotifier interface {
	Publish(event FailureEvent)
}
