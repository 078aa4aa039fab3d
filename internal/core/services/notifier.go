package services

import (
	"log/slog"

	"github.com/hanoutiya/hanoutiya-core/internal/core/ports"
)

// Notifier is the process-wide failure channel. Each failed mutation is
// published exactly once; a single listener (the gateway, a CLI, a test)
// drains Events and turns them into user-facing notifications.
//
// Publish never blocks the mutation path: when no listener keeps up, the
// oldest events are dropped and counted, which mirrors how transient toast
// notifications behave anyway.
type Notifier struct {
	events chan ports.FailureEvent
	logger *slog.Logger
}

// NewNotifier builds a notifier with the given channel capacity.
func NewNotifier(capacity int, logger *slog.Logger) *Notifier {
	if capacity <= 0 {
		capacity = 64
	}
	return &Notifier{
		events: make(chan ports.FailureEvent, capacity),
		logger: logger,
	}
}

// Publish routes the event by classification and queues it for the
// listener.
func (n *Notifier) Publish(event ports.FailureEvent) {
	if event.PermissionDenied() {
		n.logger.Error("store refused operation",
			slog.String("path", event.Context.Path),
			slog.String("operation", event.Context.Operation),
			slog.String("error", event.Err.Error()))
	} else {
		n.logger.Warn("operation failed",
			slog.String("path", event.Context.Path),
			slog.String("operation", event.Context.Operation),
			slog.String("error", event.Err.Error()))
	}

	for {
		select {
		case n.events <- event:
			return
		default:
			// Full: drop the oldest event to make room.
			select {
			case <-n.events:
				n.logger.Warn("failure event dropped, no listener draining")
			default:
			}
		}
	}
}

// Events is the stream a listener drains.
func (n *Notifier) Events() <-chan ports.FailureEvent {
	return n.events
}
