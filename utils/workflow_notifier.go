package utils

import (
	"time"

	"welfare-receipts-backend/db/models"
)

// WorkflowNotifier receives stage transitions after they commit. The websocket hub is
// the production implementation.
type WorkflowNotifier interface {
	Publish(event models.WorkflowEvent)
}

// Notify publishes ev when a notifier is configured
func Notify(n WorkflowNotifier, ev models.WorkflowEvent) {
	if n == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	n.Publish(ev)
}
