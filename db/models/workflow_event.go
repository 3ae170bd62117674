package models

import "time"

type WorkflowEventType string

const (
	BatchValidatedEvent      WorkflowEventType = "BATCH_VALIDATED"
	ReceiptGeneratedEvent    WorkflowEventType = "RECEIPT_GENERATED"
	EmployerValidatedEvent   WorkflowEventType = "EMPLOYER_VALIDATED"
	BoardReceiptCreatedEvent WorkflowEventType = "BOARD_RECEIPT_CREATED"
	BoardVerifiedEvent       WorkflowEventType = "BOARD_VERIFIED"
	BoardRejectedEvent       WorkflowEventType = "BOARD_REJECTED"
	BoardReconciledEvent     WorkflowEventType = "BOARD_RECONCILED"
)

// WorkflowEvent is pushed to connected clients after a stage transition commits.
// It is not persisted.
type WorkflowEvent struct {
	Type       WorkflowEventType `json:"type"`
	BatchID    string            `json:"batch_id,omitempty"`
	Reference  string            `json:"reference"`
	Status     string            `json:"status"`
	NextAction string            `json:"next_action,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
