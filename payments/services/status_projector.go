package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Projected batch statuses
const (
	WorkflowUploaded  = "UPLOADED"
	WorkflowValidated = "VALIDATED"
	WorkflowProcessed = "PROCESSED"
	WorkflowUnknown   = "UNKNOWN"
)

// Next actions offered to the uploader
const (
	ActionStartValidation  = "START_VALIDATION"
	ActionGenerateReceipt  = "GENERATE_RECEIPT"
	ActionReceiptGenerated = "RECEIPT_GENERATED"
	ActionNone             = "NONE"
)

// WorkflowView is the read-side projection of a batch's raw-record histogram.
type WorkflowView struct {
	Status         string           `json:"status"`
	Label          string           `json:"label"`
	NextAction     string           `json:"next_action"`
	ValidatedCount int64            `json:"validated_count"`
	RejectedCount  int64            `json:"rejected_count"`
	PendingCount   int64            `json:"pending_count"`
	ProcessedCount int64            `json:"processed_count"`
	Counts         map[string]int64 `json:"counts"`
}

var processedStatuses = []string{"PAYMENT_REQUESTED", "REQUEST_GENERATED", "GENERATED"}
var failedStatuses = []string{"FAILED", "REJECTED"}

// ProjectStatus derives the batch status and next action from per-status record counts.
// Keys are upper-cased status names; unknown keys are ignored.
func ProjectStatus(counts map[string]int64) WorkflowView {
	normalized := make(map[string]int64, len(counts))
	for status, n := range counts {
		if n > 0 {
			normalized[strings.ToUpper(strings.TrimSpace(status))] += n
		}
	}

	view := WorkflowView{
		Counts:         normalized,
		ValidatedCount: normalized["VALIDATED"],
		PendingCount:   normalized["UPLOADED"],
		RejectedCount:  sum(normalized, failedStatuses),
		ProcessedCount: sum(normalized, processedStatuses),
	}

	switch {
	case view.ProcessedCount > 0:
		view.Status = WorkflowProcessed
		view.NextAction = ActionReceiptGenerated
	case view.ValidatedCount > 0 || view.RejectedCount > 0:
		view.Status = WorkflowValidated
		if view.ValidatedCount > 0 {
			view.NextAction = ActionGenerateReceipt
		} else {
			view.NextAction = ActionStartValidation
		}
	case view.PendingCount > 0:
		view.Status = WorkflowUploaded
		view.NextAction = ActionStartValidation
	default:
		view.Status = WorkflowUnknown
		view.NextAction = ActionNone
	}

	view.Label = StatusLabel(view.Status)
	return view
}

// StatusLabel turns an enum value such as SEND_TO_BOARD into "Send To Board"
func StatusLabel(status string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.ReplaceAll(status, "_", " ")))
}

func sum(counts map[string]int64, keys []string) int64 {
	var total int64
	for _, k := range keys {
		total += counts[k]
	}
	return total
}
