package services

import "testing"

func TestProjectStatus(t *testing.T) {
	tests := []struct {
		name       string
		counts     map[string]int64
		status     string
		nextAction string
	}{
		{"empty", map[string]int64{}, WorkflowUnknown, ActionNone},
		{"nil", nil, WorkflowUnknown, ActionNone},
		{"only uploaded", map[string]int64{"UPLOADED": 3}, WorkflowUploaded, ActionStartValidation},
		{"validated", map[string]int64{"VALIDATED": 1, "REJECTED": 2}, WorkflowValidated, ActionGenerateReceipt},
		{"all rejected", map[string]int64{"REJECTED": 2}, WorkflowValidated, ActionStartValidation},
		{"processed wins", map[string]int64{"REQUEST_GENERATED": 1, "VALIDATED": 1, "UPLOADED": 4}, WorkflowProcessed, ActionReceiptGenerated},
		{"lower case keys", map[string]int64{"payment_requested": 2}, WorkflowProcessed, ActionReceiptGenerated},
		{"unknown and zero counts", map[string]int64{"SOMETHING": 5, "VALIDATED": 0, "UPLOADED": -1}, WorkflowUnknown, ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := ProjectStatus(tt.counts)
			if view.Status != tt.status || view.NextAction != tt.nextAction {
				t.Fatalf("got %s/%s, want %s/%s", view.Status, view.NextAction, tt.status, tt.nextAction)
			}
			if view.Label == "" {
				t.Fatal("label must never be empty")
			}
		})
	}
}

func TestProjectStatusCounts(t *testing.T) {
	view := ProjectStatus(map[string]int64{"VALIDATED": 2, "REJECTED": 1, "FAILED": 1, "UPLOADED": 3, "GENERATED": 0})
	if view.ValidatedCount != 2 || view.RejectedCount != 2 || view.PendingCount != 3 || view.ProcessedCount != 0 {
		t.Fatalf("unexpected counts %+v", view)
	}
}

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"SEND_TO_BOARD":      "Send To Board",
		"VALIDATED":          "Validated",
		"PAYMENT_RECONCILED": "Payment Reconciled",
	}
	for in, want := range cases {
		if got := StatusLabel(in); got != want {
			t.Errorf("StatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestProjectStatusIsTotal walks every histogram with 0..2 rows per record status
func TestProjectStatusIsTotal(t *testing.T) {
	statuses := []string{"UPLOADED", "VALIDATED", "REJECTED", "FAILED", "PAYMENT_REQUESTED", "REQUEST_GENERATED", "GENERATED"}
	next := map[string][]string{
		WorkflowUploaded:  {ActionStartValidation},
		WorkflowValidated: {ActionGenerateReceipt, ActionStartValidation},
		WorkflowProcessed: {ActionReceiptGenerated},
		WorkflowUnknown:   {ActionNone},
	}

	combos := 1
	for range statuses {
		combos *= 3
	}
	for n := 0; n < combos; n++ {
		counts := make(map[string]int64, len(statuses))
		rest := n
		for _, s := range statuses {
			counts[s] = int64(rest % 3)
			rest /= 3
		}

		view := ProjectStatus(counts)
		actions, ok := next[view.Status]
		if !ok {
			t.Fatalf("%v projected to unexpected status %q", counts, view.Status)
		}
		if view.NextAction != actions[0] && (len(actions) == 1 || view.NextAction != actions[1]) {
			t.Fatalf("%v: next action %q does not belong to %s", counts, view.NextAction, view.Status)
		}

		processed := counts["PAYMENT_REQUESTED"] + counts["REQUEST_GENERATED"] + counts["GENERATED"]
		want := WorkflowUnknown
		switch {
		case processed > 0:
			want = WorkflowProcessed
		case counts["VALIDATED"]+counts["REJECTED"]+counts["FAILED"] > 0:
			want = WorkflowValidated
		case counts["UPLOADED"] > 0:
			want = WorkflowUploaded
		}
		if view.Status != want {
			t.Fatalf("%v: got %s, want %s", counts, view.Status, want)
		}
		if view.Status == WorkflowValidated && (view.NextAction == ActionGenerateReceipt) != (counts["VALIDATED"] > 0) {
			t.Fatalf("%v: GENERATE_RECEIPT offered with %d validated rows", counts, counts["VALIDATED"])
		}
	}
}
