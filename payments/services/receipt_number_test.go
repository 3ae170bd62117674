package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"welfare-receipts-backend/utils"
)

var receiptNumberPattern = regexp.MustCompile(`^RCP-\d{8}-\d{6}-\d{3}$`)

func TestReceiptNumberFormat(t *testing.T) {
	g := NewReceiptNumberGenerator(WorkerReceiptPrefix, func(context.Context, string) (bool, error) { return false, nil })
	g.RandIntn = func(int) int { return 7 }
	at := time.Date(2025, 1, 1, 9, 30, 15, 123_456_789, time.UTC)

	if got := g.Candidate(at); got != "RCP-20250101-093015-463" {
		t.Fatalf("unexpected candidate %s", got)
	}

	num, err := g.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !receiptNumberPattern.MatchString(num) {
		t.Fatalf("%s does not match the receipt number format", num)
	}
}

func TestReceiptNumberRetriesThenExhausts(t *testing.T) {
	calls := 0
	var slept []time.Duration
	g := NewReceiptNumberGenerator(EmployerReceiptPrefix, func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	g.MaxAttempts = 4
	g.Sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := g.Next(context.Background())
	if !errors.Is(err, utils.ErrGenerationExhausted) {
		t.Fatalf("expected ErrGenerationExhausted, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	want := []time.Duration{defaultNumberBackoff, 2 * defaultNumberBackoff, 3 * defaultNumberBackoff}
	if len(slept) != len(want) {
		t.Fatalf("expected %d backoffs, got %v", len(want), slept)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("backoff %d = %s, want %s", i, slept[i], want[i])
		}
	}
}

func TestReceiptNumberSkipsTakenCandidate(t *testing.T) {
	taken := true
	g := NewReceiptNumberGenerator(WorkerReceiptPrefix, func(context.Context, string) (bool, error) {
		was := taken
		taken = false
		return was, nil
	})
	g.Sleep = func(time.Duration) {}

	if _, err := g.Next(context.Background()); err != nil {
		t.Fatalf("expected the second candidate to succeed, got %v", err)
	}
}
