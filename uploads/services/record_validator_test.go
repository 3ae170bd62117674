package services

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/internal/testdb"

	"github.com/shopspring/decimal"
)

var validatorNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func validRecord() models.RawUploadRecord {
	r := testdb.Record(1, "800.00", models.RawRecordUploaded)
	workDate := validatorNow.AddDate(0, 0, -3)
	r.WorkDate = &workDate
	return r
}

func TestValidateRecordAcceptsValidRow(t *testing.T) {
	if v := ValidateRecord(validRecord(), validatorNow); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}
}

func TestValidateRecordReportsRequiredFieldsInOrder(t *testing.T) {
	got := ValidateRecord(models.RawUploadRecord{}, validatorNow)
	want := []string{
		"Worker ID is required",
		"Worker name is required",
		"Payment amount must be greater than zero",
		"Bank account is required",
		"Work date is required",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("violations mismatch\n got: %v\nwant: %v", got, want)
	}
}

func TestValidateRecordRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.RawUploadRecord)
		want   string
	}{
		{"future work date", func(r *models.RawUploadRecord) {
			d := validatorNow.AddDate(0, 0, 1)
			r.WorkDate = &d
		}, "Work date cannot be in the future"},
		{"work date older than a year", func(r *models.RawUploadRecord) {
			d := validatorNow.AddDate(-1, 0, -1)
			r.WorkDate = &d
		}, "Work date cannot be more than one year in the past"},
		{"short bank account", func(r *models.RawUploadRecord) { r.BankAccount = "12345" }, "Bank account must be 10 to 20 alphanumeric characters"},
		{"bad phone", func(r *models.RawUploadRecord) { r.Phone = "12-34" }, "Phone number must be 10 to 15 digits with an optional leading +"},
		{"bad email", func(r *models.RawUploadRecord) { r.Email = "not-an-email" }, "Email address is not valid"},
		{"one letter name", func(r *models.RawUploadRecord) { r.WorkerName = "A" }, "Worker name must be between 2 and 100 characters"},
		{"hours over a day", func(r *models.RawUploadRecord) {
			r.HoursWorked = decimal.NewNullDecimal(decimal.NewFromInt(25))
			r.HourlyRate = decimal.NewNullDecimal(decimal.NewFromInt(32))
		}, "Hours worked must be greater than 0 and at most 24"},
		{"amount over limit", func(r *models.RawUploadRecord) {
			r.PaymentAmount = decimal.NewFromInt(1000001)
			r.HoursWorked = decimal.NullDecimal{}
			r.HourlyRate = decimal.NullDecimal{}
		}, "Payment amount must not exceed 1000000"},
		{"amount does not match hours x rate", func(r *models.RawUploadRecord) {
			r.PaymentAmount = decimal.RequireFromString("800.02")
		}, "Payment amount 800.02 does not match hours worked x hourly rate (800.00)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(&r)
			got := ValidateRecord(r, validatorNow)
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("expected [%s], got %v", tt.want, got)
			}
		})
	}
}

func TestValidateRecordBoundaries(t *testing.T) {
	r := validRecord()
	yearAgo := validatorNow.AddDate(-1, 0, 0)
	r.WorkDate = &yearAgo
	r.PaymentAmount = decimal.RequireFromString("800.01")
	if v := ValidateRecord(r, validatorNow); len(v) != 0 {
		t.Fatalf("a date exactly one year back and a 0.01 difference are allowed, got %v", v)
	}

	today := validatorNow.Add(13 * time.Hour)
	r.WorkDate = &today
	if v := ValidateRecord(r, validatorNow); len(v) != 0 {
		t.Fatalf("later the same day is not the future, got %v", v)
	}
}

func TestValidateRecordIsDeterministic(t *testing.T) {
	r := validRecord()
	r.BankAccount = "x"
	r.Email = "bad"
	first := RejectionReason(ValidateRecord(r, validatorNow))
	for i := 0; i < 5; i++ {
		if again := RejectionReason(ValidateRecord(r, validatorNow)); again != first {
			t.Fatalf("run %d produced %q, want %q", i, again, first)
		}
	}
	if !strings.Contains(first, RejectionSeparator) {
		t.Fatalf("expected two joined violations, got %q", first)
	}
}
