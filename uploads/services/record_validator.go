package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"welfare-receipts-backend/db/models"

	"github.com/shopspring/decimal"
)

var (
	bankAccountPattern = regexp.MustCompile(`^[A-Za-z0-9]{10,20}$`)
	phonePattern       = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	emailPattern       = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

	maxHoursWorked   = decimal.NewFromInt(24)
	maxHourlyRate    = decimal.NewFromInt(10000)
	maxPaymentAmount = decimal.NewFromInt(1000000)
	amountTolerance  = decimal.NewFromFloat(0.01)
)

// RejectionSeparator joins the individual violations of one row.
const RejectionSeparator = "; "

// ValidateRecord checks one raw row and returns every violation it finds, in a fixed
// order. An empty result means the row is valid. now anchors the work-date window.
func ValidateRecord(record models.RawUploadRecord, now time.Time) []string {
	var violations []string

	workerID := strings.TrimSpace(record.WorkerID)
	workerName := strings.TrimSpace(record.WorkerName)
	bankAccount := strings.TrimSpace(record.BankAccount)
	phone := strings.TrimSpace(record.Phone)
	email := strings.TrimSpace(record.Email)

	// Required fields
	if workerID == "" {
		violations = append(violations, "Worker ID is required")
	}
	if workerName == "" {
		violations = append(violations, "Worker name is required")
	}
	if !record.PaymentAmount.IsPositive() {
		violations = append(violations, "Payment amount must be greater than zero")
	}
	if bankAccount == "" {
		violations = append(violations, "Bank account is required")
	}
	if record.WorkDate == nil {
		violations = append(violations, "Work date is required")
	}

	// Field lengths
	if utf8.RuneCountInString(workerID) > 50 {
		violations = append(violations, "Worker ID must not exceed 50 characters")
	}
	if n := utf8.RuneCountInString(workerName); workerName != "" && (n < 2 || n > 100) {
		violations = append(violations, "Worker name must be between 2 and 100 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(record.EmployerID)) > 50 {
		violations = append(violations, "Employer ID must not exceed 50 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(record.ToliID)) > 50 {
		violations = append(violations, "Toli ID must not exceed 50 characters")
	}
	if utf8.RuneCountInString(email) > 100 {
		violations = append(violations, "Email must not exceed 100 characters")
	}

	// Formats
	if bankAccount != "" && !bankAccountPattern.MatchString(bankAccount) {
		violations = append(violations, "Bank account must be 10 to 20 alphanumeric characters")
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		violations = append(violations, "Phone number must be 10 to 15 digits with an optional leading +")
	}
	if email != "" && !emailPattern.MatchString(email) {
		violations = append(violations, "Email address is not valid")
	}

	// Work date window, compared as calendar days
	if record.WorkDate != nil {
		loc := now.Location()
		workDay := dayOf(record.WorkDate.In(loc))
		today := dayOf(now)
		if workDay.After(today) {
			violations = append(violations, "Work date cannot be in the future")
		} else if workDay.Before(today.AddDate(-1, 0, 0)) {
			violations = append(violations, "Work date cannot be more than one year in the past")
		}
	}

	// Ranges
	if record.HoursWorked.Valid {
		h := record.HoursWorked.Decimal
		if !h.IsPositive() || h.GreaterThan(maxHoursWorked) {
			violations = append(violations, "Hours worked must be greater than 0 and at most 24")
		}
	}
	if record.HourlyRate.Valid {
		r := record.HourlyRate.Decimal
		if !r.IsPositive() || r.GreaterThan(maxHourlyRate) {
			violations = append(violations, "Hourly rate must be greater than 0 and at most 10000")
		}
	}
	if record.PaymentAmount.GreaterThan(maxPaymentAmount) {
		violations = append(violations, "Payment amount must not exceed 1000000")
	}

	// Arithmetic consistency
	if record.HoursWorked.Valid && record.HourlyRate.Valid {
		expected := record.HoursWorked.Decimal.Mul(record.HourlyRate.Decimal)
		if expected.Sub(record.PaymentAmount).Abs().GreaterThan(amountTolerance) {
			violations = append(violations, fmt.Sprintf(
				"Payment amount %s does not match hours worked x hourly rate (%s)",
				record.PaymentAmount.StringFixed(2), expected.StringFixed(2)))
		}
	}

	return violations
}

// RejectionReason joins violations into the stored reason text
func RejectionReason(violations []string) string {
	return strings.Join(violations, RejectionSeparator)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
