package services

import (
	"context"
	"testing"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/internal/testdb"
	"welfare-receipts-backend/uploads/repositories"

	"github.com/shopspring/decimal"
)

type capturingReporter struct {
	rejected []models.RawUploadRecord
}

func (r *capturingReporter) ReportRejected(_ context.Context, batch *models.UploadedBatch, rejected []models.RawUploadRecord) (string, error) {
	r.rejected = rejected
	return "validation-reports/" + batch.FileName + "_rejected.xlsx", nil
}

func TestValidateBatchSplitsValidAndRejected(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	bad := testdb.Record(2, "500.00", models.RawRecordUploaded)
	bad.BankAccount = "123"
	worse := testdb.Record(3, "0", models.RawRecordUploaded)
	worse.HoursWorked = decimal.NullDecimal{}
	worse.HourlyRate = decimal.NullDecimal{}
	batch := testdb.SeedBatch(t, db, models.BatchUploaded,
		testdb.Record(1, "800.00", models.RawRecordUploaded), bad, worse)

	repo := repositories.NewUploadRepository(db)
	reporter := &capturingReporter{}
	notifier := &testdb.Notifier{}
	svc := NewValidationService(repo, nil, reporter, notifier)

	result, err := svc.ValidateBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("ValidateBatch: %v", err)
	}
	if result.Checked != 3 || result.Validated != 1 || result.Rejected != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(reporter.rejected) != 2 {
		t.Fatalf("expected 2 rows in the report, got %d", len(reporter.rejected))
	}
	if result.Workflow.NextAction != "GENERATE_RECEIPT" {
		t.Fatalf("expected GENERATE_RECEIPT next, got %+v", result.Workflow)
	}

	stored, err := repo.GetBatchByID(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatchByID: %v", err)
	}
	if stored.Status != models.BatchValidated || stored.SuccessCount != 1 || stored.FailureCount != 2 {
		t.Fatalf("unexpected batch state %+v", stored)
	}
	if stored.ValidatedAt == nil || stored.ReportPath == "" {
		t.Fatalf("expected validated_at and report_path to be set: %+v", stored)
	}

	rejected, err := repo.GetRecordsByStatus(ctx, batch.ID, models.RawRecordRejected)
	if err != nil {
		t.Fatalf("GetRecordsByStatus: %v", err)
	}
	for _, r := range rejected {
		if r.RejectionReason == "" {
			t.Fatalf("row %d rejected without a reason", r.RowNumber)
		}
	}

	if types := notifier.Types(); len(types) != 1 || types[0] != models.BatchValidatedEvent {
		t.Fatalf("expected one BATCH_VALIDATED event, got %v", types)
	}
}

func TestValidateBatchNeverRevisitsRows(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()

	batch := testdb.SeedBatch(t, db, models.BatchUploaded, testdb.Record(1, "800.00", models.RawRecordUploaded))
	svc := NewValidationService(repositories.NewUploadRepository(db), nil, nil, nil)
	svc.Now = func() time.Time { return time.Now() }

	if _, err := svc.ValidateBatch(ctx, batch.ID); err != nil {
		t.Fatalf("first ValidateBatch: %v", err)
	}
	again, err := svc.ValidateBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("second ValidateBatch: %v", err)
	}
	if again.Checked != 0 || again.Validated != 0 {
		t.Fatalf("second run should find nothing to check, got %+v", again)
	}
}
