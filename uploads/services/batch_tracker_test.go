package services

import (
	"context"
	"strings"
	"testing"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/internal/testdb"
	"welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/utils"

	"github.com/shopspring/decimal"
)

func registerInput(fileName string) RegisterBatchInput {
	hours := decimal.NewFromInt(8)
	rate := decimal.NewFromInt(100)
	return RegisterBatchInput{
		FileName:   fileName,
		EmployerID: "EMP01",
		ToliID:     "TOLI01",
		Records: []RawRecordInput{
			{WorkerID: "W1", WorkerName: "Asha", BankAccount: "ACCT12345678", WorkDate: "2025-01-02", HoursWorked: &hours, HourlyRate: &rate, PaymentAmount: decimal.NewFromInt(800)},
			{WorkerID: "W2", WorkerName: "Ravi", BankAccount: "ACCT87654321", WorkDate: "not a date", PaymentAmount: decimal.NewFromInt(500)},
		},
	}
}

func TestRegisterBatchStoresRowsAsUploaded(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	repo := repositories.NewUploadRepository(db)
	tracker := NewBatchTracker(repo, nil)

	batch, err := tracker.RegisterBatch(ctx, registerInput("january.xlsx"), "clerk@example.com")
	if err != nil {
		t.Fatalf("RegisterBatch: %v", err)
	}
	if batch.TotalCount != 2 || batch.Status != models.BatchUploaded || batch.FileHash == "" {
		t.Fatalf("unexpected batch %+v", batch)
	}

	records, err := repo.GetRecordsByStatus(ctx, batch.ID, models.RawRecordUploaded)
	if err != nil {
		t.Fatalf("GetRecordsByStatus: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 uploaded rows, got %d", len(records))
	}
	if records[0].RowNumber != 1 || records[1].RowNumber != 2 {
		t.Fatalf("row numbers not defaulted: %d, %d", records[0].RowNumber, records[1].RowNumber)
	}
	if records[0].WorkDate == nil || records[1].WorkDate != nil {
		t.Fatal("expected only the parseable work date to be stored")
	}
	if records[1].EmployerID != "EMP01" {
		t.Fatalf("batch employer not inherited, got %q", records[1].EmployerID)
	}
}

func TestRegisterBatchRejectsDuplicates(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	tracker := NewBatchTracker(repositories.NewUploadRepository(db), nil)

	if _, err := tracker.RegisterBatch(ctx, registerInput("a.xlsx"), "clerk"); err != nil {
		t.Fatalf("RegisterBatch: %v", err)
	}
	if _, err := tracker.RegisterBatch(ctx, registerInput("b.xlsx"), "clerk"); !utils.IsConflict(err) {
		t.Fatalf("expected conflict for identical rows, got %v", err)
	}

	dup := registerInput("c.xlsx")
	dup.Records[0].RowNumber = 2
	if _, err := tracker.RegisterBatch(ctx, dup, "clerk"); !utils.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for a repeated row number, got %v", err)
	}

	if _, err := tracker.RegisterBatch(ctx, RegisterBatchInput{FileName: "empty.xlsx"}, "clerk"); !utils.IsInvalidInput(err) {
		t.Fatalf("expected invalid input for an empty batch, got %v", err)
	}
}

func TestDeleteBatchOnlyBeforeReceiptGeneration(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	repo := repositories.NewUploadRepository(db)
	reports := utils.NewLocalFileStorage(t.TempDir())
	tracker := NewBatchTracker(repo, reports)

	open := testdb.SeedBatch(t, db, models.BatchValidated, testdb.Record(1, "100.00", models.RawRecordValidated))
	reportPath, err := reports.UploadFileFromReader(ctx, strings.NewReader("report"), ReportFolder+"/open_rejected.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Model(open).Update("report_path", reportPath).Error; err != nil {
		t.Fatal(err)
	}

	if err := tracker.DeleteBatch(ctx, open.ID); err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if _, err := repo.GetBatchByID(ctx, open.ID); !utils.IsNotFound(err) {
		t.Fatalf("expected deleted batch to be gone, got %v", err)
	}
	if exists, _ := reports.FileExists(ctx, reportPath); exists {
		t.Fatal("expected the batch report to be deleted with the batch")
	}

	generated := testdb.SeedBatch(t, db, models.BatchValidated, testdb.Record(1, "100.00", models.RawRecordRequestGenerated))
	if err := tracker.DeleteBatch(ctx, generated.ID); !utils.IsInvalidState(err) {
		t.Fatalf("expected invalid state, got %v", err)
	}
}
