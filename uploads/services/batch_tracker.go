package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RawRecordInput is one already-parsed row handed over by the ingestion collaborator.
type RawRecordInput struct {
	RowNumber     int              `json:"row_number"`
	WorkerID      string           `json:"worker_id"`
	WorkerName    string           `json:"worker_name"`
	EmployerID    string           `json:"employer_id"`
	ToliID        string           `json:"toli_id"`
	BankAccount   string           `json:"bank_account"`
	Phone         string           `json:"phone"`
	Email         string           `json:"email"`
	WorkDate      string           `json:"work_date"`
	HoursWorked   *decimal.Decimal `json:"hours_worked"`
	HourlyRate    *decimal.Decimal `json:"hourly_rate"`
	PaymentAmount decimal.Decimal  `json:"payment_amount"`
}

// RegisterBatchInput describes a stored upload file and its rows.
type RegisterBatchInput struct {
	BatchReference string           `json:"batch_reference"`
	FileName       string           `json:"file_name"`
	FileHash       string           `json:"file_hash"`
	StoragePath    string           `json:"storage_path"`
	EmployerID     string           `json:"employer_id"`
	ToliID         string           `json:"toli_id"`
	Records        []RawRecordInput `json:"records"`
}

type BatchTracker struct {
	Repo    repositories.UploadRepository
	Reports utils.FileStorage
}

// NewBatchTracker takes the storage the rejected-records reports live in; it may be nil.
func NewBatchTracker(repo repositories.UploadRepository, reports utils.FileStorage) *BatchTracker {
	return &BatchTracker{Repo: repo, Reports: reports}
}

// RegisterBatch stores the batch metadata and its rows as UPLOADED. A file hash that is
// already known yields a ConflictError. When no hash is supplied it is derived from the
// rows themselves.
func (t *BatchTracker) RegisterBatch(ctx context.Context, input RegisterBatchInput, uploadedBy string) (*models.UploadedBatch, error) {
	if strings.TrimSpace(input.FileName) == "" {
		return nil, utils.NewInvalidInput("file_name", "is required")
	}
	if len(input.Records) == 0 {
		return nil, utils.NewInvalidInput("records", "batch has no records")
	}

	fileHash := strings.TrimSpace(input.FileHash)
	if fileHash == "" {
		payload, err := json.Marshal(input.Records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode records for hashing: %w", err)
		}
		if fileHash, err = utils.HashReader(bytes.NewReader(payload)); err != nil {
			return nil, fmt.Errorf("failed to hash records: %w", err)
		}
	}

	if existing, err := t.Repo.GetBatchByHash(ctx, fileHash); err == nil {
		return nil, utils.NewConflict("batch", existing.FileName)
	} else if !utils.IsNotFound(err) {
		return nil, err
	}

	records := make([]models.RawUploadRecord, 0, len(input.Records))
	seenRows := make(map[int]bool, len(input.Records))
	for i, in := range input.Records {
		rowNumber := in.RowNumber
		if rowNumber == 0 {
			rowNumber = i + 1
		}
		if seenRows[rowNumber] {
			return nil, utils.NewInvalidInput("records", fmt.Sprintf("duplicate row number %d", rowNumber))
		}
		seenRows[rowNumber] = true

		record := models.RawUploadRecord{
			RowNumber:     rowNumber,
			WorkerID:      strings.TrimSpace(in.WorkerID),
			WorkerName:    strings.TrimSpace(in.WorkerName),
			EmployerID:    firstNonEmpty(in.EmployerID, input.EmployerID),
			ToliID:        firstNonEmpty(in.ToliID, input.ToliID),
			BankAccount:   strings.TrimSpace(in.BankAccount),
			Phone:         strings.TrimSpace(in.Phone),
			Email:         strings.TrimSpace(in.Email),
			PaymentAmount: in.PaymentAmount,
			Status:        models.RawRecordUploaded,
		}
		if in.HoursWorked != nil {
			record.HoursWorked = decimal.NewNullDecimal(*in.HoursWorked)
		}
		if in.HourlyRate != nil {
			record.HourlyRate = decimal.NewNullDecimal(*in.HourlyRate)
		}
		// An unparseable date is left empty; the validator reports it as missing.
		if v := strings.TrimSpace(in.WorkDate); v != "" {
			if d, err := utils.ParseDate(v); err == nil {
				record.WorkDate = &d
			}
		}
		records = append(records, record)
	}

	batchRef := strings.TrimSpace(input.BatchReference)
	if batchRef == "" {
		batchRef = fmt.Sprintf("BATCH-%s-%s", time.Now().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
	}

	batch := &models.UploadedBatch{
		ID:             uuid.New(),
		BatchReference: batchRef,
		FileName:       input.FileName,
		FileHash:       fileHash,
		StoragePath:    input.StoragePath,
		EmployerID:     firstNonEmpty(input.EmployerID, records[0].EmployerID),
		ToliID:         firstNonEmpty(input.ToliID, records[0].ToliID),
		TotalCount:     len(records),
		Status:         models.BatchUploaded,
		UploadedBy:     uploadedBy,
	}

	if err := t.Repo.CreateBatch(ctx, batch, records); err != nil {
		return nil, err
	}

	config.Logger.Info("Batch registered",
		zap.String("batchID", batch.ID.String()),
		zap.String("fileName", batch.FileName),
		zap.Int("records", len(records)))
	return batch, nil
}

// DeleteBatch removes a batch and its rows, but only while no receipt has been generated
// from it.
func (t *BatchTracker) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	batch, err := t.Repo.GetBatchByID(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status == models.BatchProcessed {
		return utils.NewInvalidState("batch", batchID.String(), string(batch.Status), "delete")
	}

	counts, err := t.Repo.CountRecordsByStatus(ctx, batchID)
	if err != nil {
		return err
	}
	if counts[string(models.RawRecordRequestGenerated)] > 0 {
		return utils.NewInvalidState("batch", batchID.String(), string(models.RawRecordRequestGenerated), "delete")
	}

	if err := t.Repo.DeleteBatch(ctx, batchID); err != nil {
		return err
	}

	if t.Reports != nil && batch.ReportPath != "" {
		if err := t.Reports.DeleteFile(ctx, batch.ReportPath); err != nil {
			config.Logger.Warn("Failed to delete rejected records report",
				zap.String("batchID", batchID.String()),
				zap.String("reportPath", batch.ReportPath),
				zap.Error(err))
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
