package services

import (
	"context"
	"errors"
	"strings"
	"time"

	bleveModels "welfare-receipts-backend/bleve/models"
	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/payments/repositories"
	uploadRepositories "welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	generationLockTTL     = 10 * time.Minute
	receiptCreateAttempts = 3
)

// GenerationResult describes the worker receipt produced for a batch.
type GenerationResult struct {
	BatchID       uuid.UUID                    `json:"batch_id"`
	Processed     int                          `json:"processed"`
	ReceiptNumber string                       `json:"receipt_number,omitempty"`
	TotalAmount   decimal.Decimal              `json:"total_amount"`
	LinkFailures  int                          `json:"link_failures"`
	Receipt       *models.WorkerPaymentReceipt `json:"receipt,omitempty"`
}

type ReceiptAggregator struct {
	DB          *gorm.DB
	UploadRepo  uploadRepositories.UploadRepository
	PaymentRepo repositories.WorkerPaymentRepository
	ReceiptRepo repositories.WorkerReceiptRepository
	Numbers     *ReceiptNumberGenerator
	Locker      utils.BatchLocker
	Anomalies   utils.AnomalyRecorder
	Indexer     utils.ReceiptIndexer
	Notifier    utils.WorkflowNotifier
	Now         func() time.Time
}

func NewReceiptAggregator(
	db *gorm.DB,
	uploadRepo uploadRepositories.UploadRepository,
	paymentRepo repositories.WorkerPaymentRepository,
	receiptRepo repositories.WorkerReceiptRepository,
	locker utils.BatchLocker,
	anomalies utils.AnomalyRecorder,
	indexer utils.ReceiptIndexer,
	notifier utils.WorkflowNotifier,
) *ReceiptAggregator {
	return &ReceiptAggregator{
		DB:          db,
		UploadRepo:  uploadRepo,
		PaymentRepo: paymentRepo,
		ReceiptRepo: receiptRepo,
		Numbers:     NewReceiptNumberGenerator(WorkerReceiptPrefix, receiptRepo.ExistsReceiptNumber),
		Locker:      locker,
		Anomalies:   anomalies,
		Indexer:     indexer,
		Notifier:    notifier,
		Now:         time.Now,
	}
}

// GenerateReceipt turns the batch's VALIDATED records into worker payments under one new
// worker receipt and returns how many records were processed. Zero means there was
// nothing to do.
func (a *ReceiptAggregator) GenerateReceipt(ctx context.Context, batchID uuid.UUID, batchRef, actor string) (int, error) {
	result, err := a.Generate(ctx, batchID, batchRef, actor)
	if err != nil {
		return 0, err
	}
	return result.Processed, nil
}

// Generate does the work of GenerateReceipt and reports the receipt it created.
//
// Payments and the receipt are written in one transaction. Linking the payments to the
// receipt number and marking the source records happen afterwards, row by row; a row that
// cannot be linked is recorded as a linkage anomaly and skipped.
func (a *ReceiptAggregator) Generate(ctx context.Context, batchID uuid.UUID, batchRef, actor string) (*GenerationResult, error) {
	batch, err := a.UploadRepo.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if a.Locker != nil {
		release, ok, err := a.Locker.Acquire(ctx, "generate:"+batchID.String(), generationLockTTL)
		if err != nil {
			config.Logger.Warn("Batch lock unavailable, generating without it",
				zap.String("batchID", batchID.String()),
				zap.Error(err))
		} else if !ok {
			return nil, utils.NewConflict("receipt generation", batchID.String())
		} else {
			defer release()
		}
	}

	result := &GenerationResult{BatchID: batchID, TotalAmount: decimal.Zero}

	records, err := a.UploadRepo.GetRecordsByStatus(ctx, batchID, models.RawRecordValidated)
	if err != nil {
		return nil, err
	}
	records, err = a.skipAlreadyAggregated(ctx, batch, records)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		config.Logger.Info("No validated records to aggregate", zap.String("batchID", batchID.String()))
		return result, nil
	}

	if strings.TrimSpace(batchRef) == "" {
		batchRef = batch.BatchReference
	}
	employerID := firstNonEmpty(batch.EmployerID, records[0].EmployerID)
	toliID := firstNonEmpty(batch.ToliID, records[0].ToliID)

	payments := make([]models.WorkerPayment, 0, len(records))
	total := decimal.Zero
	for _, record := range records {
		payments = append(payments, PaymentFromRecord(record, employerID, toliID, actor))
		total = total.Add(record.PaymentAmount)
	}

	var receipt *models.WorkerPaymentReceipt
	for attempt := 1; ; attempt++ {
		receiptNumber, err := a.Numbers.Next(ctx)
		if err != nil {
			return nil, err
		}

		receipt = &models.WorkerPaymentReceipt{
			ReceiptNumber:  receiptNumber,
			BatchID:        batchID,
			BatchReference: batchRef,
			EmployerID:     employerID,
			ToliID:         toliID,
			TotalRecords:   len(payments),
			TotalAmount:    total,
			Status:         models.WorkerReceiptProcessed,
			CreatedBy:      actor,
		}

		err = a.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := a.PaymentRepo.CreatePayments(tx, payments); err != nil {
				return err
			}
			return a.ReceiptRepo.CreateReceipt(tx, receipt)
		})
		if err == nil {
			break
		}

		// Only a receipt-number race is worth another attempt; the payments are rebuilt
		// because the rolled back insert already assigned their ids.
		var conflict *utils.ConflictError
		if errors.As(err, &conflict) && conflict.Entity == "worker receipt" && attempt < receiptCreateAttempts {
			config.Logger.Warn("Receipt number taken concurrently, retrying",
				zap.String("receiptNumber", receiptNumber),
				zap.Int("attempt", attempt))
			for i := range payments {
				payments[i].ID = uuid.Nil
				payments[i].RequestReferenceNumber = ""
			}
			continue
		}
		config.Logger.Error("Failed to persist worker payments and receipt",
			zap.String("batchID", batchID.String()),
			zap.Error(err))
		return nil, err
	}

	now := a.Now()
	for _, payment := range payments {
		linked, err := a.PaymentRepo.LinkReceiptNumber(ctx, payment.ID, receipt.ReceiptNumber)
		if err == nil && !linked {
			err = errors.New("payment already carries a different receipt number")
		}
		if err != nil {
			result.LinkFailures++
			utils.RecordAnomaly(ctx, a.Anomalies, models.PaymentReceiptLinkAnomaly, payment.ID.String(),
				&batchID, receipt.ReceiptNumber, err, map[string]interface{}{
					"payment_id":       payment.ID.String(),
					"source_record_id": payment.SourceRecordID.String(),
				})
		}
	}
	for _, record := range records {
		marked, err := a.UploadRepo.MarkRecordRequestGenerated(ctx, record.ID, receipt.ReceiptNumber, now)
		if err == nil && !marked {
			err = errors.New("raw record is no longer VALIDATED")
		}
		if err != nil {
			result.LinkFailures++
			utils.RecordAnomaly(ctx, a.Anomalies, models.RawRecordLinkAnomaly, record.ID.String(),
				&batchID, receipt.ReceiptNumber, err, map[string]interface{}{
					"raw_record_id": record.ID.String(),
					"row_number":    record.RowNumber,
				})
		}
	}

	if err := a.UploadRepo.UpdateBatch(ctx, batchID, map[string]interface{}{
		"status":       models.BatchProcessed,
		"processed_at": now,
	}); err != nil {
		config.Logger.Error("Receipt created but batch status not updated",
			zap.String("batchID", batchID.String()),
			zap.String("receiptNumber", receipt.ReceiptNumber),
			zap.Error(err))
	}

	result.Processed = len(payments)
	result.ReceiptNumber = receipt.ReceiptNumber
	result.TotalAmount = receipt.TotalAmount
	result.Receipt = receipt

	config.Logger.Info("Worker receipt generated",
		zap.String("batchID", batchID.String()),
		zap.String("receiptNumber", receipt.ReceiptNumber),
		zap.Int("records", result.Processed),
		zap.String("totalAmount", receipt.TotalAmount.StringFixed(2)),
		zap.Int("linkFailures", result.LinkFailures))

	utils.IndexReceipt(a.Indexer, WorkerReceiptDocument(receipt))
	utils.Notify(a.Notifier, models.WorkflowEvent{
		Type:       models.ReceiptGeneratedEvent,
		BatchID:    batchID.String(),
		Reference:  receipt.ReceiptNumber,
		Status:     string(receipt.Status),
		NextAction: ActionReceiptGenerated,
		Actor:      actor,
		OccurredAt: now,
	})

	return result, nil
}

// skipAlreadyAggregated drops records that already have a payment. Those come from an
// earlier run that committed but never marked its records; they are left to reconciliation.
func (a *ReceiptAggregator) skipAlreadyAggregated(ctx context.Context, batch *models.UploadedBatch, records []models.RawUploadRecord) ([]models.RawUploadRecord, error) {
	if len(records) == 0 {
		return records, nil
	}
	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	existing, err := a.PaymentRepo.GetBySourceRecordIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return records, nil
	}

	paid := make(map[uuid.UUID]models.WorkerPayment, len(existing))
	for _, p := range existing {
		paid[p.SourceRecordID] = p
	}
	fresh := records[:0]
	for _, r := range records {
		p, ok := paid[r.ID]
		if !ok {
			fresh = append(fresh, r)
			continue
		}
		utils.RecordAnomaly(ctx, a.Anomalies, models.RawRecordLinkAnomaly, r.ID.String(), &batch.ID,
			utils.StringValue(p.ReceiptNumber), errors.New("record already aggregated but still VALIDATED"),
			map[string]interface{}{"raw_record_id": r.ID.String(), "payment_id": p.ID.String()})
	}
	return fresh, nil
}

// PaymentFromRecord maps a validated raw record onto a new worker payment. Columns the
// upload has no source for stay empty strings.
func PaymentFromRecord(record models.RawUploadRecord, employerID, toliID, actor string) models.WorkerPayment {
	return models.WorkerPayment{
		BatchID:        record.BatchID,
		SourceRecordID: record.ID,
		WorkerRef:      record.WorkerID,
		WorkerName:     record.WorkerName,
		EmployerID:     firstNonEmpty(record.EmployerID, employerID),
		ToliID:         firstNonEmpty(record.ToliID, toliID),
		BankAccount:    record.BankAccount,
		PaymentAmount:  record.PaymentAmount,
		BankName:       "",
		IFSCCode:       "",
		Remarks:        "",
		Status:         models.WorkerPaymentValidated,
		CreatedBy:      actor,
	}
}

// WorkerReceiptDocument is the search form of a worker receipt
func WorkerReceiptDocument(receipt *models.WorkerPaymentReceipt) bleveModels.ReceiptSearchDocument {
	amount, _ := receipt.TotalAmount.Float64()
	return bleveModels.ReceiptSearchDocument{
		Kind:                bleveModels.WorkerReceiptKind,
		Number:              receipt.ReceiptNumber,
		WorkerReceiptNumber: receipt.ReceiptNumber,
		EmployerID:          receipt.EmployerID,
		ToliID:              receipt.ToliID,
		Status:              string(receipt.Status),
		Amount:              amount,
		CreatedAt:           receipt.CreatedAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
