package services

import (
	"context"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	paymentServices "welfare-receipts-backend/payments/services"
	"welfare-receipts-backend/uploads/repositories"
	"welfare-receipts-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const batchLockTTL = 5 * time.Minute

// ValidationReporter publishes the rejected rows of a batch somewhere a human will see them.
type ValidationReporter interface {
	ReportRejected(ctx context.Context, batch *models.UploadedBatch, rejected []models.RawUploadRecord) (string, error)
}

// ValidationResult summarises one validation run.
type ValidationResult struct {
	BatchID    uuid.UUID                    `json:"batch_id"`
	Checked    int                          `json:"checked"`
	Validated  int                          `json:"validated"`
	Rejected   int                          `json:"rejected"`
	ReportPath string                       `json:"report_path,omitempty"`
	Workflow   paymentServices.WorkflowView `json:"workflow"`
}

type ValidationService struct {
	Repo     repositories.UploadRepository
	Locker   utils.BatchLocker
	Reporter ValidationReporter
	Notifier utils.WorkflowNotifier
	Now      func() time.Time
}

func NewValidationService(repo repositories.UploadRepository, locker utils.BatchLocker, reporter ValidationReporter, notifier utils.WorkflowNotifier) *ValidationService {
	return &ValidationService{
		Repo:     repo,
		Locker:   locker,
		Reporter: reporter,
		Notifier: notifier,
		Now:      time.Now,
	}
}

// ValidateBatch runs the record validator over every UPLOADED row of the batch and writes
// the batch counts back. Rows in any other status are never revisited.
func (s *ValidationService) ValidateBatch(ctx context.Context, batchID uuid.UUID) (*ValidationResult, error) {
	batch, err := s.Repo.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if s.Locker != nil {
		release, ok, err := s.Locker.Acquire(ctx, "validate:"+batchID.String(), batchLockTTL)
		if err != nil {
			config.Logger.Warn("Batch lock unavailable, validating without it",
				zap.String("batchID", batchID.String()),
				zap.Error(err))
		} else if !ok {
			return nil, utils.NewConflict("batch validation", batchID.String())
		} else {
			defer release()
		}
	}

	records, err := s.Repo.GetRecordsByStatus(ctx, batchID, models.RawRecordUploaded)
	if err != nil {
		return nil, err
	}

	now := s.Now().In(utils.DateLocation)
	result := &ValidationResult{BatchID: batchID}
	var rejected []models.RawUploadRecord

	for _, record := range records {
		violations := ValidateRecord(record, now)
		if len(violations) == 0 {
			validatedAt := now
			updated, err := s.Repo.UpdateRecordValidation(ctx, record.ID, models.RawRecordValidated, "", &validatedAt)
			if err != nil {
				return nil, err
			}
			if updated {
				result.Validated++
			}
		} else {
			reason := RejectionReason(violations)
			updated, err := s.Repo.UpdateRecordValidation(ctx, record.ID, models.RawRecordRejected, reason, nil)
			if err != nil {
				return nil, err
			}
			if updated {
				result.Rejected++
				record.Status = models.RawRecordRejected
				record.RejectionReason = reason
				rejected = append(rejected, record)
			}
		}
		result.Checked++
	}

	counts, err := s.Repo.CountRecordsByStatus(ctx, batchID)
	if err != nil {
		return nil, err
	}
	result.Workflow = paymentServices.ProjectStatus(counts)

	updates := map[string]interface{}{
		"success_count": int(counts[string(models.RawRecordValidated)] + counts[string(models.RawRecordRequestGenerated)]),
		"failure_count": int(counts[string(models.RawRecordRejected)]),
	}
	if batch.Status == models.BatchUploaded {
		updates["status"] = models.BatchValidated
		updates["validated_at"] = now
	}

	if len(rejected) > 0 && s.Reporter != nil {
		reportPath, err := s.Reporter.ReportRejected(ctx, batch, rejected)
		if err != nil {
			config.Logger.Error("Failed to publish validation report",
				zap.String("batchID", batchID.String()),
				zap.Error(err))
		} else if reportPath != "" {
			result.ReportPath = reportPath
			updates["report_path"] = reportPath
		}
	}

	if err := s.Repo.UpdateBatch(ctx, batchID, updates); err != nil {
		return nil, err
	}

	config.Logger.Info("Batch validated",
		zap.String("batchID", batchID.String()),
		zap.Int("checked", result.Checked),
		zap.Int("validated", result.Validated),
		zap.Int("rejected", result.Rejected))

	utils.Notify(s.Notifier, models.WorkflowEvent{
		Type:       models.BatchValidatedEvent,
		BatchID:    batchID.String(),
		Reference:  batch.BatchReference,
		Status:     result.Workflow.Status,
		NextAction: result.Workflow.NextAction,
		OccurredAt: now,
	})

	return result, nil
}
