package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadRepository interface {
	CreateBatch(ctx context.Context, batch *models.UploadedBatch, records []models.RawUploadRecord) error
	GetBatchByID(ctx context.Context, batchID uuid.UUID) (*models.UploadedBatch, error)
	GetBatchByHash(ctx context.Context, fileHash string) (*models.UploadedBatch, error)
	UpdateBatch(ctx context.Context, batchID uuid.UUID, updates map[string]interface{}) error
	DeleteBatch(ctx context.Context, batchID uuid.UUID) error

	GetRecordByID(ctx context.Context, recordID uuid.UUID) (*models.RawUploadRecord, error)
	GetRecordsByStatus(ctx context.Context, batchID uuid.UUID, status models.RawRecordStatus) ([]models.RawUploadRecord, error)
	UpdateRecordValidation(ctx context.Context, recordID uuid.UUID, status models.RawRecordStatus, reason string, validatedAt *time.Time) (bool, error)
	MarkRecordRequestGenerated(ctx context.Context, recordID uuid.UUID, receiptNumber string, processedAt time.Time) (bool, error)
	CountRecordsByStatus(ctx context.Context, batchID uuid.UUID) (map[string]int64, error)

	GetFilteredBatches(ctx context.Context, params pagination.ListParams) ([]models.UploadedBatch, int64, error)
	GetFilteredRecords(ctx context.Context, batchID uuid.UUID, params pagination.ListParams) ([]models.RawUploadRecord, int64, error)
}

type uploadRepository struct {
	db *gorm.DB
}

func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{
		db: db,
	}
}

// CreateBatch stores the batch metadata and its rows in one transaction
func (r *uploadRepository) CreateBatch(ctx context.Context, batch *models.UploadedBatch, records []models.RawUploadRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.NewConflict("batch", batch.FileHash)
			}
			return fmt.Errorf("failed to create batch: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		for i := range records {
			records[i].BatchID = batch.ID
		}
		if err := tx.CreateInBatches(records, 500).Error; err != nil {
			return fmt.Errorf("failed to create raw records: %w", err)
		}
		return nil
	})
}

func (r *uploadRepository) GetBatchByID(ctx context.Context, batchID uuid.UUID) (*models.UploadedBatch, error) {
	var batch models.UploadedBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", batchID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("batch", batchID.String())
		}
		return nil, err
	}
	return &batch, nil
}

func (r *uploadRepository) GetBatchByHash(ctx context.Context, fileHash string) (*models.UploadedBatch, error) {
	var batch models.UploadedBatch
	err := r.db.WithContext(ctx).First(&batch, "file_hash = ?", fileHash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("batch", fileHash)
		}
		return nil, err
	}
	return &batch, nil
}

func (r *uploadRepository) UpdateBatch(ctx context.Context, batchID uuid.UUID, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.UploadedBatch{}).Where("id = ?", batchID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update batch: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.NewNotFound("batch", batchID.String())
	}
	return nil
}

// DeleteBatch removes the batch and all of its raw rows
func (r *uploadRepository) DeleteBatch(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_id = ?", batchID).Delete(&models.RawUploadRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete raw records: %w", err)
		}
		result := tx.Where("id = ?", batchID).Delete(&models.UploadedBatch{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete batch: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return utils.NewNotFound("batch", batchID.String())
		}
		return nil
	})
}

func (r *uploadRepository) GetRecordByID(ctx context.Context, recordID uuid.UUID) (*models.RawUploadRecord, error) {
	var record models.RawUploadRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", recordID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("raw record", recordID.String())
		}
		return nil, err
	}
	return &record, nil
}

func (r *uploadRepository) GetRecordsByStatus(ctx context.Context, batchID uuid.UUID, status models.RawRecordStatus) ([]models.RawUploadRecord, error) {
	var records []models.RawUploadRecord
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND status = ?", batchID, status).
		Order("row_number ASC").
		Find(&records).Error
	return records, err
}

// UpdateRecordValidation records the validator's verdict. Only UPLOADED rows are touched;
// the bool reports whether the row was still UPLOADED.
func (r *uploadRepository) UpdateRecordValidation(ctx context.Context, recordID uuid.UUID, status models.RawRecordStatus, reason string, validatedAt *time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.RawUploadRecord{}).
		Where("id = ? AND status = ?", recordID, models.RawRecordUploaded).
		Updates(map[string]interface{}{
			"status":           status,
			"rejection_reason": reason,
			"validated_at":     validatedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update raw record %s: %w", recordID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkRecordRequestGenerated links a VALIDATED row to its worker receipt
func (r *uploadRepository) MarkRecordRequestGenerated(ctx context.Context, recordID uuid.UUID, receiptNumber string, processedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.RawUploadRecord{}).
		Where("id = ? AND status = ?", recordID, models.RawRecordValidated).
		Updates(map[string]interface{}{
			"status":         models.RawRecordRequestGenerated,
			"receipt_number": receiptNumber,
			"processed_at":   processedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to link raw record %s: %w", recordID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

type statusCount struct {
	Status string
	Count  int64
}

// CountRecordsByStatus returns the per-status histogram of a batch
func (r *uploadRepository) CountRecordsByStatus(ctx context.Context, batchID uuid.UUID) (map[string]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.RawUploadRecord{}).
		Select("status, COUNT(*) AS count").
		Where("batch_id = ?", batchID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
