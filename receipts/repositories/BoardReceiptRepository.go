package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"gorm.io/gorm"
)

type BoardReceiptRepository interface {
	Create(ctx context.Context, receipt *models.BoardReceipt) error
	GetByReference(ctx context.Context, boardReference string) (*models.BoardReceipt, error)
	GetByEmployerReference(ctx context.Context, employerReference string) (*models.BoardReceipt, error)
	CountByReferencePrefix(ctx context.Context, prefix string) (int64, error)
	Verify(ctx context.Context, boardReference, utrNumber, checker string, verifiedAt time.Time) (bool, error)
	Reject(ctx context.Context, boardReference, reason, rejectedBy string, rejectedAt time.Time) (bool, error)
	MarkProcessed(ctx context.Context, boardReference string, processedAt time.Time) (bool, error)
	GetFilteredReceipts(ctx context.Context, params pagination.ListParams) ([]models.BoardReceipt, int64, error)
}

type boardReceiptRepository struct {
	db *gorm.DB
}

func NewBoardReceiptRepository(db *gorm.DB) BoardReceiptRepository {
	return &boardReceiptRepository{
		db: db,
	}
}

func (r *boardReceiptRepository) Create(ctx context.Context, receipt *models.BoardReceipt) error {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.NewConflict("board receipt", receipt.BoardReference)
		}
		return fmt.Errorf("failed to create board receipt: %w", err)
	}
	return nil
}

func (r *boardReceiptRepository) GetByReference(ctx context.Context, boardReference string) (*models.BoardReceipt, error) {
	var receipt models.BoardReceipt
	if err := r.db.WithContext(ctx).First(&receipt, "board_reference = ?", boardReference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("board receipt", boardReference)
		}
		return nil, err
	}
	return &receipt, nil
}

// GetByEmployerReference returns the live board receipt of an employer receipt, or the
// most recent rejected one when every submission was turned down.
func (r *boardReceiptRepository) GetByEmployerReference(ctx context.Context, employerReference string) (*models.BoardReceipt, error) {
	var receipt models.BoardReceipt
	err := r.db.WithContext(ctx).
		Where("employer_reference = ?", employerReference).
		Order("CASE WHEN status = 'REJECTED' THEN 1 ELSE 0 END").
		Order("created_at DESC").
		Take(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("board receipt for employer receipt", employerReference)
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *boardReceiptRepository) CountByReferencePrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BoardReceipt{}).
		Where("board_reference LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

// Verify is the one-shot PENDING -> VERIFIED write. It reports false when no PENDING
// receipt with that reference exists.
func (r *boardReceiptRepository) Verify(ctx context.Context, boardReference, utrNumber, checker string, verifiedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.BoardReceipt{}).
		Where("board_reference = ? AND status = ?", boardReference, models.BoardReceiptPending).
		Updates(map[string]interface{}{
			"utr_number":  utrNumber,
			"checker":     checker,
			"status":      models.BoardReceiptVerified,
			"verified_at": verifiedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to verify board receipt %s: %w", boardReference, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Reject is the PENDING -> REJECTED write. UTR and checker stay empty; the receipt is
// final from here on.
func (r *boardReceiptRepository) Reject(ctx context.Context, boardReference, reason, rejectedBy string, rejectedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.BoardReceipt{}).
		Where("board_reference = ? AND status = ?", boardReference, models.BoardReceiptPending).
		Updates(map[string]interface{}{
			"rejection_reason": reason,
			"rejected_by":      rejectedBy,
			"rejected_at":      rejectedAt,
			"status":           models.BoardReceiptRejected,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to reject board receipt %s: %w", boardReference, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *boardReceiptRepository) MarkProcessed(ctx context.Context, boardReference string, processedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.BoardReceipt{}).
		Where("board_reference = ? AND status = ?", boardReference, models.BoardReceiptVerified).
		Updates(map[string]interface{}{
			"status":       models.BoardReceiptProcessed,
			"processed_at": processedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to reconcile board receipt %s: %w", boardReference, result.Error)
	}
	return result.RowsAffected == 1, nil
}

var BoardReceiptSortFields = pagination.SortAllowList{
	"created_at":   "created_at",
	"receipt_date": "receipt_date",
	"verified_at":  "verified_at",
	"amount":       "amount",
	"status":       "status",
}

// GetFilteredReceipts lists board receipts; extra filters: board_id, employer_id,
// toli_id, utr_number, worker_receipt_number
func (r *boardReceiptRepository) GetFilteredReceipts(ctx context.Context, params pagination.ListParams) ([]models.BoardReceipt, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.BoardReceipt{})
		q = pagination.ApplyCommonFilters(q, params, "board_reference")
		for _, key := range []string{"board_id", "employer_id", "toli_id", "utr_number", "worker_receipt_number"} {
			if v, ok := params.Filters[key]; ok {
				q = q.Where(key+" = ?", v)
			}
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query, err := pagination.ApplySort(base(), params, BoardReceiptSortFields, "created_at")
	if err != nil {
		return nil, 0, err
	}

	var receipts []models.BoardReceipt
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&receipts).Error; err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}
