package repositories

import (
	"context"
	"errors"
	"fmt"

	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/utils"
	"welfare-receipts-backend/utils/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkerReceiptRepository interface {
	CreateReceipt(tx *gorm.DB, receipt *models.WorkerPaymentReceipt) error
	GetByNumber(ctx context.Context, receiptNumber string) (*models.WorkerPaymentReceipt, error)
	GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]models.WorkerPaymentReceipt, error)
	ExistsReceiptNumber(ctx context.Context, receiptNumber string) (bool, error)
	TransitionStatus(ctx context.Context, receiptNumber string, from []models.WorkerReceiptStatus, to models.WorkerReceiptStatus) (bool, error)
	GetFilteredReceipts(ctx context.Context, params pagination.ListParams) ([]models.WorkerPaymentReceipt, int64, error)
}

type workerReceiptRepository struct {
	db *gorm.DB
}

func NewWorkerReceiptRepository(db *gorm.DB) WorkerReceiptRepository {
	return &workerReceiptRepository{
		db: db,
	}
}

func (r *workerReceiptRepository) CreateReceipt(tx *gorm.DB, receipt *models.WorkerPaymentReceipt) error {
	if err := tx.Create(receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.NewConflict("worker receipt", receipt.ReceiptNumber)
		}
		return fmt.Errorf("failed to create worker receipt: %w", err)
	}
	return nil
}

func (r *workerReceiptRepository) GetByNumber(ctx context.Context, receiptNumber string) (*models.WorkerPaymentReceipt, error) {
	var receipt models.WorkerPaymentReceipt
	if err := r.db.WithContext(ctx).First(&receipt, "receipt_number = ?", receiptNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("worker receipt", receiptNumber)
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *workerReceiptRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) ([]models.WorkerPaymentReceipt, error) {
	var receipts []models.WorkerPaymentReceipt
	err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).Order("created_at ASC").Find(&receipts).Error
	return receipts, err
}

func (r *workerReceiptRepository) ExistsReceiptNumber(ctx context.Context, receiptNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.WorkerPaymentReceipt{}).
		Where("receipt_number = ?", receiptNumber).
		Count(&count).Error
	return count > 0, err
}

// TransitionStatus is a conditional write: the receipt only moves when it is currently in
// one of the from statuses.
func (r *workerReceiptRepository) TransitionStatus(ctx context.Context, receiptNumber string, from []models.WorkerReceiptStatus, to models.WorkerReceiptStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.WorkerPaymentReceipt{}).
		Where("receipt_number = ? AND status IN ?", receiptNumber, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to move worker receipt %s to %s: %w", receiptNumber, to, result.Error)
	}
	return result.RowsAffected == 1, nil
}

var WorkerReceiptSortFields = pagination.SortAllowList{
	"created_at":    "created_at",
	"total_amount":  "total_amount",
	"total_records": "total_records",
	"status":        "status",
}

// GetFilteredReceipts lists worker receipts; extra filters: employer_id, toli_id, batch_id
func (r *workerReceiptRepository) GetFilteredReceipts(ctx context.Context, params pagination.ListParams) ([]models.WorkerPaymentReceipt, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.WorkerPaymentReceipt{})
		q = pagination.ApplyCommonFilters(q, params, "receipt_number")
		for _, key := range []string{"employer_id", "toli_id", "batch_id"} {
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

	query, err := pagination.ApplySort(base(), params, WorkerReceiptSortFields, "created_at")
	if err != nil {
		return nil, 0, err
	}

	var receipts []models.WorkerPaymentReceipt
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&receipts).Error; err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}
