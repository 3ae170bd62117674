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

type EmployerReceiptRepository interface {
	Create(ctx context.Context, receipt *models.EmployerPaymentReceipt) error
	GetByNumber(ctx context.Context, receiptNumber string) (*models.EmployerPaymentReceipt, error)
	GetByWorkerReceiptNumber(ctx context.Context, workerReceiptNumber string) (*models.EmployerPaymentReceipt, error)
	ExistsNumber(ctx context.Context, receiptNumber string) (bool, error)
	ApplyValidation(ctx context.Context, workerReceiptNumber, transactionReference, validatedBy string, validatedAt time.Time) (bool, error)
	TransitionStatus(ctx context.Context, receiptNumber string, from []models.EmployerReceiptStatus, to models.EmployerReceiptStatus) (bool, error)
	GetAwaitingBoardReceipt(ctx context.Context, limit int) ([]models.EmployerPaymentReceipt, error)
	GetFilteredReceipts(ctx context.Context, params pagination.ListParams) ([]models.EmployerPaymentReceipt, int64, error)
}

type employerReceiptRepository struct {
	db *gorm.DB
}

func NewEmployerReceiptRepository(db *gorm.DB) EmployerReceiptRepository {
	return &employerReceiptRepository{
		db: db,
	}
}

// Create inserts a new employer receipt. Either unique key colliding (own number or
// worker receipt number) comes back as a ConflictError.
func (r *employerReceiptRepository) Create(ctx context.Context, receipt *models.EmployerPaymentReceipt) error {
	if err := r.db.WithContext(ctx).Create(receipt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.NewConflict("employer receipt", receipt.WorkerReceiptNumber)
		}
		return fmt.Errorf("failed to create employer receipt: %w", err)
	}
	return nil
}

func (r *employerReceiptRepository) GetByNumber(ctx context.Context, receiptNumber string) (*models.EmployerPaymentReceipt, error) {
	var receipt models.EmployerPaymentReceipt
	if err := r.db.WithContext(ctx).First(&receipt, "employer_receipt_number = ?", receiptNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("employer receipt", receiptNumber)
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *employerReceiptRepository) GetByWorkerReceiptNumber(ctx context.Context, workerReceiptNumber string) (*models.EmployerPaymentReceipt, error) {
	var receipt models.EmployerPaymentReceipt
	if err := r.db.WithContext(ctx).First(&receipt, "worker_receipt_number = ?", workerReceiptNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("employer receipt for worker receipt", workerReceiptNumber)
		}
		return nil, err
	}
	return &receipt, nil
}

func (r *employerReceiptRepository) ExistsNumber(ctx context.Context, receiptNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EmployerPaymentReceipt{}).
		Where("employer_receipt_number = ?", receiptNumber).
		Count(&count).Error
	return count > 0, err
}

// ApplyValidation records the employer's transaction reference and moves the receipt to
// SEND_TO_BOARD, but only while it is PENDING or SEND_TO_BOARD.
func (r *employerReceiptRepository) ApplyValidation(ctx context.Context, workerReceiptNumber, transactionReference, validatedBy string, validatedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.EmployerPaymentReceipt{}).
		Where("worker_receipt_number = ? AND status IN ?", workerReceiptNumber,
			[]models.EmployerReceiptStatus{models.EmployerReceiptPending, models.EmployerReceiptSendToBoard}).
		Updates(map[string]interface{}{
			"transaction_reference": transactionReference,
			"validated_by":          validatedBy,
			"validated_at":          validatedAt,
			"status":                models.EmployerReceiptSendToBoard,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to apply employer validation for %s: %w", workerReceiptNumber, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *employerReceiptRepository) TransitionStatus(ctx context.Context, receiptNumber string, from []models.EmployerReceiptStatus, to models.EmployerReceiptStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.EmployerPaymentReceipt{}).
		Where("employer_receipt_number = ? AND status IN ?", receiptNumber, from).
		Update("status", to)
	if result.Error != nil {
		return false, fmt.Errorf("failed to move employer receipt %s to %s: %w", receiptNumber, to, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetAwaitingBoardReceipt returns employer receipts sent to the board that have no live
// board receipt yet.
func (r *employerReceiptRepository) GetAwaitingBoardReceipt(ctx context.Context, limit int) ([]models.EmployerPaymentReceipt, error) {
	var receipts []models.EmployerPaymentReceipt
	err := r.db.WithContext(ctx).
		Where("status = ?", models.EmployerReceiptSendToBoard).
		Where("NOT EXISTS (SELECT 1 FROM board_receipts b WHERE b.employer_reference = employer_payment_receipts.employer_receipt_number AND b.status <> 'REJECTED')").
		Order("created_at ASC").
		Limit(limit).
		Find(&receipts).Error
	return receipts, err
}

var EmployerReceiptSortFields = pagination.SortAllowList{
	"created_at":   "created_at",
	"validated_at": "validated_at",
	"total_amount": "total_amount",
	"status":       "status",
}

// GetFilteredReceipts lists employer receipts; extra filters: employer_id, toli_id,
// worker_receipt_number
func (r *employerReceiptRepository) GetFilteredReceipts(ctx context.Context, params pagination.ListParams) ([]models.EmployerPaymentReceipt, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.EmployerPaymentReceipt{})
		q = pagination.ApplyCommonFilters(q, params, "employer_receipt_number")
		for _, key := range []string{"employer_id", "toli_id", "worker_receipt_number"} {
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

	query, err := pagination.ApplySort(base(), params, EmployerReceiptSortFields, "created_at")
	if err != nil {
		return nil, 0, err
	}

	var receipts []models.EmployerPaymentReceipt
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&receipts).Error; err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}
