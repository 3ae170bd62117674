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

type WorkerPaymentRepository interface {
	CreatePayments(tx *gorm.DB, payments []models.WorkerPayment) error
	LinkReceiptNumber(ctx context.Context, paymentID uuid.UUID, receiptNumber string) (bool, error)
	TransitionByReceipt(ctx context.Context, receiptNumber string, from, to models.WorkerPaymentStatus) (int64, error)
	GetByID(ctx context.Context, paymentID uuid.UUID) (*models.WorkerPayment, error)
	GetByReceiptNumber(ctx context.Context, receiptNumber string) ([]models.WorkerPayment, error)
	GetBySourceRecordIDs(ctx context.Context, recordIDs []uuid.UUID) ([]models.WorkerPayment, error)
	GetFilteredPayments(ctx context.Context, params pagination.ListParams) ([]models.WorkerPayment, int64, error)
}

type workerPaymentRepository struct {
	db *gorm.DB
}

func NewWorkerPaymentRepository(db *gorm.DB) WorkerPaymentRepository {
	return &workerPaymentRepository{
		db: db,
	}
}

// CreatePayments inserts the payments inside the caller's transaction
func (r *workerPaymentRepository) CreatePayments(tx *gorm.DB, payments []models.WorkerPayment) error {
	if len(payments) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(payments, 500).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return utils.NewConflict("worker payment", "source record")
		}
		return fmt.Errorf("failed to create worker payments: %w", err)
	}
	return nil
}

// LinkReceiptNumber sets the receipt number on a payment that has none yet. Linking a
// payment to the number it already carries reports true.
func (r *workerPaymentRepository) LinkReceiptNumber(ctx context.Context, paymentID uuid.UUID, receiptNumber string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.WorkerPayment{}).
		Where("id = ? AND (receipt_number IS NULL OR receipt_number = ?)", paymentID, receiptNumber).
		Update("receipt_number", receiptNumber)
	if result.Error != nil {
		return false, fmt.Errorf("failed to link payment %s: %w", paymentID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// TransitionByReceipt moves every payment of the receipt that is still in from to to.
// Payments in any other status are left alone, so repeating the call is harmless.
func (r *workerPaymentRepository) TransitionByReceipt(ctx context.Context, receiptNumber string, from, to models.WorkerPaymentStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.WorkerPayment{}).
		Where("receipt_number = ? AND status = ?", receiptNumber, from).
		Update("status", to)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to move payments of %s from %s to %s: %w", receiptNumber, from, to, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *workerPaymentRepository) GetByID(ctx context.Context, paymentID uuid.UUID) (*models.WorkerPayment, error) {
	var payment models.WorkerPayment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("worker payment", paymentID.String())
		}
		return nil, err
	}
	return &payment, nil
}

func (r *workerPaymentRepository) GetByReceiptNumber(ctx context.Context, receiptNumber string) ([]models.WorkerPayment, error) {
	var payments []models.WorkerPayment
	err := r.db.WithContext(ctx).
		Where("receipt_number = ?", receiptNumber).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *workerPaymentRepository) GetBySourceRecordIDs(ctx context.Context, recordIDs []uuid.UUID) ([]models.WorkerPayment, error) {
	var payments []models.WorkerPayment
	if len(recordIDs) == 0 {
		return payments, nil
	}
	err := r.db.WithContext(ctx).Where("source_record_id IN ?", recordIDs).Find(&payments).Error
	return payments, err
}

var PaymentSortFields = pagination.SortAllowList{
	"created_at":     "created_at",
	"payment_amount": "payment_amount",
	"status":         "status",
	"worker_ref":     "worker_ref",
}

// GetFilteredPayments lists payments; extra filters: employer_id, toli_id, worker_ref, batch_id
func (r *workerPaymentRepository) GetFilteredPayments(ctx context.Context, params pagination.ListParams) ([]models.WorkerPayment, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.WorkerPayment{})
		q = pagination.ApplyCommonFilters(q, params, "receipt_number")
		for _, key := range []string{"employer_id", "toli_id", "worker_ref", "batch_id"} {
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

	query, err := pagination.ApplySort(base(), params, PaymentSortFields, "created_at")
	if err != nil {
		return nil, 0, err
	}

	var payments []models.WorkerPayment
	if err := query.Limit(params.PageSize).Offset(params.Offset()).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
