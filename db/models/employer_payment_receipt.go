package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EmployerReceiptStatus string

const (
	EmployerReceiptPending     EmployerReceiptStatus = "PENDING"
	EmployerReceiptSendToBoard EmployerReceiptStatus = "SEND_TO_BOARD"
	EmployerReceiptValidated   EmployerReceiptStatus = "VALIDATED"
	EmployerReceiptProcessed   EmployerReceiptStatus = "PROCESSED"
)

func (s EmployerReceiptStatus) IsValid() bool {
	switch s {
	case EmployerReceiptPending, EmployerReceiptSendToBoard, EmployerReceiptValidated, EmployerReceiptProcessed:
		return true
	}
	return false
}

// AcceptsEmployerValidation reports whether an employer may (re)submit a transaction
// reference for a receipt in this status.
func (s EmployerReceiptStatus) AcceptsEmployerValidation() bool {
	return s == EmployerReceiptPending || s == EmployerReceiptSendToBoard
}

// EmployerPaymentReceipt is the employer's confirmation of a worker receipt. At most one
// exists per worker receipt number.
type EmployerPaymentReceipt struct {
	ID                    uuid.UUID             `gorm:"type:uuid;primary_key;" json:"id"`
	EmployerReceiptNumber string                `gorm:"type:varchar(50);uniqueIndex;not null" json:"employer_receipt_number"`
	WorkerReceiptNumber   string                `gorm:"type:varchar(50);uniqueIndex;not null" json:"worker_receipt_number"`
	EmployerID            string                `gorm:"type:varchar(100);not null;index" json:"employer_id"`
	ToliID                string                `gorm:"type:varchar(100);not null" json:"toli_id"`
	TransactionReference  string                `gorm:"type:varchar(100);not null;default:''" json:"transaction_reference"`
	ValidatedBy           string                `gorm:"type:varchar(150);not null;default:''" json:"validated_by"`
	ValidatedAt           *time.Time            `json:"validated_at,omitempty"`
	TotalRecords          int                   `gorm:"not null" json:"total_records"`
	TotalAmount           decimal.Decimal       `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status                EmployerReceiptStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt             time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *EmployerPaymentReceipt) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = EmployerReceiptPending
	}
	return
}
