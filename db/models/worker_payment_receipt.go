package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WorkerReceiptStatus string

const (
	WorkerReceiptProcessed        WorkerReceiptStatus = "PROCESSED"
	WorkerReceiptValidated        WorkerReceiptStatus = "VALIDATED"
	WorkerReceiptPaymentInitiated WorkerReceiptStatus = "PAYMENT_INITIATED"
	WorkerReceiptReconciled       WorkerReceiptStatus = "RECONCILED"
)

func (s WorkerReceiptStatus) IsValid() bool {
	switch s {
	case WorkerReceiptProcessed, WorkerReceiptValidated, WorkerReceiptPaymentInitiated, WorkerReceiptReconciled:
		return true
	}
	return false
}

// WorkerPaymentReceipt aggregates the worker payments of one batch. TotalRecords and
// TotalAmount are snapshots taken at creation and are never rewritten.
type WorkerPaymentReceipt struct {
	ID             uuid.UUID           `gorm:"type:uuid;primary_key;" json:"id"`
	ReceiptNumber  string              `gorm:"type:varchar(50);uniqueIndex;not null" json:"receipt_number"`
	BatchID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"batch_id"`
	BatchReference string              `gorm:"type:varchar(100)" json:"batch_reference"`
	EmployerID     string              `gorm:"type:varchar(100);not null;index" json:"employer_id"`
	ToliID         string              `gorm:"type:varchar(100);not null" json:"toli_id"`
	TotalRecords   int                 `gorm:"<-:create;not null" json:"total_records"`
	TotalAmount    decimal.Decimal     `gorm:"<-:create;type:decimal(18,2);not null" json:"total_amount"`
	Status         WorkerReceiptStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedBy      string              `gorm:"type:varchar(150);not null;default:''" json:"created_by"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	Payments []WorkerPayment `gorm:"-" json:"payments,omitempty"`
}

func (r *WorkerPaymentReceipt) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = WorkerReceiptProcessed
	}
	return
}
