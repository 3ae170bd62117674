package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WorkerPaymentStatus string

const (
	WorkerPaymentUploaded   WorkerPaymentStatus = "UPLOADED"
	WorkerPaymentValidated  WorkerPaymentStatus = "VALIDATED"
	WorkerPaymentRequested  WorkerPaymentStatus = "PAYMENT_REQUESTED"
	WorkerPaymentInitiated  WorkerPaymentStatus = "PAYMENT_INITIATED"
	WorkerPaymentProcessed  WorkerPaymentStatus = "PAYMENT_PROCESSED"
	WorkerPaymentReconciled WorkerPaymentStatus = "PAYMENT_RECONCILED"
	WorkerPaymentError      WorkerPaymentStatus = "ERROR"
)

func (s WorkerPaymentStatus) IsValid() bool {
	switch s {
	case WorkerPaymentUploaded, WorkerPaymentValidated, WorkerPaymentRequested, WorkerPaymentInitiated,
		WorkerPaymentProcessed, WorkerPaymentReconciled, WorkerPaymentError:
		return true
	}
	return false
}

// WorkerPayment is the individually addressable payment owed to one worker. It is derived
// 1:1 from a validated raw record (SourceRecordID).
type WorkerPayment struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	BatchID        uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	SourceRecordID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"source_record_id"`

	WorkerRef     string          `gorm:"type:varchar(100);not null;index" json:"worker_ref"`
	WorkerName    string          `gorm:"type:varchar(200);not null" json:"worker_name"`
	EmployerID    string          `gorm:"type:varchar(100);not null;index" json:"employer_id"`
	ToliID        string          `gorm:"type:varchar(100);not null" json:"toli_id"`
	BankAccount   string          `gorm:"type:varchar(100);not null" json:"bank_account"`
	PaymentAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"payment_amount"`

	// Columns with no source in the upload; they stay "" rather than NULL.
	BankName string `gorm:"type:varchar(150);not null;default:''" json:"bank_name"`
	IFSCCode string `gorm:"type:varchar(20);not null;default:''" json:"ifsc_code"`
	Remarks  string `gorm:"type:varchar(255);not null;default:''" json:"remarks"`

	RequestReferenceNumber string              `gorm:"<-:create;type:varchar(60);uniqueIndex;not null" json:"request_reference_number"`
	Status                 WorkerPaymentStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	ReceiptNumber          *string             `gorm:"type:varchar(50);index" json:"receipt_number,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
	CreatedBy string    `gorm:"type:varchar(150);not null;default:''" json:"created_by"`
}

func (p *WorkerPayment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RequestReferenceNumber == "" {
		p.RequestReferenceNumber = fmt.Sprintf("REQ-%s-%s",
			time.Now().Format("20060102"),
			strings.ToUpper(strings.ReplaceAll(p.ID.String(), "-", "")[:12]))
	}
	if p.Status == "" {
		p.Status = WorkerPaymentValidated
	}
	return
}
