package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RawRecordStatus string

const (
	RawRecordUploaded         RawRecordStatus = "UPLOADED"
	RawRecordValidated        RawRecordStatus = "VALIDATED"
	RawRecordRejected         RawRecordStatus = "REJECTED"
	RawRecordRequestGenerated RawRecordStatus = "REQUEST_GENERATED"
)

func (s RawRecordStatus) IsValid() bool {
	switch s {
	case RawRecordUploaded, RawRecordValidated, RawRecordRejected, RawRecordRequestGenerated:
		return true
	}
	return false
}

// RawUploadRecord is one row of an uploaded file. Rows are only ever deleted together
// with their batch.
type RawUploadRecord struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key;" json:"id"`
	BatchID         uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_raw_batch_row" json:"batch_id"`
	RowNumber       int                 `gorm:"not null;uniqueIndex:idx_raw_batch_row" json:"row_number"`
	WorkerID        string              `gorm:"type:varchar(100)" json:"worker_id"`
	WorkerName      string              `gorm:"type:varchar(200)" json:"worker_name"`
	EmployerID      string              `gorm:"type:varchar(100)" json:"employer_id"`
	ToliID          string              `gorm:"type:varchar(100)" json:"toli_id"`
	BankAccount     string              `gorm:"type:varchar(100)" json:"bank_account"`
	Phone           string              `gorm:"type:varchar(30)" json:"phone"`
	Email           string              `gorm:"type:varchar(200)" json:"email"`
	WorkDate        *time.Time          `json:"work_date"`
	HoursWorked     decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"hours_worked"`
	HourlyRate      decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"hourly_rate"`
	PaymentAmount   decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0" json:"payment_amount"`
	Status          RawRecordStatus     `gorm:"type:varchar(30);not null;default:'UPLOADED';index" json:"status"`
	RejectionReason string              `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReceiptNumber   *string             `gorm:"type:varchar(50);index" json:"receipt_number,omitempty"`
	ValidatedAt     *time.Time          `json:"validated_at,omitempty"`
	ProcessedAt     *time.Time          `json:"processed_at,omitempty"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *RawUploadRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RawRecordUploaded
	}
	return
}
