package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BoardReceiptStatus string

const (
	BoardReceiptPending   BoardReceiptStatus = "PENDING"
	BoardReceiptVerified  BoardReceiptStatus = "VERIFIED"
	BoardReceiptRejected  BoardReceiptStatus = "REJECTED"
	BoardReceiptProcessed BoardReceiptStatus = "PROCESSED"
)

func (s BoardReceiptStatus) IsValid() bool {
	switch s {
	case BoardReceiptPending, BoardReceiptVerified, BoardReceiptRejected, BoardReceiptProcessed:
		return true
	}
	return false
}

// BoardReceipt is the board-side settlement record. UTR and checker are written exactly
// once, by the PENDING -> VERIFIED transition. REJECTED is final: a resubmitted employer
// receipt gets a new board receipt, and at most one non-rejected board receipt exists per
// employer reference (see config.CreateActiveBoardReceiptIndex).
type BoardReceipt struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primary_key;" json:"id"`
	BoardReference      string             `gorm:"type:varchar(50);uniqueIndex;not null" json:"board_reference"`
	BoardID             string             `gorm:"type:varchar(50);not null;index" json:"board_id"`
	EmployerReference   string             `gorm:"type:varchar(50);not null;index:idx_board_receipts_employer_ref" json:"employer_reference"`
	WorkerReceiptNumber string             `gorm:"type:varchar(50);not null;index" json:"worker_receipt_number"`
	EmployerID          string             `gorm:"type:varchar(100);not null;index" json:"employer_id"`
	ToliID              string             `gorm:"type:varchar(100);not null" json:"toli_id"`
	UTRNumber           *string            `gorm:"type:varchar(60)" json:"utr_number,omitempty"`
	Amount              decimal.Decimal    `gorm:"type:decimal(18,2);not null" json:"amount"`
	Maker               string             `gorm:"type:varchar(150);not null" json:"maker"`
	Checker             *string            `gorm:"type:varchar(150)" json:"checker,omitempty"`
	Status              BoardReceiptStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectionReason     string             `gorm:"type:text" json:"rejection_reason,omitempty"`
	RejectedBy          *string            `gorm:"type:varchar(150)" json:"rejected_by,omitempty"`
	RejectedAt          *time.Time         `json:"rejected_at,omitempty"`
	ReceiptDate         time.Time          `gorm:"not null" json:"receipt_date"`
	VerifiedAt          *time.Time         `json:"verified_at,omitempty"`
	ProcessedAt         *time.Time         `json:"processed_at,omitempty"`
	CreatedAt           time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *BoardReceipt) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = BoardReceiptPending
	}
	if r.ReceiptDate.IsZero() {
		r.ReceiptDate = time.Now()
	}
	return
}
