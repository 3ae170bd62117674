package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AnomalyKind string

const (
	// A worker payment is missing its receipt number.
	PaymentReceiptLinkAnomaly AnomalyKind = "PAYMENT_RECEIPT_LINK"
	// A raw record was aggregated but is still VALIDATED.
	RawRecordLinkAnomaly AnomalyKind = "RAW_RECORD_LINK"
	// An employer receipt was sent to the board but no board receipt exists.
	BoardReceiptMissingAnomaly AnomalyKind = "BOARD_RECEIPT_MISSING"
	// A board transition did not reach the upstream receipts/payments.
	StatusPropagationAnomaly AnomalyKind = "STATUS_PROPAGATION"
)

type AnomalyStatus string

const (
	AnomalyOpen     AnomalyStatus = "OPEN"
	AnomalyResolved AnomalyStatus = "RESOLVED"
)

// LinkageAnomaly records a saga step that failed after its parent write was committed.
// EntityKey identifies the row to repair (payment id, raw record id, employer receipt
// number or board reference, depending on Kind).
type LinkageAnomaly struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	Kind          AnomalyKind    `gorm:"type:varchar(40);not null;uniqueIndex:idx_anomaly_kind_entity" json:"kind"`
	EntityKey     string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_anomaly_kind_entity" json:"entity_key"`
	BatchID       *uuid.UUID     `gorm:"type:uuid;index" json:"batch_id,omitempty"`
	ReceiptNumber string         `gorm:"type:varchar(50);index" json:"receipt_number"`
	Details       datatypes.JSON `json:"details"`
	Status        AnomalyStatus  `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *LinkageAnomaly) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AnomalyOpen
	}
	return
}
