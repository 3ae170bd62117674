package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BatchStatus string

const (
	BatchUploaded  BatchStatus = "UPLOADED"
	BatchValidated BatchStatus = "VALIDATED"
	BatchProcessed BatchStatus = "PROCESSED"
)

func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchUploaded, BatchValidated, BatchProcessed:
		return true
	}
	return false
}

// UploadedBatch is the metadata of one physically stored upload file. The records
// themselves live in raw_upload_records.
type UploadedBatch struct {
	ID             uuid.UUID   `gorm:"type:uuid;primary_key;" json:"id"`
	BatchReference string      `gorm:"type:varchar(100);index" json:"batch_reference"`
	FileName       string      `gorm:"type:varchar(255);not null" json:"file_name"`
	FileHash       string      `gorm:"type:varchar(128);uniqueIndex;not null" json:"file_hash"`
	StoragePath    string      `gorm:"type:varchar(512)" json:"storage_path"`
	EmployerID     string      `gorm:"type:varchar(50);index" json:"employer_id"`
	ToliID         string      `gorm:"type:varchar(50);index" json:"toli_id"`
	TotalCount     int         `gorm:"not null;default:0" json:"total_count"`
	SuccessCount   int         `gorm:"not null;default:0" json:"success_count"`
	FailureCount   int         `gorm:"not null;default:0" json:"failure_count"`
	Status         BatchStatus `gorm:"type:varchar(20);not null;default:'UPLOADED';index" json:"status"`
	UploadedBy     string      `gorm:"type:varchar(150);not null" json:"uploaded_by"`
	ReportPath     string      `gorm:"type:varchar(512)" json:"report_path,omitempty"`
	ValidatedAt    *time.Time  `json:"validated_at,omitempty"`
	ProcessedAt    *time.Time  `json:"processed_at,omitempty"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (b *UploadedBatch) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = BatchUploaded
	}
	return
}
