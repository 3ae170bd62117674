package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mailer is satisfied by utils.SMTPMailer
type Mailer interface {
	SendEmailWithAttachment(to, subject, body, attachmentName string, attachment []byte) error
}

type rejectedRow struct {
	RowNumber       int
	WorkerID        string
	WorkerName      string
	BankAccount     string
	PaymentAmount   decimal.Decimal
	RejectionReason string
}

// ReportFolder holds rejected-record reports inside the report storage
const ReportFolder = "validation-reports"

var rejectedReportHeaders = []string{"RowNumber", "WorkerID", "WorkerName", "BankAccount", "PaymentAmount", "RejectionReason"}

// ExcelValidationReporter writes rejected rows to a workbook, stores it and mails it to
// the uploader when the uploader identity is an email address.
type ExcelValidationReporter struct {
	Storage utils.FileStorage
	Mailer  Mailer
}

func NewExcelValidationReporter(storage utils.FileStorage, mailer Mailer) *ExcelValidationReporter {
	return &ExcelValidationReporter{Storage: storage, Mailer: mailer}
}

func (r *ExcelValidationReporter) ReportRejected(ctx context.Context, batch *models.UploadedBatch, rejected []models.RawUploadRecord) (string, error) {
	rows := make([]rejectedRow, 0, len(rejected))
	for _, record := range rejected {
		rows = append(rows, rejectedRow{
			RowNumber:       record.RowNumber,
			WorkerID:        record.WorkerID,
			WorkerName:      record.WorkerName,
			BankAccount:     record.BankAccount,
			PaymentAmount:   record.PaymentAmount,
			RejectionReason: record.RejectionReason,
		})
	}

	buf, err := utils.GenerateExcel(rows, "Rejected", rejectedReportHeaders)
	if err != nil {
		return "", fmt.Errorf("failed to build rejected records report: %w", err)
	}
	content := buf.Bytes()

	fileName := fmt.Sprintf("%s/%s_%s_rejected.xlsx", ReportFolder,
		utils.CleanStringForFilename(strings.TrimSuffix(batch.FileName, ".xlsx")),
		time.Now().Format("20060102150405"))

	var storedPath string
	if r.Storage != nil {
		storedPath, err = r.Storage.UploadFileFromReader(ctx, bytes.NewReader(content), fileName)
		if err != nil {
			return "", fmt.Errorf("failed to store rejected records report: %w", err)
		}
	}

	if r.Mailer != nil && strings.Contains(batch.UploadedBy, "@") {
		subject := fmt.Sprintf("Rejected records for %s", batch.FileName)
		body := fmt.Sprintf("%d record(s) of batch %s were rejected during validation. The attached sheet lists each row with its reason.",
			len(rows), batch.BatchReference)
		if err := r.Mailer.SendEmailWithAttachment(batch.UploadedBy, subject, body, "rejected_records.xlsx", content); err != nil {
			config.Logger.Warn("Rejected records report stored but not mailed",
				zap.String("batchID", batch.ID.String()),
				zap.Error(err))
		}
	}

	return storedPath, nil
}
