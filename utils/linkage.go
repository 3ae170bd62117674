package utils

import (
	"context"
	"encoding/json"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AnomalyRecorder persists a saga step that failed after its parent write committed, so
// that reconciliation can repair it later.
type AnomalyRecorder interface {
	Record(ctx context.Context, anomaly models.LinkageAnomaly) error
}

// RecordAnomaly logs the failure and hands it to the recorder when one is configured.
// It never fails the caller.
func RecordAnomaly(ctx context.Context, recorder AnomalyRecorder, kind models.AnomalyKind, entityKey string, batchID *uuid.UUID, receiptNumber string, cause error, details map[string]interface{}) {
	config.Logger.Error("Linkage step failed",
		zap.String("kind", string(kind)),
		zap.String("entityKey", entityKey),
		zap.String("receiptNumber", receiptNumber),
		zap.Error(cause))

	if recorder == nil {
		return
	}

	anomaly := models.LinkageAnomaly{
		Kind:          kind,
		EntityKey:     entityKey,
		BatchID:       batchID,
		ReceiptNumber: receiptNumber,
		Status:        models.AnomalyOpen,
	}
	if cause != nil {
		anomaly.LastError = cause.Error()
	}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			anomaly.Details = datatypes.JSON(raw)
		}
	}

	if err := recorder.Record(ctx, anomaly); err != nil {
		config.Logger.Error("Failed to record linkage anomaly",
			zap.String("kind", string(kind)),
			zap.String("entityKey", entityKey),
			zap.Error(err))
	}
}
