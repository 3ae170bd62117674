package services

import (
	"context"
	"errors"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"
	"welfare-receipts-backend/reconciliation/repositories"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AnomalyRecorder stores linkage anomalies and schedules their repair.
type AnomalyRecorder struct {
	Repo  repositories.AnomalyRepository
	Queue TaskEnqueuer
}

func NewAnomalyRecorder(repo repositories.AnomalyRepository, queue TaskEnqueuer) *AnomalyRecorder {
	return &AnomalyRecorder{Repo: repo, Queue: queue}
}

// Record upserts the anomaly. Enqueueing the repair task is best-effort; the scheduled
// repair pass picks up anything left open.
func (r *AnomalyRecorder) Record(ctx context.Context, anomaly models.LinkageAnomaly) error {
	if err := r.Repo.Upsert(ctx, &anomaly); err != nil {
		return err
	}

	if r.Queue == nil {
		return nil
	}
	task, err := NewLinkageRepairTask(anomaly.Kind, anomaly.EntityKey)
	if err != nil {
		return err
	}
	if _, err := r.Queue.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		config.Logger.Warn("Failed to enqueue linkage repair",
			zap.String("kind", string(anomaly.Kind)),
			zap.String("entityKey", anomaly.EntityKey),
			zap.Error(err))
	}
	return nil
}
