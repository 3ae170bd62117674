package services

import (
	"context"
	"time"

	"welfare-receipts-backend/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultReconciliationSchedule = "*/30 * * * *"

// StartReconciliationScheduler runs a scan and repair pass on schedule. The returned cron
// must be stopped on shutdown.
func StartReconciliationScheduler(service *ReconciliationService, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultReconciliationSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Minute)
		defer cancel()

		config.Logger.Info("Running scheduled linkage reconciliation")
		if _, _, err := service.Run(ctx); err != nil {
			config.Logger.Error("Scheduled linkage reconciliation failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	config.Logger.Info("Reconciliation scheduler started", zap.String("schedule", schedule))
	return c, nil
}
