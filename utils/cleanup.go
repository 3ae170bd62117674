package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"welfare-receipts-backend/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultReportTTL      = 30 * 24 * time.Hour
	reportCleanupSchedule = "0 1 * * *"
	cleanupMaxRetries     = 3
)

var cleanupRetryDelay = 2 * time.Minute

// PruneExpiredReports removes rejected-record reports in dir last modified before now-ttl
// and returns how many were deleted. A missing dir is not an error.
func PruneExpiredReports(dir string, ttl time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("error reading report directory: %w", err)
	}

	cutoff := now.Add(-ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			config.Logger.Warn("Cannot stat report file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("error deleting expired report %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// RunScheduledReportCleanup prunes dir daily at 1 AM, retrying a failed pass. The returned
// cron must be stopped on shutdown.
func RunScheduledReportCleanup(dir string, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(reportCleanupSchedule, func() {
		for attempt := 1; attempt <= cleanupMaxRetries; attempt++ {
			removed, err := PruneExpiredReports(dir, ttl, time.Now())
			if err == nil {
				config.Logger.Info("Report cleanup finished", zap.String("dir", dir), zap.Int("removed", removed))
				return
			}
			config.Logger.Warn("Report cleanup failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt < cleanupMaxRetries {
				time.Sleep(cleanupRetryDelay)
			}
		}
		config.Logger.Error("Report cleanup gave up", zap.String("dir", dir), zap.Int("attempts", cleanupMaxRetries))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
