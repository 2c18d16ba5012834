package core

// scheduler.go runs periodic maintenance: email_logs and audit_log rows
// older than the retention window are deleted. The scheduler is
// long-running and stops when its context is cancelled. A failed run is
// logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// MaintenanceConfig holds configuration for the maintenance scheduler.
// Zero values fall back to defaults.
type MaintenanceConfig struct {
	RetentionDays int           // Days to keep email and audit logs (default: 365)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c MaintenanceConfig) withDefaults() MaintenanceConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 365
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartMaintenanceScheduler runs the maintenance job immediately and then
// every CheckInterval until ctx is cancelled.
func (s *Service) StartMaintenanceScheduler(ctx context.Context, cfg MaintenanceConfig) {
	cfg = cfg.withDefaults()
	slog.Info("maintenance scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval.String(),
	)

	s.runMaintenanceJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			s.runMaintenanceJob(ctx, cfg)
		}
	}
}

// runMaintenanceJob performs one purge cycle.
func (s *Service) runMaintenanceJob(ctx context.Context, cfg MaintenanceConfig) {
	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)

	emails, err := s.purgeEmailLogs(ctx, cutoff)
	if err != nil {
		slog.Error("purge email logs failed", "error", err)
	}

	audits, err := s.purgeAuditLog(ctx, cutoff)
	if err != nil {
		slog.Error("purge audit log failed", "error", err)
	}

	slog.Info("maintenance job completed",
		"email_logs_purged", emails,
		"audit_rows_purged", audits,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
