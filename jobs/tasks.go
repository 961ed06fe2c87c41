// Package jobs wires background work onto Asynq: nightly database
// backups and audit log retention.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
	"github.com/meridian-edu/meridian-backoffice/internal/backup"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDatabaseBackup dumps the database to object storage.
	TaskDatabaseBackup = "backup:database"
	// TaskAuditRetention purges audit entries past the retention window.
	TaskAuditRetention = "audit:retention"
)

// BackupPayload configures a backup run. Currently empty; the service
// carries the destination settings.
type BackupPayload struct{}

// NewDatabaseBackupTask constructs an Asynq task for a database backup.
func NewDatabaseBackupTask(payload BackupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDatabaseBackup, data), nil
}

// NewDatabaseBackupHandler binds the backup service to the task type.
func NewDatabaseBackupHandler(svc *backup.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BackupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		result, err := svc.Run(ctx)
		if err != nil {
			if logger != nil {
				logger.Error("database backup failed", slog.Any("error", err))
			}
			return err
		}
		if logger != nil {
			logger.Info("database backup completed",
				slog.String("key", result.Key),
				slog.Int64("size_bytes", result.Size))
		}
		return nil
	}
}

// RetentionPayload configures the audit purge.
type RetentionPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewAuditRetentionTask constructs an Asynq task for audit retention.
func NewAuditRetentionTask(payload RetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// NewAuditRetentionHandler binds the audit service to the task type.
func NewAuditRetentionHandler(svc *audit.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RetentionPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.RetentionDays <= 0 {
			return asynq.SkipRetry
		}
		purged, err := svc.Purge(ctx, time.Duration(payload.RetentionDays)*24*time.Hour)
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("audit retention completed",
				slog.Int("retention_days", payload.RetentionDays),
				slog.Int64("purged", purged))
		}
		return nil
	}
}
