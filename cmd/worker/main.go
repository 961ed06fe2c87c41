package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-edu/meridian-backoffice/internal/app"
	"github.com/meridian-edu/meridian-backoffice/internal/audit"
	"github.com/meridian-edu/meridian-backoffice/internal/backup"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/db"
	"github.com/meridian-edu/meridian-backoffice/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	auditService := audit.NewService(audit.NewRepository(dbpool))

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskAuditRetention, Handler: jobs.NewAuditRetentionHandler(auditService, logger)},
	}
	var cron []jobs.CronRegistration

	if cfg.BackupBucket != "" {
		store, err := backup.NewS3Store(ctx, backup.S3Config{
			Bucket:          cfg.BackupBucket,
			Region:          cfg.BackupRegion,
			Endpoint:        cfg.BackupEndpoint,
			AccessKeyID:     cfg.BackupAccessKey,
			SecretAccessKey: cfg.BackupSecretKey,
			PathStyle:       cfg.BackupPathStyle,
		})
		if err != nil {
			logger.Error("backup store", slog.Any("error", err))
			os.Exit(1)
		}
		backupService := backup.NewService(backup.Config{
			DatabaseURL: cfg.PGDSN,
			Bucket:      cfg.BackupBucket,
			Prefix:      cfg.BackupPrefix,
			Compress:    true,
		}, store, logger)

		handlers = append(handlers, jobs.TaskHandler{
			Type:    jobs.TaskDatabaseBackup,
			Handler: jobs.NewDatabaseBackupHandler(backupService, logger),
		})
		if cfg.BackupCron != "" {
			task, err := jobs.NewDatabaseBackupTask(jobs.BackupPayload{})
			if err != nil {
				logger.Error("backup task", slog.Any("error", err))
				os.Exit(1)
			}
			cron = append(cron, jobs.CronRegistration{Spec: cfg.BackupCron, Task: task})
		}
	} else {
		logger.Warn("backup bucket not configured, database backups disabled")
	}

	if cfg.AuditRetentionDays > 0 && cfg.AuditRetentionCron != "" {
		task, err := jobs.NewAuditRetentionTask(jobs.RetentionPayload{RetentionDays: cfg.AuditRetentionDays})
		if err != nil {
			logger.Error("retention task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.AuditRetentionCron, Task: task})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  handlers,
		Cron:      cron,
	})
	if err != nil {
		logger.Error("worker setup", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
