package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-edu/meridian-backoffice/internal/app"
	"github.com/meridian-edu/meridian-backoffice/internal/audit"
	"github.com/meridian-edu/meridian-backoffice/internal/auth"
	"github.com/meridian-edu/meridian-backoffice/internal/batches"
	"github.com/meridian-edu/meridian-backoffice/internal/courses"
	"github.com/meridian-edu/meridian-backoffice/internal/finance"
	"github.com/meridian-edu/meridian-backoffice/internal/observability"
	"github.com/meridian-edu/meridian-backoffice/internal/placements"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/cache"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/db"
	"github.com/meridian-edu/meridian-backoffice/internal/rbac"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
	"github.com/meridian-edu/meridian-backoffice/internal/students"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "meridian_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	policy := rbac.NewPolicy(rbac.DefaultPolicyConfig(cfg.SuperAdmins()))
	rbacMiddleware := rbac.Middleware{Policy: policy, Logger: logger}

	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	recorder := audit.NewRecorder(dbpool)
	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	financeRepo := finance.NewRepository(dbpool)
	resolver := finance.NewResolver(financeRepo, logger)
	detector := finance.NewDetector(financeRepo, logger)
	orchestrator := finance.NewOrchestrator(financeRepo, recorder, resolver, detector, logger, metrics)
	financeHandler := finance.NewHandler(logger, orchestrator, rbacMiddleware)

	studentService := students.NewService(students.NewRepository(dbpool), recorder, logger)
	studentHandler := students.NewHandler(studentService, rbacMiddleware)

	batchService := batches.NewService(batches.NewRepository(dbpool), recorder, logger)
	batchHandler := batches.NewHandler(batchService, rbacMiddleware)

	courseService := courses.NewService(courses.NewRepository(dbpool), recorder, logger)
	courseHandler := courses.NewHandler(courseService, rbacMiddleware)

	placementService := placements.NewService(placements.NewRepository(dbpool), recorder, logger)
	placementHandler := placements.NewHandler(placementService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Pool:             dbpool,
		RBACMiddleware:   rbacMiddleware,
		Metrics:          metrics,
		AuthHandler:      authHandler,
		FinanceHandler:   financeHandler,
		StudentHandler:   studentHandler,
		BatchHandler:     batchHandler,
		CourseHandler:    courseHandler,
		PlacementHandler: placementHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		JobClient:        jobClient,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
