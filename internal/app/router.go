package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
	"github.com/meridian-edu/meridian-backoffice/internal/auth"
	"github.com/meridian-edu/meridian-backoffice/internal/batches"
	"github.com/meridian-edu/meridian-backoffice/internal/courses"
	"github.com/meridian-edu/meridian-backoffice/internal/finance"
	"github.com/meridian-edu/meridian-backoffice/internal/observability"
	"github.com/meridian-edu/meridian-backoffice/internal/placements"
	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
	"github.com/meridian-edu/meridian-backoffice/internal/rbac"
	"github.com/meridian-edu/meridian-backoffice/internal/shared"
	"github.com/meridian-edu/meridian-backoffice/internal/students"
	"github.com/meridian-edu/meridian-backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Pool           *pgxpool.Pool
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics

	AuthHandler      *auth.Handler
	FinanceHandler   *finance.Handler
	StudentHandler   *students.Handler
	BatchHandler     *batches.Handler
	CourseHandler    *courses.Handler
	PlacementHandler *placements.Handler
	AuditHandler     *audit.Handler
	JobHandler       *jobs.Handler
	JobClient        *jobs.Client
}

// NewRouter constructs the chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if params.Pool != nil {
			if err := params.Pool.Ping(r.Context()); err != nil {
				params.Logger.Warn("healthz db ping", slog.Any("error", err))
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The CSRF token endpoint lets an authenticated client bootstrap its
	// write header.
	r.Get("/csrf", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		token, err := params.CSRFManager.EnsureToken(r.Context(), sess)
		if err != nil {
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Financial records: /payments, /installments, /expenses.
	params.FinanceHandler.MountRoutes(r)

	r.Route("/students", params.StudentHandler.MountRoutes)
	r.Route("/batches", params.BatchHandler.MountRoutes)
	r.Route("/courses", params.CourseHandler.MountRoutes)
	r.Route("/placements", params.PlacementHandler.MountRoutes)
	r.Route("/audit-logs", params.AuditHandler.MountRoutes)

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(params.RBACMiddleware.Require(rbac.ResourceAdmin))
		if params.JobHandler != nil {
			admin.Route("/jobs", params.JobHandler.MountRoutes)
		}
		admin.Post("/backup", func(w http.ResponseWriter, r *http.Request) {
			if params.JobClient == nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "job queue not configured")
				return
			}
			info, err := params.JobClient.EnqueueBackup(r.Context(), jobs.BackupPayload{})
			if err != nil {
				params.Logger.Error("enqueue backup", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID})
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
