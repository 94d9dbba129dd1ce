package api

import (
	"context"
	"net/http"
	"time"

	_ "github.com/athebyme/listing-publisher/docs"
	"github.com/athebyme/listing-publisher/internal/api/handlers"
	"github.com/athebyme/listing-publisher/internal/api/middleware"
	"github.com/athebyme/listing-publisher/pkg/auth"
	"github.com/athebyme/listing-publisher/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterDeps зависимости HTTP API
type RouterDeps struct {
	Publisher     handlers.PublishService
	Admin         handlers.AdminService
	SyncLogs      handlers.SyncLogReader
	Authenticator interfaces.AuthPort

	// AdminRoles роли, которым разрешены повтор, очистка и архивация задач
	AdminRoles         []string
	CORSAllowedOrigins []string
	RateLimit          float64
	RateBurst          int
	RequestTimeout     time.Duration

	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Health         func(ctx context.Context) error
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(deps RouterDeps, logger interfaces.LoggerPort) *chi.Mux {
	r := chi.NewRouter()

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Глобальные middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(chimiddleware.Timeout(timeout))
	r.Use(middleware.CORS(deps.CORSAllowedOrigins))
	r.Use(middleware.Tracing)
	r.Use(middleware.SecurityHeaders)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler)
	}

	health := func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(r.Context()); err != nil {
				logger.WarnWithContext(r.Context(), "Проверка готовности не пройдена",
					interfaces.LogField{Key: "error", Value: err.Error()})
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, map[string]string{"status": "unavailable"})
				return
			}
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
	r.Get("/health", health)
	r.Head("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimiter(deps.RateLimit, deps.RateBurst))
		r.Use(auth.AuthMiddleware(deps.Authenticator, logger))

		listingHandler := handlers.NewListingHandler(deps.Publisher, deps.SyncLogs, logger)
		jobHandler := handlers.NewJobHandler(deps.Publisher, deps.Admin, logger)
		requireAdmin := auth.RequireAnyRole(deps.AdminRoles...)

		r.Route("/listings/{listingId}", func(r chi.Router) {
			r.Post("/publish", listingHandler.PublishListing)
			r.Get("/sync-logs", listingHandler.ListSyncLogs)
		})

		r.Route("/listing-publisher", func(r chi.Router) {
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{jobId}", jobHandler.GetJob)
			r.Get("/stats", jobHandler.QueueStats)
			r.Get("/stats/{platform}", jobHandler.PlatformStats)

			// Административные операции
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/jobs/{jobId}/retry", jobHandler.RetryJob)
				r.Post("/jobs/clean", jobHandler.CleanJobs)
				r.Post("/jobs/retry-failed", jobHandler.RetryFailedJobs)
				r.Post("/jobs/archive", jobHandler.ArchiveJobs)
			})
		})
	})

	return r
}
