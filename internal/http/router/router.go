package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/datawarehouse"
	"github.com/straye-as/pipeline-api/internal/domain"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/pipeline-api/docs" // Import generated swagger docs
)

const healthTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

type Router struct {
	cfg                *config.Config
	logger             *zap.Logger
	db                 *gorm.DB
	warehouse          *datawarehouse.Client
	redis              Pinger
	authMiddleware     *auth.Middleware
	rateLimiter        *middleware.RateLimiter
	authHandler        *handler.AuthHandler
	stageHandler       *handler.StageHandler
	opportunityHandler *handler.OpportunityHandler
	targetHandler      *handler.TargetHandler
	dashboardHandler   *handler.DashboardHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	warehouse *datawarehouse.Client,
	redis Pinger,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	authHandler *handler.AuthHandler,
	stageHandler *handler.StageHandler,
	opportunityHandler *handler.OpportunityHandler,
	targetHandler *handler.TargetHandler,
	dashboardHandler *handler.DashboardHandler,
) *Router {
	return &Router{
		cfg:                cfg,
		logger:             logger,
		db:                 db,
		warehouse:          warehouse,
		redis:              redis,
		authMiddleware:     authMiddleware,
		rateLimiter:        rateLimiter,
		authHandler:        authHandler,
		stageHandler:       stageHandler,
		opportunityHandler: opportunityHandler,
		targetHandler:      targetHandler,
		dashboardHandler:   dashboardHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)
	if timeout := rt.cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		r.Use(chimiddleware.Timeout(timeout))
	}

	// Liveness probe
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.Limit)

		r.Get("/auth/me", rt.authHandler.Me)

		r.Get("/stages", rt.stageHandler.List)
		r.With(rt.authMiddleware.RequireRole(domain.RoleAdmin, domain.RoleAPIService)).
			Post("/stages/refresh", rt.stageHandler.Refresh)

		r.Route("/opportunities", func(r chi.Router) {
			r.Get("/", rt.opportunityHandler.List)
			r.Post("/", rt.opportunityHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.opportunityHandler.GetByID)
				r.Delete("/", rt.opportunityHandler.Delete)
				r.Post("/advance", rt.opportunityHandler.Advance)
				r.Post("/win", rt.opportunityHandler.Win)
				r.Post("/lose", rt.opportunityHandler.Lose)
				r.Post("/reopen", rt.opportunityHandler.Reopen)
				r.Post("/hold", rt.opportunityHandler.Hold)
				r.Post("/resume", rt.opportunityHandler.Resume)
				r.Get("/history", rt.opportunityHandler.History)
				r.Get("/score", rt.opportunityHandler.Score)
			})
		})

		r.Route("/targets", func(r chi.Router) {
			r.Get("/", rt.targetHandler.List)
			r.Post("/", rt.targetHandler.Create)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/forecast", rt.dashboardHandler.Forecast)
			r.Get("/achievement", rt.dashboardHandler.Achievement)
			r.Get("/achievement/history", rt.dashboardHandler.AchievementHistory)
			r.Get("/leaderboard", rt.dashboardHandler.Leaderboard)
			r.Get("/overdue", rt.dashboardHandler.Overdue)
			r.Get("/scope", rt.dashboardHandler.Scope)
		})
	})

	return r
}

func writeHealth(w http.ResponseWriter, healthy bool, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// databaseHealth is the readiness probe for the primary database with pool statistics
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	stats, err := database.HealthCheckWithStats(ctx, rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, false, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeHealth(w, true, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats":   stats,
	})
}

// readiness checks every dependency. The data warehouse and Redis are optional:
// a disabled warehouse or missing Redis is reported but never fails the probe.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	allHealthy := true

	if err := database.HealthCheck(ctx, rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		allHealthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	checks["dataWarehouse"] = rt.warehouse.HealthCheck(ctx)

	if rt.redis != nil {
		if err := rt.redis.Ping(ctx); err != nil {
			rt.logger.Warn("Redis health check failed", zap.Error(err))
			checks["redis"] = map[string]interface{}{"status": "degraded", "error": err.Error()}
		} else {
			checks["redis"] = map[string]interface{}{"status": "healthy"}
		}
	}

	status := "healthy"
	if !allHealthy {
		status = "unhealthy"
	}
	writeHealth(w, allHealthy, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
