package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/straye-as/pipeline-api/docs"
	"github.com/straye-as/pipeline-api/internal/auth"
	"github.com/straye-as/pipeline-api/internal/cache"
	"github.com/straye-as/pipeline-api/internal/config"
	"github.com/straye-as/pipeline-api/internal/database"
	"github.com/straye-as/pipeline-api/internal/datawarehouse"
	"github.com/straye-as/pipeline-api/internal/http/handler"
	"github.com/straye-as/pipeline-api/internal/http/middleware"
	"github.com/straye-as/pipeline-api/internal/http/router"
	"github.com/straye-as/pipeline-api/internal/jobs"
	"github.com/straye-as/pipeline-api/internal/logger"
	"github.com/straye-as/pipeline-api/internal/pipeline"
	"github.com/straye-as/pipeline-api/internal/repository"
	"github.com/straye-as/pipeline-api/internal/service"
	"github.com/straye-as/pipeline-api/internal/storage"
	"go.uber.org/zap"
)

// @title Straye Pipeline API
// @version 1.0
// @description Sales pipeline API: stage transitions, forecasts, performance scoring and target achievement
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@straye.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "straye-pipeline-staging.proudsmoke-10281cc0.norwayeast.azurecontainerapps.io"
	case "production":
		docs.SwaggerInfo.Host = "pipeline.straye.no"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In development secrets come from the environment,
	// in staging/production from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	rules := service.PipelineRules{
		Thresholds: pipeline.Thresholds{
			Commit:   cfg.Pipeline.CommitThreshold,
			BestCase: cfg.Pipeline.BestCaseThreshold,
		},
		DefaultDueDays: cfg.Pipeline.DefaultDueDays,
	}
	if err := rules.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to auto-migrate: %w", err)
		}
		if err := database.SeedStages(ctx, db, pipeline.DefaultStages()); err != nil {
			return fmt.Errorf("failed to seed stages: %w", err)
		}
		log.Info("Database auto-migrated and stages seeded")
	}

	// Redis backs the stage catalog cache and the snapshot job lock.
	// Without it each replica caches in memory and runs jobs unlocked.
	var (
		catalogCache cache.Cache
		redisCache   *cache.RedisCache
		redisPinger  router.Pinger
		locker       jobs.Locker = jobs.LocalLocker{}
	)
	if cfg.Redis.Enabled {
		redisCache = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			log.Warn("Redis not reachable at startup, continuing", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		catalogCache = redisCache
		redisPinger = redisCache
		locker = jobs.NewRedisLocker(redislock.New(redisCache.Client()))
		log.Info("Redis cache enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		catalogCache = cache.NewMemory()
		log.Info("Redis not configured, using in-memory catalog cache")
	}

	// Achievement reports are optional
	var reportStorage storage.Storage
	if cfg.Storage.Mode != "" && cfg.Storage.Mode != "none" {
		reportStorage, err = storage.NewStorage(&cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))
	}

	// The data warehouse is read-only and optional. Without it actuals
	// are summed from won opportunities.
	var dwClient *datawarehouse.Client
	if cfg.DataWarehouse.Enabled {
		dwClient, err = datawarehouse.NewClient(&cfg.DataWarehouse, log)
		if err != nil {
			log.Warn("Data warehouse connection failed, continuing without it", zap.Error(err))
			dwClient = nil
		} else if dwClient != nil {
			log.Info("Data warehouse connected successfully",
				zap.Int("max_open_conns", cfg.DataWarehouse.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.DataWarehouse.QueryTimeout),
			)
		}
	} else {
		log.Info("Data warehouse not configured, skipping")
	}

	// Repositories
	stageRepo := repository.NewStageRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	oppRepo := repository.NewOpportunityRepository(db)
	historyRepo := repository.NewStageHistoryRepository(db)
	targetRepo := repository.NewTargetRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	// Services
	catalogService := service.NewCatalogService(stageRepo, catalogCache, cfg.Pipeline.CatalogCacheTTLDuration(), log)
	scopeService := service.NewScopeService(profileRepo, cfg.Pipeline.IncludeUnassignedFallback, log)
	actuals := service.NewActualsProvider(dwClient, oppRepo)
	targetService := service.NewTargetService(targetRepo, scopeService, actuals, log)
	opportunityService := service.NewOpportunityService(oppRepo, historyRepo, catalogService, scopeService, rules, log, db)
	dashboardService := service.NewDashboardService(oppRepo, historyRepo, catalogService, scopeService, rules, log)
	snapshotService := service.NewSnapshotService(targetService, scopeService, snapshotRepo, reportStorage, log)

	log.Info("Actuals source selected", zap.String("source", actuals.Name()))

	// Middleware
	jwtManager := auth.NewJWTManager(&cfg.Auth)
	authMiddleware := auth.NewMiddleware(cfg, jwtManager, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	authHandler := handler.NewAuthHandler(scopeService, log)
	stageHandler := handler.NewStageHandler(catalogService, log)
	opportunityHandler := handler.NewOpportunityHandler(opportunityService, log)
	targetHandler := handler.NewTargetHandler(targetService, log)
	dashboardHandler := handler.NewDashboardHandler(dashboardService, targetService, snapshotService, scopeService, log)

	rt := router.NewRouter(
		cfg,
		log,
		db,
		dwClient,
		redisPinger,
		authMiddleware,
		rateLimiter,
		authHandler,
		stageHandler,
		opportunityHandler,
		targetHandler,
		dashboardHandler,
	)

	var scheduler *jobs.Scheduler
	if cfg.Jobs.SnapshotEnabled {
		scheduler = jobs.NewScheduler(log)
		snapshotJob := jobs.NewSnapshotJob(
			snapshotService,
			locker,
			log,
			cfg.Jobs.SnapshotTimeoutDuration(),
			cfg.Jobs.SnapshotLockTTLDuration(),
		)
		if err := scheduler.AddJob(jobs.SnapshotJobName, cfg.Jobs.SnapshotCron, snapshotJob.Run); err != nil {
			log.Error("Failed to register snapshot job", zap.Error(err))
		} else {
			scheduler.Start()
			next, _ := scheduler.NextRun(jobs.SnapshotJobName)
			log.Info("Scheduler started with snapshot job",
				zap.String("cron_expr", cfg.Jobs.SnapshotCron),
				zap.Time("next_run", next),
			)
		}
	} else {
		log.Info("Achievement snapshot job disabled")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if dwClient != nil {
			if err := dwClient.Close(); err != nil {
				log.Warn("Error closing data warehouse connection", zap.Error(err))
			}
		}
		if redisCache != nil {
			if err := redisCache.Close(); err != nil {
				log.Warn("Error closing redis connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
