package main

import (
	"context"

	"github.com/huangang/projecthub/internal/cache"
	"github.com/huangang/projecthub/internal/config"
	"github.com/huangang/projecthub/internal/handlers"
	"github.com/huangang/projecthub/internal/membership"
	"github.com/huangang/projecthub/internal/middleware"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/internal/services"
	"github.com/huangang/projecthub/internal/store"
	"github.com/huangang/projecthub/internal/utils"
	"github.com/huangang/projecthub/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg *config.Config
	db  *gorm.DB
	rdb *redis.Client

	evaluator   *membership.Evaluator
	eventQueue  services.EventQueue
	worker      *services.Worker
	scheduler   *cron.Cron
	rateLimiter *middleware.RateLimiter

	authHandler        *handlers.AuthHandler
	userHandler        *handlers.UserHandler
	projectHandler     *handlers.ProjectHandler
	contributorHandler *handlers.ContributorHandler
	taskHandler        *handlers.TaskHandler
	dashboardHandler   *handlers.DashboardHandler
	systemLogHandler   *handlers.SystemLogHandler
	healthHandler      *handlers.HealthHandler
}

// bootstrap initializes all application dependencies: database, cache, queue, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		client, err := cache.NewClient(context.Background(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, access cache disabled")
		} else {
			rdb = client
		}
	}

	app := newAppServices(cfg, models.GetDB(), rdb)

	services.InitSystemLogger(app.db)

	scheduler, err := services.StartLogCleanupScheduler(services.NewSystemLogService(app.db), &cfg.Audit)
	if err != nil {
		logger.Warn().Err(err).Msg("Audit log cleanup disabled")
	}
	app.scheduler = scheduler

	if app.worker != nil {
		if err := app.worker.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start event worker")
		}
	}

	authService := services.NewAuthService(app.db, &cfg.JWT)
	if err := authService.CreateAdminIfNotExists(&cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return app
}

// newAppServices wires the membership core, its collaborators and the
// HTTP handlers over db. rdb may be nil, which disables the access cache
// and forces the in-process event queue.
func newAppServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *appServices {
	st := store.New(db)
	manager := membership.NewManager(st)
	evaluator := membership.NewEvaluator(st)

	var (
		scope       membership.Scope = membership.NewResolver(st)
		invalidator services.AccessInvalidator
	)
	if rdb != nil && cfg.Access.CacheTTL > 0 {
		accessCache := cache.NewAccessCache(scope, rdb, cfg.Access.CacheTTL)
		scope = accessCache
		invalidator = accessCache
	}

	systemLogService := services.NewSystemLogService(db)

	var (
		eventQueue services.EventQueue
		worker     *services.Worker
	)
	if rdb != nil {
		eventQueue = services.InitEventQueue(cfg, systemLogService.RecordEvent)
		if eventQueue.IsAsync() {
			worker = services.NewWorker(&cfg.Redis)
			worker.SetProcessor(systemLogService.RecordEvent)
		}
	} else {
		eventQueue = services.NewSyncQueue(systemLogService.RecordEvent)
	}

	projectService := services.NewProjectService(db, manager, scope, invalidator, eventQueue)
	contributorService := services.NewContributorService(db, manager, evaluator, invalidator, eventQueue)

	var healthRedis redis.UniversalClient
	if rdb != nil {
		healthRedis = rdb
	}

	return &appServices{
		cfg:         cfg,
		db:          db,
		rdb:         rdb,
		evaluator:   evaluator,
		eventQueue:  eventQueue,
		worker:      worker,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),

		authHandler:        handlers.NewAuthHandler(services.NewAuthService(db, &cfg.JWT)),
		userHandler:        handlers.NewUserHandler(services.NewUserService(db)),
		projectHandler:     handlers.NewProjectHandler(projectService),
		contributorHandler: handlers.NewContributorHandler(contributorService),
		taskHandler:        handlers.NewTaskHandler(services.NewTaskService(db, evaluator)),
		dashboardHandler:   handlers.NewDashboardHandler(services.NewDashboardService(db, scope)),
		systemLogHandler:   handlers.NewSystemLogHandler(systemLogService),
		healthHandler:      handlers.NewHealthHandler(db, healthRedis, eventQueue),
	}
}

// shutdown gracefully stops all background work.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
	s.rateLimiter.Stop()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.eventQueue != nil {
		s.eventQueue.Close()
	}
	if s.rdb != nil {
		s.rdb.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
