package main

import (
	"context"

	"github.com/studymate/backend/internal/config"
	"github.com/studymate/backend/internal/handlers"
	"github.com/studymate/backend/internal/models"
	"github.com/studymate/backend/internal/services"
	"github.com/studymate/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	answerService *services.AnswerService
	sweeper       *services.SweeperService
	taskQueue     services.TaskQueue
	worker        *services.Worker
	answerHandler *handlers.AnswerHandler
	usageHandler  *handlers.UsageHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default data
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// Initialize task queue (uses Redis if enabled, otherwise in-process)
	taskQueue := services.InitTaskQueue(cfg)
	answerService := services.NewAnswerService(models.GetDB(), cfg, taskQueue)

	// Usage events flow through one processor so bucket updates stay serial
	recordUsage := func(ctx context.Context, event *services.UsageEvent) error {
		return answerService.Usage().Record(event)
	}
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(recordUsage)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(recordUsage)
			worker.Start()
		}
	}

	// Start the retention sweeper
	configService := services.NewSystemConfigService(models.GetDB())
	sweeper := services.NewSweeperService(answerService.Cache(), answerService.Usage(), configService)
	sweeper.StartScheduler()

	return &appServices{
		answerService: answerService,
		sweeper:       sweeper,
		taskQueue:     taskQueue,
		worker:        worker,
		answerHandler: handlers.NewAnswerHandler(answerService),
		usageHandler:  handlers.NewUsageHandler(answerService.Usage()),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.sweeper.StopScheduler()

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	logger.Info().Msg("All services stopped")
}
