package main

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"task-planner/internal/config"
	"task-planner/internal/logger"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

// core holds the storage and engine shared by every subcommand.
type core struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *gorm.DB
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
}

func openCore() (*core, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	return &core{
		cfg:      cfg,
		logger:   log,
		db:       db,
		taskRepo: repository.NewTaskRepository(db),
		userRepo: repository.NewUserRepository(db),
	}, nil
}

func (c *core) sweep(notifier service.Notifier) *service.GenerationSweep {
	factory := service.NewInstanceFactory(c.taskRepo, notifier, c.logger)
	return service.NewGenerationSweep(c.taskRepo, factory, service.SweepConfig{
		Workers:     c.cfg.SweepWorkers,
		ItemTimeout: c.cfg.SweepItemTimeout,
	}, c.logger)
}

func (c *core) Close() {
	if sqlDB, err := c.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
