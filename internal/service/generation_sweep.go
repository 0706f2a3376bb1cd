package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// SweepConfig tunes a GenerationSweep.
type SweepConfig struct {
	// Workers bounds how many series a pass reconciles at once. Values below 1 mean 1.
	Workers int
	// ItemTimeout bounds the storage and notification work for one series.
	ItemTimeout time.Duration
}

// SweepResult summarizes one Run.
type SweepResult struct {
	RunID     string
	Processed int
	Created   int
	Failed    int
}

type passStats struct {
	processed atomic.Int64
	created   atomic.Int64
	failed    atomic.Int64
}

// GenerationSweep is the periodic entry point of recurrence generation.
type GenerationSweep struct {
	store   OccurrenceStore
	factory *InstanceFactory
	cfg     SweepConfig
	logger  *slog.Logger
}

func NewGenerationSweep(store OccurrenceStore, factory *InstanceFactory, cfg SweepConfig, logger *slog.Logger) *GenerationSweep {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 30 * time.Second
	}
	return &GenerationSweep{store: store, factory: factory, cfg: cfg, logger: logger}
}

// Run executes both passes to completion. A failing series is logged, counted
// and skipped; it never aborts the run. Running again without task changes
// creates nothing.
func (s *GenerationSweep) Run(ctx context.Context) SweepResult {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)
	started := time.Now()

	completed := model.StatusCompleted
	recurring := true
	passes := []struct {
		name   string
		filter repository.TaskFilter
	}{
		{name: "completed-parent", filter: repository.TaskFilter{IsRecurring: &recurring, Status: &completed}},
		{name: "upcoming-root", filter: repository.TaskFilter{IsRecurring: &recurring, RootsOnly: true}},
	}

	result := SweepResult{RunID: runID}
	for _, p := range passes {
		stats := s.runPass(ctx, logger.With("pass", p.name), p.filter)
		result.Processed += int(stats.processed.Load())
		result.Created += int(stats.created.Load())
		result.Failed += int(stats.failed.Load())
	}

	logger.InfoContext(ctx, "sweep finished",
		"processed", result.Processed,
		"created", result.Created,
		"failed", result.Failed,
		"duration", time.Since(started))
	return result
}

func (s *GenerationSweep) runPass(ctx context.Context, logger *slog.Logger, filter repository.TaskFilter) *passStats {
	stats := &passStats{}

	listCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	roots, err := s.store.Find(listCtx, filter)
	cancel()
	if err != nil {
		logger.ErrorContext(ctx, "list recurring tasks failed", "error", err)
		stats.failed.Add(1)
		return stats
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i := range roots {
		root := roots[i]
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
			defer cancel()

			stats.processed.Add(1)
			created, err := s.ReconcileSeries(itemCtx, &root)
			switch {
			case err != nil:
				stats.failed.Add(1)
				logger.ErrorContext(ctx, "generate instance failed", "task_id", root.ID, "error", err)
			case created != nil:
				stats.created.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.InfoContext(ctx, "pass finished",
		"processed", stats.processed.Load(),
		"created", stats.created.Load(),
		"failed", stats.failed.Load())
	return stats
}

// ReconcileSeries makes sure the occurrence after the series' latest one exists.
// While the latest instance is still open nothing is generated, so a series
// never runs ahead of its own completion. It is shared by the sweep and the
// manual edit path.
func (s *GenerationSweep) ReconcileSeries(ctx context.Context, root *model.Task) (*model.Task, error) {
	if !root.IsRoot() {
		return nil, fmt.Errorf("task %d is not a recurring root", root.ID)
	}

	latest, err := s.store.LatestInstance(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("latest instance of task %d: %w", root.ID, err)
	}

	current := *root
	if latest != nil {
		if !latest.IsCompleted() {
			return nil, nil
		}
		current.DueDate = latest.DueDate
	}
	return s.factory.EnsureNext(ctx, &current)
}
