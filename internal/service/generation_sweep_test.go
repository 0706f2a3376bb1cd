package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

func newTaskRepo(t *testing.T) (*repository.TaskRepository, *repository.UserRepository) {
	t.Helper()
	db, err := repository.NewDB(":memory:", logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repository.NewTaskRepository(db), repository.NewUserRepository(db)
}

func newSweep(store OccurrenceStore, notifier Notifier, workers int) *GenerationSweep {
	factory := NewInstanceFactory(store, notifier, logger.Discard())
	return NewGenerationSweep(store, factory, SweepConfig{Workers: workers, ItemTimeout: 5 * time.Second}, logger.Discard())
}

func instanceDays(t *testing.T, repo *repository.TaskRepository, rootID uint) []string {
	t.Helper()
	tasks, err := repo.Find(context.Background(), repository.TaskFilter{ParentID: &rootID})
	require.NoError(t, err)
	days := make([]string, 0, len(tasks))
	for _, task := range tasks {
		days = append(days, task.DueDay)
	}
	return days
}

func TestGenerationSweep_WeeklySeriesFollowsCompletion(t *testing.T) {
	repo, _ := newTaskRepo(t)
	ctx := context.Background()
	monday := date(2024, 1, 1)
	root := &model.Task{
		Title:          "Team sync",
		DueDate:        &monday,
		AssignedTo:     1,
		CreatedBy:      1,
		IsRecurring:    true,
		RecurrenceType: model.RecurWeekly,
		RecurrenceDays: []int{1, 4},
	}
	require.NoError(t, repo.Create(ctx, root))
	sweep := newSweep(repo, nil, 2)

	res := sweep.Run(ctx)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Created)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"2024-01-04"}, instanceDays(t, repo, root.ID))

	// The open Thursday instance holds the series back.
	res = sweep.Run(ctx)
	assert.Zero(t, res.Created)
	assert.Equal(t, []string{"2024-01-04"}, instanceDays(t, repo, root.ID))

	latest, err := repo.LatestInstance(ctx, root.ID)
	require.NoError(t, err)
	_, err = repo.Update(ctx, latest.ID, map[string]interface{}{"status": model.StatusCompleted})
	require.NoError(t, err)

	res = sweep.Run(ctx)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, []string{"2024-01-04", "2024-01-08"}, instanceDays(t, repo, root.ID))

	res = sweep.Run(ctx)
	assert.Zero(t, res.Created)
}

func TestGenerationSweep_CompletedRootAndPasses(t *testing.T) {
	repo, _ := newTaskRepo(t)
	ctx := context.Background()

	due := date(2024, 6, 1)
	done := &model.Task{Title: "Pay rent", DueDate: &due, IsRecurring: true, RecurrenceType: model.RecurMonthly, RecurrenceDayOfMonth: 1, Status: model.StatusCompleted}
	open := &model.Task{Title: "Backup", DueDate: &due, IsRecurring: true, RecurrenceType: model.RecurDaily, RecurrenceInterval: 2}
	plain := &model.Task{Title: "One-off", DueDate: &due}
	for _, task := range []*model.Task{done, open, plain} {
		require.NoError(t, repo.Create(ctx, task))
	}

	res := newSweep(repo, nil, 4).Run(ctx)
	// The completed root is seen by both passes but yields a single instance.
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, []string{"2024-07-01"}, instanceDays(t, repo, done.ID))
	assert.Equal(t, []string{"2024-06-03"}, instanceDays(t, repo, open.ID))
	assert.Empty(t, instanceDays(t, repo, plain.ID))
}

func TestGenerationSweep_ExhaustedSeries(t *testing.T) {
	repo, _ := newTaskRepo(t)
	ctx := context.Background()

	due := date(2024, 1, 1)
	end := date(2024, 1, 5)
	root := &model.Task{Title: "Trial", DueDate: &due, IsRecurring: true, RecurrenceType: model.RecurWeekly, RecurrenceEndDate: &end}
	require.NoError(t, repo.Create(ctx, root))

	res := newSweep(repo, nil, 1).Run(ctx)
	assert.Equal(t, 1, res.Processed)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Failed)
}

func TestGenerationSweep_FailingSeriesIsIsolated(t *testing.T) {
	bad := dailyRoot(1, date(2024, 1, 1))
	good := dailyRoot(2, date(2024, 1, 1))
	store := newMemStore(bad, good)
	store.latestErr[bad.ID] = errStorage

	res := newSweep(store, nil, 2).Run(context.Background())
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Created)
	assert.Len(t, store.instances(good.ID), 1)
	assert.Empty(t, store.instances(bad.ID))
}

func TestGenerationSweep_ConcurrentRunsCreateOnce(t *testing.T) {
	repo, _ := newTaskRepo(t)
	ctx := context.Background()

	roots := make([]*model.Task, 0, 5)
	for i := 0; i < 5; i++ {
		due := date(2024, 1, 1+i)
		root := &model.Task{Title: "Series", DueDate: &due, IsRecurring: true, RecurrenceType: model.RecurDaily}
		require.NoError(t, repo.Create(ctx, root))
		roots = append(roots, root)
	}

	// Separate sweeps share nothing but the database, like two processes.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := newSweep(repo, nil, 3).Run(ctx)
			assert.Zero(t, res.Failed)
		}()
	}
	wg.Wait()

	for _, root := range roots {
		assert.Len(t, instanceDays(t, repo, root.ID), 1, "root %d", root.ID)
	}
}

func TestGenerationSweep_ReconcileSeriesRejectsInstances(t *testing.T) {
	parent := uint(1)
	inst := model.Task{ID: 2, ParentID: &parent}
	sweep := newSweep(newMemStore(), nil, 1)

	_, err := sweep.ReconcileSeries(context.Background(), &inst)
	assert.Error(t, err)
}

func TestNewGenerationSweep_Defaults(t *testing.T) {
	s := NewGenerationSweep(newMemStore(), nil, SweepConfig{}, logger.Discard())
	assert.Equal(t, 1, s.cfg.Workers)
	assert.Equal(t, 30*time.Second, s.cfg.ItemTimeout)
}
