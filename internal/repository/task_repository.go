package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"task-planner/internal/model"
)

// TaskFilter narrows Find and Count. Zero-valued fields are ignored.
type TaskFilter struct {
	IsRecurring *bool
	Status      *model.Status
	// Open excludes completed tasks.
	Open bool
	// RootsOnly keeps tasks without a parent.
	RootsOnly  bool
	ParentID   *uint
	AssignedTo *uint
	// DueFrom and DueBefore bound the due day, [DueFrom, DueBefore), at day precision.
	DueFrom   *time.Time
	DueBefore *time.Time
}

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", mapError(err))
	}
	return nil
}

func (r *TaskRepository) Find(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.scope(ctx, filter).
		Order("due_date IS NULL, due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find tasks: %w", mapError(err))
	}
	return tasks, nil
}

func (r *TaskRepository) Count(ctx context.Context, filter TaskFilter) (int, error) {
	var n int64
	if err := r.scope(ctx, filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", mapError(err))
	}
	return int(n), nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, mapError(err)
	}
	return &task, nil
}

// LatestInstance returns the instance of the series with the latest due day,
// or nil when the series has none yet.
func (r *TaskRepository) LatestInstance(ctx context.Context, parentID uint) (*model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("due_day DESC, id DESC").
		Limit(1).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("latest instance: %w", mapError(err))
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// Update applies column updates to a single task and returns the fresh row.
func (r *TaskRepository) Update(ctx context.Context, taskID uint, fields map[string]interface{}) (*model.Task, error) {
	if due, ok := fields["due_date"]; ok {
		switch v := due.(type) {
		case *time.Time:
			fields["due_day"] = model.DayKey(v)
		case time.Time:
			fields["due_day"] = model.DayKey(&v)
		case nil:
			fields["due_day"] = ""
		}
	}

	res := r.db.WithContext(ctx).
		Session(&gorm.Session{SkipHooks: true}).
		Model(&model.Task{}).
		Where("id = ?", taskID).
		Updates(fields)
	if res.Error != nil {
		return nil, fmt.Errorf("update task: %w", mapError(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("update task %d: %w", taskID, ErrNotFound)
	}
	return r.FindByID(ctx, taskID)
}

// Delete removes a task regardless of it being recurring or not.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, taskID)
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", mapError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete task %d: %w", taskID, ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) scope(ctx context.Context, f TaskFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if f.IsRecurring != nil {
		q = q.Where("is_recurring = ?", *f.IsRecurring)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Open {
		q = q.Where("status <> ?", model.StatusCompleted)
	}
	if f.RootsOnly {
		q = q.Where("parent_id IS NULL")
	}
	if f.ParentID != nil {
		q = q.Where("parent_id = ?", *f.ParentID)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *f.AssignedTo)
	}
	if f.DueFrom != nil {
		q = q.Where("due_day >= ?", model.DayKey(f.DueFrom))
	}
	if f.DueBefore != nil {
		q = q.Where("due_day <> '' AND due_day < ?", model.DayKey(f.DueBefore))
	}
	return q
}
