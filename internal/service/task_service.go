package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"task-planner/internal/access"
	"task-planner/internal/model"
	"task-planner/internal/repository"
)

var (
	ErrForbidden    = errors.New("not allowed")
	ErrInvalidInput = errors.New("invalid input")
)

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string         `validate:"required,max=200"`
	Description string         `validate:"max=2000"`
	Priority    model.Priority `validate:"omitempty,oneof=low medium high"`
	DueDate     *time.Time
	// AssignedTo defaults to the creator when zero.
	AssignedTo uint
	Recurrence *RecurrenceInput
}

// RecurrenceInput is the repeat rule of a recurring root.
type RecurrenceInput struct {
	Type       model.RecurrenceType `validate:"required,oneof=daily weekly monthly custom"`
	Interval   int                  `validate:"gte=0,lte=365"`
	Days       []int                `validate:"omitempty,max=7,dive,min=0,max=6"`
	DayOfMonth int                  `validate:"omitempty,min=1,max=31"`
	EndDate    *time.Time
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
	sweep    *GenerationSweep
	notifier Notifier
	validate *validator.Validate
	logger   *slog.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository, sweep *GenerationSweep, notifier Notifier, logger *slog.Logger) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		userRepo: userRepo,
		sweep:    sweep,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, actor *model.User, input TaskInput) (*model.Task, error) {
	if !access.HasPermission(actor, access.TasksCreate) {
		return nil, ErrForbidden
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Recurrence != nil {
		if err := checkRecurrence(input.DueDate, *input.Recurrence); err != nil {
			return nil, err
		}
	}

	assignee := actor.ID
	if input.AssignedTo != 0 && input.AssignedTo != actor.ID {
		if !access.HasPermission(actor, access.TasksAssign) {
			return nil, ErrForbidden
		}
		if _, err := s.userRepo.FindByID(ctx, input.AssignedTo); err != nil {
			return nil, fmt.Errorf("assignee %d: %w", input.AssignedTo, err)
		}
		assignee = input.AssignedTo
	}

	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	task := model.Task{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
		Priority:    priority,
		Status:      model.StatusTodo,
		AssignedTo:  assignee,
		CreatedBy:   actor.ID,
	}
	if r := input.Recurrence; r != nil {
		task.IsRecurring = true
		task.RecurrenceType = r.Type
		task.RecurrenceInterval = normalizeInterval(r.Interval)
		task.RecurrenceDays = datatypes.JSONSlice[int](weekdaySet(r.Days))
		task.RecurrenceDayOfMonth = r.DayOfMonth
		task.RecurrenceEndDate = r.EndDate
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "task created",
		"task_id", task.ID, "user_id", actor.ID, "recurring", task.IsRecurring)

	if task.AssignedTo != actor.ID {
		s.notifyAssigned(ctx, &task, actor)
	}
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, actor *model.User, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(actor, task) {
		return nil, ErrForbidden
	}
	return task, nil
}

// ListForUser returns the open tasks assigned to user plus every recurring
// series they are assigned, completed or not.
func (s *TaskService) ListForUser(ctx context.Context, user *model.User) ([]model.Task, error) {
	open, err := s.taskRepo.Find(ctx, repository.TaskFilter{AssignedTo: &user.ID, Open: true})
	if err != nil {
		return nil, err
	}
	recurring := true
	roots, err := s.taskRepo.Find(ctx, repository.TaskFilter{AssignedTo: &user.ID, IsRecurring: &recurring, RootsOnly: true})
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(open))
	for _, t := range open {
		seen[t.ID] = true
	}
	for _, t := range roots {
		if !seen[t.ID] {
			open = append(open, t)
		}
	}
	return open, nil
}

// CompleteTask marks a task as done. Completing a recurring root or one of its
// instances then reconciles the series, the same way the sweep does.
func (s *TaskService) CompleteTask(ctx context.Context, actor *model.User, taskID uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanUpdate(actor, task) {
		return nil, ErrForbidden
	}

	if !task.IsCompleted() {
		task, err = s.taskRepo.Update(ctx, taskID, map[string]interface{}{
			"status":       model.StatusCompleted,
			"completed_at": completedAt,
		})
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "task completed", "task_id", task.ID, "user_id", actor.ID)
	}

	s.reconcileAfterEdit(ctx, task)
	return task, nil
}

// ReopenTask moves a task back to todo.
func (s *TaskService) ReopenTask(ctx context.Context, actor *model.User, taskID uint) (*model.Task, error) {
	return s.setStatus(ctx, actor, taskID, model.StatusTodo)
}

// StartTask marks a task as in progress.
func (s *TaskService) StartTask(ctx context.Context, actor *model.User, taskID uint) (*model.Task, error) {
	return s.setStatus(ctx, actor, taskID, model.StatusInProgress)
}

func (s *TaskService) setStatus(ctx context.Context, actor *model.User, taskID uint, status model.Status) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanUpdate(actor, task) {
		return nil, ErrForbidden
	}
	return s.taskRepo.Update(ctx, taskID, map[string]interface{}{
		"status":       status,
		"completed_at": nil,
	})
}

// AssignTask hands a task to another user and tells them about it.
func (s *TaskService) AssignTask(ctx context.Context, actor *model.User, taskID uint, assignee *model.User) (*model.Task, error) {
	if !access.HasPermission(actor, access.TasksAssign) {
		return nil, ErrForbidden
	}
	if _, err := s.taskRepo.FindByID(ctx, taskID); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.Update(ctx, taskID, map[string]interface{}{"assigned_to": assignee.ID})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "task assigned", "task_id", task.ID, "user_id", assignee.ID, "by", actor.ID)

	if assignee.ID != actor.ID {
		s.notifyAssigned(ctx, task, actor)
	}
	return task, nil
}

// UpdateRecurrence replaces the repeat rule of a recurring root and
// reconciles the series under the new rule.
func (s *TaskService) UpdateRecurrence(ctx context.Context, actor *model.User, taskID uint, input RecurrenceInput) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !access.CanUpdate(actor, task) {
		return nil, ErrForbidden
	}
	if !task.IsRoot() {
		return nil, fmt.Errorf("%w: task %d is not a recurring root", ErrInvalidInput, taskID)
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := checkRecurrence(task.DueDate, input); err != nil {
		return nil, err
	}

	task, err = s.taskRepo.Update(ctx, taskID, map[string]interface{}{
		"recurrence_type":         input.Type,
		"recurrence_interval":     normalizeInterval(input.Interval),
		"recurrence_days":         datatypes.JSONSlice[int](weekdaySet(input.Days)),
		"recurrence_day_of_month": input.DayOfMonth,
		"recurrence_end_date":     input.EndDate,
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "recurrence updated", "task_id", task.ID, "type", task.RecurrenceType)

	s.reconcileAfterEdit(ctx, task)
	return task, nil
}

// DeleteTask removes a task completely. Instances of a deleted root stay as ordinary tasks.
func (s *TaskService) DeleteTask(ctx context.Context, actor *model.User, taskID uint) error {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !access.CanDelete(actor, task) {
		return ErrForbidden
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "task deleted", "task_id", taskID, "user_id", actor.ID)
	return nil
}

// RunSweep triggers a generation sweep on behalf of actor.
func (s *TaskService) RunSweep(ctx context.Context, actor *model.User) (SweepResult, error) {
	if !access.HasPermission(actor, access.SweepRun) {
		return SweepResult{}, ErrForbidden
	}
	return s.sweep.Run(ctx), nil
}

// reconcileAfterEdit finds the series task belongs to and reconciles it.
// Failures are logged; the edit itself already succeeded.
func (s *TaskService) reconcileAfterEdit(ctx context.Context, task *model.Task) {
	root := task
	if task.IsInstance() {
		parent, err := s.taskRepo.FindByID(ctx, *task.ParentID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				s.logger.ErrorContext(ctx, "load series root failed",
					"task_id", task.ID, "parent_id", *task.ParentID, "error", err)
			}
			return
		}
		root = parent
	}
	if !root.IsRoot() {
		return
	}

	if _, err := s.sweep.ReconcileSeries(ctx, root); err != nil {
		s.logger.ErrorContext(ctx, "reconcile series failed", "task_id", root.ID, "error", err)
	}
}

func (s *TaskService) notifyAssigned(ctx context.Context, task *model.Task, by *model.User) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultNotifyTimeout)
	defer cancel()

	msg := fmt.Sprintf("📌 %s assigned you a task: <b>%s</b>", escape(by.DisplayName()), escape(task.Title))
	if task.DueDate != nil {
		msg += fmt.Sprintf("\n📆 Due %s", model.DayKey(task.DueDate))
	}
	taskID := task.ID
	if err := s.notifier.Notify(nctx, task.AssignedTo, msg, KindAssignment, &taskID); err != nil {
		s.logger.WarnContext(ctx, "assignment notification failed",
			"task_id", task.ID, "user_id", task.AssignedTo, "error", err)
	}
}

func checkRecurrence(due *time.Time, r RecurrenceInput) error {
	if due == nil {
		return fmt.Errorf("%w: a recurring task needs a due date", ErrInvalidInput)
	}
	if r.EndDate != nil && r.EndDate.Before(model.StartOfDay(*due)) {
		return fmt.Errorf("%w: recurrence ends before the first due date", ErrInvalidInput)
	}
	return nil
}

func normalizeInterval(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
