package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

const defaultNotifyTimeout = 10 * time.Second

// OccurrenceStore is the persistence the recurrence engine needs.
type OccurrenceStore interface {
	Create(ctx context.Context, task *model.Task) error
	Find(ctx context.Context, filter repository.TaskFilter) ([]model.Task, error)
	Count(ctx context.Context, filter repository.TaskFilter) (int, error)
	Update(ctx context.Context, taskID uint, fields map[string]interface{}) (*model.Task, error)
	LatestInstance(ctx context.Context, parentID uint) (*model.Task, error)
}

// InstanceFactory materializes the next occurrence of a recurring series.
// Generation for one series is serialized in-process; the store's unique
// (parent_id, due_day) index covers every other writer.
type InstanceFactory struct {
	store         OccurrenceStore
	notifier      Notifier
	logger        *slog.Logger
	notifyTimeout time.Duration
	locks         seriesLocks
}

func NewInstanceFactory(store OccurrenceStore, notifier Notifier, logger *slog.Logger) *InstanceFactory {
	return &InstanceFactory{
		store:         store,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
		locks:         seriesLocks{m: make(map[uint]*seriesLock)},
	}
}

// CreateInstance creates the occurrence following parent.DueDate.
// parent.ID names the series and parent.DueDate is its current occurrence.
//
// A nil task with a nil error means nothing was produced: the series is past
// its end date, or that day's instance already exists.
func (f *InstanceFactory) CreateInstance(ctx context.Context, parent *model.Task) (*model.Task, error) {
	unlock := f.locks.lock(parent.ID)
	defer unlock()
	return f.create(ctx, parent)
}

// EnsureNext creates the next occurrence only when no instance of the series
// is already due on that day. The check and the insert run under the series lock.
func (f *InstanceFactory) EnsureNext(ctx context.Context, current *model.Task) (*model.Task, error) {
	unlock := f.locks.lock(current.ID)
	defer unlock()

	next, ok := f.nextOccurrence(current)
	if !ok {
		return nil, nil
	}

	dayStart := model.StartOfDay(next)
	dayEnd := dayStart.AddDate(0, 0, 1)
	parentID := current.ID
	n, err := f.store.Count(ctx, repository.TaskFilter{
		ParentID:  &parentID,
		DueFrom:   &dayStart,
		DueBefore: &dayEnd,
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "check existing instance failed",
			"parent_id", current.ID, "due", model.DayKey(&next), "error", err)
		return nil, fmt.Errorf("check instance for task %d: %w", current.ID, err)
	}
	if n > 0 {
		return nil, nil
	}

	return f.create(ctx, current)
}

func (f *InstanceFactory) create(ctx context.Context, parent *model.Task) (*model.Task, error) {
	next, ok := f.nextOccurrence(parent)
	if !ok {
		f.logger.DebugContext(ctx, "series exhausted", "parent_id", parent.ID)
		return nil, nil
	}

	parentID := parent.ID
	instance := &model.Task{
		Title:       parent.Title,
		Description: parent.Description,
		Priority:    parent.Priority,
		Status:      model.StatusTodo,
		AssignedTo:  parent.AssignedTo,
		CreatedBy:   parent.CreatedBy,
		IsRecurring: false,
		DueDate:     &next,
		ParentID:    &parentID,
	}

	if err := f.store.Create(ctx, instance); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			f.logger.DebugContext(ctx, "instance already generated",
				"parent_id", parent.ID, "due", model.DayKey(&next))
			return nil, nil
		}
		f.logger.ErrorContext(ctx, "create instance failed",
			"parent_id", parent.ID, "due", model.DayKey(&next), "error", err)
		return nil, err
	}

	f.logger.InfoContext(ctx, "instance created",
		"task_id", instance.ID, "parent_id", parent.ID, "due", model.DayKey(&next))

	if instance.AssignedTo != instance.CreatedBy {
		f.notifyAssignee(ctx, instance)
	}
	return instance, nil
}

// nextOccurrence reports false when the series has no further occurrence:
// no current due date, or the next date falls after the end date.
func (f *InstanceFactory) nextOccurrence(current *model.Task) (time.Time, bool) {
	if current.DueDate == nil {
		return time.Time{}, false
	}
	next := NextDueDate(*current.DueDate, current.Recurrence())
	if pastEnd(next, current.RecurrenceEndDate) {
		return time.Time{}, false
	}
	return next, true
}

func (f *InstanceFactory) notifyAssignee(ctx context.Context, instance *model.Task) {
	if f.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.notifyTimeout)
	defer cancel()

	msg := fmt.Sprintf("♻️ New recurring task assigned to you: <b>%s</b>\n📆 Due %s",
		escape(instance.Title), model.DayKey(instance.DueDate))
	taskID := instance.ID
	if err := f.notifier.Notify(nctx, instance.AssignedTo, msg, KindRecurrence, &taskID); err != nil {
		f.logger.WarnContext(ctx, "assignment notification failed",
			"task_id", instance.ID, "user_id", instance.AssignedTo, "error", err)
	}
}

// seriesLocks hands out one mutex per series. An entry lives only while
// some caller holds or waits for it.
type seriesLocks struct {
	mu sync.Mutex
	m  map[uint]*seriesLock
}

type seriesLock struct {
	sync.Mutex
	refs int
}

func (l *seriesLocks) lock(seriesID uint) func() {
	l.mu.Lock()
	sl, ok := l.m[seriesID]
	if !ok {
		sl = &seriesLock{}
		l.m[seriesID] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.m, seriesID)
		}
		l.mu.Unlock()
	}
}

func (l *seriesLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
