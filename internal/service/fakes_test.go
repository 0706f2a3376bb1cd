package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// memStore is an in-memory OccurrenceStore enforcing the one-instance-per-day rule.
type memStore struct {
	mu        sync.Mutex
	tasks     []model.Task
	nextID    uint
	creates   int
	createErr error
	latestErr map[uint]error
}

func newMemStore(tasks ...model.Task) *memStore {
	s := &memStore{latestErr: map[uint]error{}}
	for _, t := range tasks {
		if t.ID > s.nextID {
			s.nextID = t.ID
		}
		t.DueDay = model.DayKey(t.DueDate)
		s.tasks = append(s.tasks, t)
	}
	return s
}

func (s *memStore) Create(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	task.DueDay = model.DayKey(task.DueDate)
	for _, t := range s.tasks {
		if t.ParentID != nil && task.ParentID != nil && *t.ParentID == *task.ParentID && t.DueDay == task.DueDay {
			return fmt.Errorf("create task: %w", repository.ErrDuplicate)
		}
	}
	s.nextID++
	task.ID = s.nextID
	s.creates++
	s.tasks = append(s.tasks, *task)
	return nil
}

func (s *memStore) match(t model.Task, f repository.TaskFilter) bool {
	switch {
	case f.IsRecurring != nil && t.IsRecurring != *f.IsRecurring:
		return false
	case f.Status != nil && t.Status != *f.Status:
		return false
	case f.Open && t.IsCompleted():
		return false
	case f.RootsOnly && t.ParentID != nil:
		return false
	case f.ParentID != nil && (t.ParentID == nil || *t.ParentID != *f.ParentID):
		return false
	case f.AssignedTo != nil && t.AssignedTo != *f.AssignedTo:
		return false
	case f.DueFrom != nil && t.DueDay < model.DayKey(f.DueFrom):
		return false
	case f.DueBefore != nil && (t.DueDay == "" || t.DueDay >= model.DayKey(f.DueBefore)):
		return false
	}
	return true
}

func (s *memStore) Find(_ context.Context, f repository.TaskFilter) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for _, t := range s.tasks {
		if s.match(t, f) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) Count(ctx context.Context, f repository.TaskFilter) (int, error) {
	tasks, err := s.Find(ctx, f)
	return len(tasks), err
}

func (s *memStore) Update(_ context.Context, id uint, fields map[string]interface{}) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID != id {
			continue
		}
		if st, ok := fields["status"].(model.Status); ok {
			s.tasks[i].Status = st
		}
		t := s.tasks[i]
		return &t, nil
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) LatestInstance(_ context.Context, parentID uint) (*model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.latestErr[parentID]; err != nil {
		return nil, err
	}
	var latest *model.Task
	for i := range s.tasks {
		t := s.tasks[i]
		if t.ParentID == nil || *t.ParentID != parentID {
			continue
		}
		if latest == nil || t.DueDay > latest.DueDay {
			latest = &t
		}
	}
	return latest, nil
}

func (s *memStore) instances(parentID uint) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for _, t := range s.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	return out
}

type notification struct {
	userID uint
	kind   NotificationKind
	taskID *uint
	msg    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, userID uint, message string, kind NotificationKind, relatedTaskID *uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	n.sent = append(n.sent, notification{userID: userID, kind: kind, taskID: relatedTaskID, msg: message})
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errStorage = errors.New("storage unavailable")
