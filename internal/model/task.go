package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

type RecurrenceType string

const (
	RecurDaily   RecurrenceType = "daily"
	RecurWeekly  RecurrenceType = "weekly"
	RecurMonthly RecurrenceType = "monthly"
	RecurCustom  RecurrenceType = "custom"
)

// DayLayout is the format of Task.DueDay.
const DayLayout = "2006-01-02"

// Task represents a single item in the planner. A task with IsRecurring set is
// the root of a series; its generated instances point back to it via ParentID.
type Task struct {
	ID          uint `gorm:"primaryKey"`
	Title       string
	Description string
	DueDate     *time.Time `gorm:"index"`
	// DueDay is DueDate's calendar day; together with ParentID it identifies an occurrence.
	DueDay      string   `gorm:"size:10;uniqueIndex:idx_series_day"`
	Priority    Priority `gorm:"default:medium"`
	Status      Status   `gorm:"default:todo;index"`
	CompletedAt *time.Time
	AssignedTo  uint `gorm:"index"`
	CreatedBy   uint `gorm:"index"`

	IsRecurring          bool `gorm:"default:false;index"`
	RecurrenceType       RecurrenceType
	RecurrenceInterval   int
	RecurrenceDays       datatypes.JSONSlice[int]
	RecurrenceDayOfMonth int
	RecurrenceEndDate    *time.Time

	ParentID *uint `gorm:"uniqueIndex:idx_series_day"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recurrence is the rule part of a repeating task.
type Recurrence struct {
	Type       RecurrenceType
	Interval   int
	Days       []int
	DayOfMonth int
	EndDate    *time.Time
}

// Recurrence extracts the task's repeat rule.
func (t Task) Recurrence() Recurrence {
	return Recurrence{
		Type:       t.RecurrenceType,
		Interval:   t.RecurrenceInterval,
		Days:       []int(t.RecurrenceDays),
		DayOfMonth: t.RecurrenceDayOfMonth,
		EndDate:    t.RecurrenceEndDate,
	}
}

func (t Task) IsRoot() bool {
	return t.IsRecurring && t.ParentID == nil
}

func (t Task) IsInstance() bool {
	return t.ParentID != nil
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// BeforeSave keeps DueDay in step with DueDate for Create and Save.
func (t *Task) BeforeSave(tx *gorm.DB) error {
	t.DueDay = DayKey(t.DueDate)
	return nil
}

// DayKey renders the calendar day of t, or "" for nil.
func DayKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DayLayout)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
