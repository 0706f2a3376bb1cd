package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"task-planner/internal/model"
	"task-planner/internal/repository"
)

// DigestService builds human-readable summaries for periodic notifications.
type DigestService struct {
	taskRepo *repository.TaskRepository
}

func NewDigestService(taskRepo *repository.TaskRepository) *DigestService {
	return &DigestService{taskRepo: taskRepo}
}

// DailySummary lists the user's open tasks by urgency and the series they own.
func (s *DigestService) DailySummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	open, err := s.taskRepo.Find(ctx, repository.TaskFilter{AssignedTo: &user.ID, Open: true})
	if err != nil {
		return "", err
	}
	recurring := true
	roots, err := s.taskRepo.Find(ctx, repository.TaskFilter{AssignedTo: &user.ID, IsRecurring: &recurring, RootsOnly: true})
	if err != nil {
		return "", err
	}

	var overdue, today, upcoming []model.Task
	todayKey := model.DayKey(&now)
	for _, task := range open {
		if task.IsRecurring {
			continue
		}
		switch key := model.DayKey(task.DueDate); {
		case key == "":
			upcoming = append(upcoming, task)
		case key < todayKey:
			overdue = append(overdue, task)
		case key == todayKey:
			today = append(today, task)
		default:
			upcoming = append(upcoming, task)
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily digest</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n", now.Format(model.DayLayout)))

	writeSection(&builder, "⚠️ <b>Overdue</b>", overdue, now)
	writeSection(&builder, "⏳ <b>Due today</b>", today, now)
	writeSection(&builder, "🟢 <b>Upcoming</b>", upcoming, now)

	builder.WriteString("\n♻️ <b>Recurring</b>\n")
	if len(roots) == 0 {
		builder.WriteString("— no recurring tasks\n")
	}
	for _, root := range roots {
		builder.WriteString(formatSeries(root))
	}

	return strings.TrimSpace(builder.String()), nil
}

func writeSection(sb *strings.Builder, title string, tasks []model.Task, now time.Time) {
	if len(tasks) == 0 {
		return
	}
	sb.WriteString("\n" + title + "\n")
	for _, task := range tasks {
		sb.WriteString(formatTask(task, now))
	}
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#%d %s %s", task.ID, priorityIcon(task.Priority), escape(task.Title)))

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if model.DayKey(&d) < model.DayKey(&now) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s — <b>overdue</b>", d.Format(model.DayLayout)))
		} else {
			daysLeft := int(model.StartOfDay(d).Sub(model.StartOfDay(now)).Hours() / 24)
			sb.WriteString(fmt.Sprintf("\n   ⏰ %s · in %d d.", d.Format(model.DayLayout), daysLeft))
		}
	}
	if task.Status == model.StatusInProgress {
		sb.WriteString("\n   🔧 in progress")
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", escape(task.Description)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func formatSeries(root model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#%d ♻️ %s", root.ID, escape(root.Title)))
	sb.WriteString("\n   🔁 " + DescribeRecurrence(root.Recurrence()))
	if root.DueDate != nil {
		next := NextDueDate(*root.DueDate, root.Recurrence())
		if pastEnd(next, root.RecurrenceEndDate) {
			sb.WriteString("\n   🏁 series finished")
		} else {
			sb.WriteString(fmt.Sprintf("\n   📆 started %s", model.DayKey(root.DueDate)))
		}
	}
	sb.WriteByte('\n')
	return sb.String()
}

var weekdayShort = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// DescribeRecurrence renders rule for people, e.g. "weekly on Mon, Thu".
func DescribeRecurrence(rule model.Recurrence) string {
	interval := normalizeInterval(rule.Interval)
	var desc string
	switch rule.Type {
	case model.RecurWeekly:
		days := weekdaySet(rule.Days)
		if len(days) == 0 {
			desc = everyN(interval, "week", "weekly")
			break
		}
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = weekdayShort[d]
		}
		desc = "weekly on " + strings.Join(names, ", ")
	case model.RecurMonthly:
		if rule.DayOfMonth > 0 {
			desc = fmt.Sprintf("monthly on day %d", rule.DayOfMonth)
		} else {
			desc = everyN(interval, "month", "monthly")
		}
	default:
		desc = everyN(interval, "day", "daily")
	}
	if rule.EndDate != nil {
		desc += " until " + model.DayKey(rule.EndDate)
	}
	return desc
}

func everyN(n int, unit, single string) string {
	if n == 1 {
		return single
	}
	return fmt.Sprintf("every %d %ss", n, unit)
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "⚪"
	default:
		return "🟡"
	}
}

func escape(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
