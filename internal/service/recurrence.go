package service

import (
	"sort"
	"time"

	"task-planner/internal/model"
)

// NextDueDate returns the occurrence that follows current under rule.
// It never fails: a non-positive interval counts as 1 and an unknown type steps daily.
// Time of day and location are preserved.
func NextDueDate(current time.Time, rule model.Recurrence) time.Time {
	interval := rule.Interval
	if interval <= 0 {
		interval = 1
	}

	switch rule.Type {
	case model.RecurWeekly:
		days := weekdaySet(rule.Days)
		if len(days) == 0 {
			return current.AddDate(0, 0, 7*interval)
		}
		return current.AddDate(0, 0, daysToNextWeekday(int(current.Weekday()), days))
	case model.RecurMonthly:
		if rule.DayOfMonth > 0 {
			return dayInFollowingMonth(current, rule.DayOfMonth)
		}
		return addMonthsClamped(current, interval)
	default:
		// daily, custom
		return current.AddDate(0, 0, interval)
	}
}

// daysToNextWeekday picks the smallest selected weekday after today,
// wrapping into next week when today is at or past the last one.
func daysToNextWeekday(today int, days []int) int {
	for _, d := range days {
		if d > today {
			return d - today
		}
	}
	return 7 - today + days[0]
}

// weekdaySet returns the valid (0..6) weekdays, sorted and deduplicated.
func weekdaySet(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

// dayInFollowingMonth moves to the next calendar month and lands on dom,
// or on the month's last day when it is shorter.
func dayInFollowingMonth(t time.Time, dom int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(first.Month(), first.Year()); dom > last {
		dom = last
	}
	return first.AddDate(0, 0, dom-1)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(first.Month(), first.Year()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysInMonth(month time.Month, year int) int {
	// Move to next month, roll back a day.
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// pastEnd reports whether next falls on a later calendar day than end.
// The end day itself is still part of the series, whatever its time.
func pastEnd(next time.Time, end *time.Time) bool {
	return end != nil && model.DayKey(&next) > model.DayKey(end)
}
