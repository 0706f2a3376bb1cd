package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

var weekdayNames = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// parseWeekdays reads a list such as "mon, thu" or "1 4" into weekday indices.
func parseWeekdays(text string) ([]int, error) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("no weekdays in %q", text)
	}

	seen := make(map[int]bool, len(fields))
	days := make([]int, 0, len(fields))
	for _, f := range fields {
		d, ok := weekdayNames[prefix(f, 3)]
		if !ok {
			n, err := strconv.Atoi(f)
			if err != nil || n < 0 || n > 6 {
				return nil, fmt.Errorf("unknown weekday %q", f)
			}
			d = n
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	return days, nil
}

func parsePriority(text string) (model.Priority, bool) {
	switch p := model.Priority(strings.TrimSpace(strings.ToLower(text))); p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		return p, true
	}
	return "", false
}

func parseRecurrenceType(text string) (model.RecurrenceType, bool) {
	switch rt := model.RecurrenceType(strings.TrimSpace(strings.ToLower(text))); rt {
	case model.RecurDaily, model.RecurWeekly, model.RecurMonthly, model.RecurCustom:
		return rt, true
	}
	return "", false
}

// parseDate reads YYYY-MM-DD as local midnight.
func parseDate(text string) (time.Time, error) {
	return time.ParseInLocation(model.DayLayout, strings.TrimSpace(text), time.Local)
}

// parseRecurrenceRule reads the arguments of /repeat after the task ID:
// a type, an optional interval, weekday list or day of month, and an
// optional "until YYYY-MM-DD" suffix.
func parseRecurrenceRule(args []string) (service.RecurrenceInput, error) {
	var in service.RecurrenceInput
	if len(args) == 0 {
		return in, fmt.Errorf("missing recurrence type")
	}
	if n := len(args); n >= 2 && strings.EqualFold(args[n-2], "until") {
		end, err := parseDate(args[n-1])
		if err != nil {
			return in, fmt.Errorf("end date must look like 2025-12-31")
		}
		in.EndDate = &end
		args = args[:n-2]
		if len(args) == 0 {
			return in, fmt.Errorf("missing recurrence type")
		}
	}

	rt, ok := parseRecurrenceType(args[0])
	if !ok {
		return in, fmt.Errorf("unknown recurrence type %q", args[0])
	}
	in.Type = rt
	rest := strings.Join(args[1:], " ")
	if rest == "" {
		return in, nil
	}

	switch rt {
	case model.RecurDaily, model.RecurCustom:
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return in, fmt.Errorf("interval must be a positive number")
		}
		in.Interval = n
	case model.RecurWeekly:
		days, err := parseWeekdays(rest)
		if err != nil {
			return in, err
		}
		in.Days = days
	case model.RecurMonthly:
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 || n > 31 {
			return in, fmt.Errorf("day of month must be between 1 and 31")
		}
		in.DayOfMonth = n
	}
	return in, nil
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(data, prefix))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func formatTaskLine(task model.Task, now time.Time) string {
	var b strings.Builder
	icon := "🟢"
	if task.DueDate != nil {
		due := model.DayKey(task.DueDate)
		today := model.DayKey(&now)
		switch {
		case due < today:
			icon = "⚠️"
		case due == today:
			icon = "⏳"
		}
	}
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, escape(normalizeTitle(task.Title))))
	if task.IsInstance() {
		b.WriteString(" ♻️")
	}
	b.WriteByte('\n')
	if task.DueDate != nil {
		b.WriteString(fmt.Sprintf("   ⏰ Due %s\n", model.DayKey(task.DueDate)))
	}
	if task.Status == model.StatusInProgress {
		b.WriteString("   🔧 In progress\n")
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatSeriesLine(task model.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("♻️ <b>#%d</b> %s\n", task.ID, escape(normalizeTitle(task.Title))))
	b.WriteString(fmt.Sprintf("   🔄 %s\n", escape(service.DescribeRecurrence(task.Recurrence()))))
	if task.DueDate != nil {
		b.WriteString(fmt.Sprintf("   📆 Started %s\n", model.DayKey(task.DueDate)))
	}
	if task.IsCompleted() {
		b.WriteString("   ✅ Done\n")
	}
	b.WriteByte('\n')
	return b.String()
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func escape(s string) string {
	return html.EscapeString(s)
}
