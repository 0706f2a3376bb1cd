package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"mon, thu", []int{1, 4}},
		{"Monday Thursday", []int{1, 4}},
		{"1 4 1", []int{1, 4}},
		{"fri;mon", []int{5, 1}},
		{"sun,6", []int{0, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseWeekdays(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", " , ", "funday", "7", "-1"} {
		_, err := parseWeekdays(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseChoices(t *testing.T) {
	p, ok := parsePriority(" High ")
	assert.True(t, ok)
	assert.Equal(t, model.PriorityHigh, p)
	_, ok = parsePriority("urgent")
	assert.False(t, ok)

	rt, ok := parseRecurrenceType("Weekly")
	assert.True(t, ok)
	assert.Equal(t, model.RecurWeekly, rt)
	_, ok = parseRecurrenceType("yearly")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", model.DayKey(&d))
	assert.Equal(t, time.Local, d.Location())

	_, err = parseDate("29.02.2024")
	assert.Error(t, err)
}

func TestParseRecurrenceRule(t *testing.T) {
	tests := []struct {
		in   []string
		want service.RecurrenceInput
	}{
		{[]string{"daily"}, service.RecurrenceInput{Type: model.RecurDaily}},
		{[]string{"Custom", "3"}, service.RecurrenceInput{Type: model.RecurCustom, Interval: 3}},
		{[]string{"weekly", "mon,", "thu"}, service.RecurrenceInput{Type: model.RecurWeekly, Days: []int{1, 4}}},
		{[]string{"monthly", "31"}, service.RecurrenceInput{Type: model.RecurMonthly, DayOfMonth: 31}},
	}
	for _, tt := range tests {
		t.Run(tt.in[0], func(t *testing.T) {
			got, err := parseRecurrenceRule(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := parseRecurrenceRule([]string{"weekly", "fri", "until", "2025-12-31"})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, got.Days)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, "2025-12-31", model.DayKey(got.EndDate))

	for _, bad := range [][]string{
		nil,
		{"until", "2025-12-31"},
		{"yearly"},
		{"daily", "0"},
		{"custom", "often"},
		{"weekly", "funday"},
		{"monthly", "32"},
		{"daily", "until", "31.12.2025"},
	} {
		_, err := parseRecurrenceRule(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestParseTaskID(t *testing.T) {
	id, err := parseTaskID("complete:12", cbCompletePrefix)
	require.NoError(t, err)
	assert.Equal(t, uint(12), id)

	id, err = parseTaskID(" 7 ", "")
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = parseTaskID("delete:x", cbDeletePrefix)
	assert.Error(t, err)
	_, err = parseTaskID("delete:-3", cbDeletePrefix)
	assert.Error(t, err)
}

func TestTitles(t *testing.T) {
	assert.Equal(t, "Buy milk", normalizeTitle("  buy milk "))
	assert.Equal(t, "", normalizeTitle("   "))
	assert.Equal(t, "Ёлка", normalizeTitle("ёлка"))

	assert.Equal(t, "Short", shortTitle("short", 10))
	assert.Equal(t, "Hell…", shortTitle("hello world", 5))
	assert.Equal(t, "Two lines", shortTitle("two\nlines", 20))
}

func TestFormatLines(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	due := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	parent := uint(1)

	line := formatTaskLine(model.Task{ID: 5, Title: "pay <bills>", DueDate: &due, ParentID: &parent}, now)
	assert.Contains(t, line, "⚠️")
	assert.Contains(t, line, "#5")
	assert.Contains(t, line, "Pay &lt;bills&gt;")
	assert.Contains(t, line, "♻️")
	assert.Contains(t, line, "Due 2024-01-08")

	series := formatSeriesLine(model.Task{
		ID: 1, Title: "standup", DueDate: &due, IsRecurring: true,
		RecurrenceType: model.RecurWeekly, RecurrenceDays: []int{1, 4},
	})
	assert.Contains(t, series, "weekly on Mon, Thu")
	assert.Contains(t, series, "Started 2024-01-08")
}

func TestInputPredicates(t *testing.T) {
	assert.True(t, isSkipInput(btnSkip))
	assert.True(t, isSkipInput(" Skip "))
	assert.True(t, isSkipInput("-"))
	assert.False(t, isSkipInput("no"))

	assert.True(t, isYesInput("Y"))
	assert.True(t, isNoInput("no"))
	assert.False(t, isYesInput("maybe"))

	assert.True(t, isConfirmInput(btnConfirm))
	assert.True(t, isCancelInput("cancel"))
	assert.True(t, isCancelDialogInput(btnCancelDialog))
	assert.True(t, isCancelDialogInput("STOP"))
	assert.False(t, isCancelDialogInput("cancel"))
}
