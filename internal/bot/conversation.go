package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stagePriority
	stageDueDate
	stageRecurring
	stageRecurrenceType
	stageWeekdays
	stageDayOfMonth
	stageInterval
	stageEndDate
)

type conversationState struct {
	stage      conversationStage
	input      service.TaskInput
	recurrence service.RecurrenceInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	b.logger.Info("start new task conversation", "from", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1:</b> what should it be called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(chatID, "The title cannot be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(chatID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(chatID, "🎯 Priority?", priorityKeyboard())
	case stagePriority:
		if !isSkipInput(text) {
			p, ok := parsePriority(text)
			if !ok {
				return b.sendWithReplyMarkup(chatID, "Pick low, medium or high.", priorityKeyboard())
			}
			state.input.Priority = p
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(chatID, "⏰ Due date as <code>2025-11-30</code> (or «Skip»).", skipKeyboard())
	case stageDueDate:
		if !isSkipInput(text) {
			due, err := parseDate(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Cannot read that date. Use <code>2025-11-30</code> or «Skip».", skipKeyboard())
			}
			state.input.DueDate = &due
		}
		if state.input.DueDate == nil {
			return b.finishConversation(ctx, msg, state)
		}
		state.stage = stageRecurring
		return b.sendWithReplyMarkup(chatID, "🔁 Should the task repeat?", yesNoKeyboard())
	case stageRecurring:
		switch {
		case isYesInput(text):
			state.stage = stageRecurrenceType
			return b.sendWithReplyMarkup(chatID, "How often?", recurrenceTypeKeyboard())
		case isNoInput(text):
			return b.finishConversation(ctx, msg, state)
		default:
			return b.sendWithReplyMarkup(chatID, "Press «Yes» or «No».", yesNoKeyboard())
		}
	case stageRecurrenceType:
		rt, ok := parseRecurrenceType(text)
		if !ok {
			return b.sendWithReplyMarkup(chatID, "Pick daily, weekly, monthly or custom.", recurrenceTypeKeyboard())
		}
		state.recurrence.Type = rt
		switch rt {
		case model.RecurWeekly:
			state.stage = stageWeekdays
			return b.sendWithReplyMarkup(chatID, "📅 Which weekdays? e.g. <code>mon, thu</code> («Skip» repeats every N weeks).", skipKeyboard())
		case model.RecurMonthly:
			state.stage = stageDayOfMonth
			return b.sendWithReplyMarkup(chatID, "📆 Day of month (1–31)? Short months use their last day. («Skip» keeps the due date's day.)", skipKeyboard())
		default:
			state.stage = stageInterval
			return b.sendWithReplyMarkup(chatID, "↔️ Every how many days? (default 1)", skipKeyboard())
		}
	case stageWeekdays:
		if isSkipInput(text) {
			state.stage = stageInterval
			return b.sendWithReplyMarkup(chatID, "↔️ Every how many weeks? (default 1)", skipKeyboard())
		}
		days, err := parseWeekdays(text)
		if err != nil {
			return b.sendWithReplyMarkup(chatID, "Use weekday names or numbers 0–6, e.g. <code>mon, thu</code>.", skipKeyboard())
		}
		state.recurrence.Days = days
		state.stage = stageEndDate
		return b.sendWithReplyMarkup(chatID, "🏁 Last date of the series (or «Skip»)?", skipKeyboard())
	case stageDayOfMonth:
		if isSkipInput(text) {
			state.stage = stageInterval
			return b.sendWithReplyMarkup(chatID, "↔️ Every how many months? (default 1)", skipKeyboard())
		}
		day, err := strconv.Atoi(text)
		if err != nil || day < 1 || day > 31 {
			return b.sendWithReplyMarkup(chatID, "The day must be a number from 1 to 31.", skipKeyboard())
		}
		state.recurrence.DayOfMonth = day
		state.stage = stageEndDate
		return b.sendWithReplyMarkup(chatID, "🏁 Last date of the series (or «Skip»)?", skipKeyboard())
	case stageInterval:
		if !isSkipInput(text) {
			n, err := strconv.Atoi(text)
			if err != nil || n < 1 || n > 365 {
				return b.sendWithReplyMarkup(chatID, "The interval must be a number from 1 to 365.", skipKeyboard())
			}
			state.recurrence.Interval = n
		}
		state.stage = stageEndDate
		return b.sendWithReplyMarkup(chatID, "🏁 Last date of the series (or «Skip»)?", skipKeyboard())
	case stageEndDate:
		if !isSkipInput(text) {
			end, err := parseDate(text)
			if err != nil {
				return b.sendWithReplyMarkup(chatID, "Cannot read that date. Use <code>2025-12-31</code> or «Skip».", skipKeyboard())
			}
			state.recurrence.EndDate = &end
		}
		rec := state.recurrence
		state.input.Recurrence = &rec
		return b.finishConversation(ctx, msg, state)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(chatID, "Conversation reset. Try /newtask again.")
	}
}

func (b *Bot) finishConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	defer b.clearConversation(msg.From.ID)

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.CreateTask(ctx, user, state.input)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Task saved</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		summary.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	}
	summary.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority))
	if task.DueDate != nil {
		summary.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", model.DayKey(task.DueDate)))
	}
	if task.IsRecurring {
		summary.WriteString(fmt.Sprintf("• <b>Repeats:</b> %s\n", escape(service.DescribeRecurrence(task.Recurrence()))))
	}

	if err := b.sendWithReplyMarkup(msg.Chat.ID, strings.TrimSpace(summary.String()), tgbotapi.NewRemoveKeyboard(true)); err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}
