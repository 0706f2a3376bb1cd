package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/model"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancelPrefix   = "cancel:"
)

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /newtask — add a task step by step (one-off or recurring)\n" +
	"• /tasks — your open tasks and recurring series\n" +
	"• /complete &lt;id&gt; — mark a task done (e.g. /complete 3)\n" +
	"• /reopen &lt;id&gt; — move a task back to todo\n" +
	"• /start_task &lt;id&gt; — mark a task as in progress\n" +
	"• /repeat &lt;id&gt; &lt;rule&gt; [until YYYY-MM-DD] — change how a recurring task repeats, e.g. <code>/repeat 4 weekly mon,thu</code>, <code>/repeat 4 daily 2</code>, <code>/repeat 4 monthly 31</code>\n" +
	"• /delete &lt;id&gt; — delete a task\n" +
	"• /assign &lt;id&gt; &lt;username&gt; — hand a task to someone (managers)\n" +
	"• /sweep — generate due recurring instances now (admins)\n" +
	"• /role &lt;username&gt; &lt;admin|manager|member&gt; — change someone's role (admins)\n" +
	"• /report — send the daily digest now\n" +
	"• /cancel — cancel the current input"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep track of your tasks, including the ones that repeat.</b>\nYour role: <code>%s</code>\n\n%s",
		escape(name), user.Role, helpText)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, helpText)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.digestSvc.DailySummary(ctx, *user, time.Now())
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListForUser(ctx, user)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "You have no open tasks. Add one with /newtask.")
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, c := tasks[i], tasks[j]
		if a.IsRecurring != c.IsRecurring {
			return !a.IsRecurring
		}
		switch {
		case a.DueDate != nil && c.DueDate != nil && !a.DueDate.Equal(*c.DueDate):
			return a.DueDate.Before(*c.DueDate)
		case a.DueDate != nil && c.DueDate == nil:
			return true
		case a.DueDate == nil && c.DueDate != nil:
			return false
		}
		return a.ID < c.ID
	})

	now := time.Now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Your tasks</b>\n")
	builder.WriteString("Use the buttons to complete or delete a task.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		if task.IsRecurring {
			builder.WriteString(formatSeriesLine(task))
		} else {
			builder.WriteString(formatTaskLine(task, now))
		}
		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
		}
		buttons = append(buttons, row)
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleComplete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the task ID: /complete 12")
	}
	return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) handleReopen(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the task ID: /reopen 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.ReopenTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("↩️ «%s» is back in todo.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleStartTask(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the task ID: /start_task 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.StartTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔧 «%s» is in progress.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) handleRepeat(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return b.sendText(msg.Chat.ID, "Usage: /repeat 12 weekly mon,thu [until 2025-12-31]")
	}
	taskID, err := parseTaskID(args[0], "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}
	rule, err := parseRecurrenceRule(args[1:])
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Cannot read that rule: %s", escape(err.Error())))
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.UpdateRecurrence(ctx, user, taskID, rule)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🔁 «%s» now repeats %s.",
		escape(normalizeTitle(task.Title)), escape(service.DescribeRecurrence(task.Recurrence()))))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseTaskID(msg.CommandArguments(), "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give me the task ID: /delete 12")
	}
	return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, taskID)
}

func (b *Bot) handleAssign(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /assign 12 username")
	}
	taskID, err := parseTaskID(args[0], "")
	if err != nil {
		return b.sendText(msg.Chat.ID, "The task ID must be a number.")
	}

	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	assignee, err := b.userRepo.FindByUsername(ctx, strings.TrimPrefix(args[1], "@"))
	if err != nil {
		return b.sendText(msg.Chat.ID, "I do not know that user yet. They need to /start the bot first.")
	}

	task, err := b.taskSvc.AssignTask(ctx, user, taskID, assignee)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📌 «%s» is now assigned to %s.", escape(normalizeTitle(task.Title)), escape(assignee.DisplayName())))
}

func (b *Bot) handleSweep(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	res, err := b.taskSvc.RunSweep(ctx, user)
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("♻️ Sweep done: %d processed, %d created, %d failed.", res.Processed, res.Created, res.Failed))
}

func (b *Bot) handleRole(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /role username manager")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	target, perms, err := b.userSvc.ChangeRole(ctx, user, args[0], args[1])
	if errors.Is(err, repository.ErrNotFound) {
		return b.sendText(msg.Chat.ID, "I do not know that user yet. They need to send /start first.")
	}
	if err != nil {
		return b.replyError(msg.Chat.ID, err)
	}

	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👤 %s is now <code>%s</code>.\nPermissions: <code>%s</code>",
		escape(target.DisplayName()), target.Role, strings.Join(names, ", ")))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb)

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.logger.Info("callback", "from", cb.From.ID, "data", data)

	switch {
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err := parseTaskID(data, cbCompletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionDelete)
	case strings.HasPrefix(data, cbConfirmPrefix):
		taskID, err := parseTaskID(data, cbConfirmPrefix)
		if err != nil {
			return nil
		}
		b.clearConfirmation(cb.From.ID)
		return b.completeTaskAndRefresh(ctx, chatID, cb.From, taskID)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		return nil
	default:
		return nil
	}
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, action confirmationAction) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}

	var text string
	if action == actionDelete {
		text = fmt.Sprintf("Delete «%s» (#%d)?", escape(normalizeTitle(task.Title)), task.ID)
		if task.IsRecurring {
			text += "\nAlready generated instances stay."
		}
	} else {
		if task.IsCompleted() {
			return b.sendText(chatID, "That task is already done.")
		}
		text = fmt.Sprintf("Mark «%s» (#%d) as done?", escape(normalizeTitle(task.Title)), task.ID)
	}
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔹 Main menu")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.CompleteTask(ctx, user, taskID, time.Now())
	if err != nil {
		return b.replyError(chatID, err)
	}

	info := fmt.Sprintf("✅ «%s» done.", escape(normalizeTitle(task.Title)))
	if task.IsRecurring || task.IsInstance() {
		info += "\n♻️ The next occurrence is on its way."
	}
	if err := b.sendText(chatID, info); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.replyError(chatID, err)
	}
	if err := b.taskSvc.DeleteTask(ctx, user, taskID); err != nil {
		return b.replyError(chatID, err)
	}

	if err := b.sendText(chatID, fmt.Sprintf("🗑 «%s» deleted.", escape(normalizeTitle(task.Title)))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelReport):
		return true, b.handleReport(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}
