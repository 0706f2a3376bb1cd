package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	btnSkip          = "⏭️ Skip"
	btnYes           = "Yes"
	btnNo            = "No"
	btnConfirm       = "✅ Confirm"
	btnCancel        = "↩️ Cancel"
	btnCancelDialog  = "⏪ Stop input"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelReport  = "🗓 Digest"
	menuLabelHelp    = "ℹ️ Help"
)

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTime(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnConfirm),
		tgbotapi.NewKeyboardButton(btnCancel),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTime(tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTime(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
}

func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTime(tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnYes),
		tgbotapi.NewKeyboardButton(btnNo),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTime(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("low"),
			tgbotapi.NewKeyboardButton("medium"),
			tgbotapi.NewKeyboardButton("high"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
}

func recurrenceTypeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return oneTime(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("daily"),
			tgbotapi.NewKeyboardButton("weekly"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("monthly"),
			tgbotapi.NewKeyboardButton("custom"),
		),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
}

func oneTime(rows ...[]tgbotapi.KeyboardButton) tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isYesInput(text string) bool {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "yes", "y":
		return true
	}
	return false
}

func isNoInput(text string) bool {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case "no", "n", "-":
		return true
	}
	return false
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}
