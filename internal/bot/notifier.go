package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-planner/internal/model"
	"task-planner/internal/service"
)

type userLookup interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers notifications as Telegram messages to the user's private chat.
type Notifier struct {
	api   messageSender
	users userLookup
}

func NewNotifier(api *tgbotapi.BotAPI, users userLookup) *Notifier {
	return &Notifier{api: api, users: users}
}

// Notify sends message to userID. The API call cannot be cancelled, so when
// ctx ends first the send is abandoned and ctx's error is returned.
func (n *Notifier) Notify(ctx context.Context, userID uint, message string, kind service.NotificationKind, relatedTaskID *uint) error {
	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify user %d: %w", userID, err)
	}

	text := message
	if relatedTaskID != nil && kind != service.KindDigest {
		text += fmt.Sprintf("\nMark it done with /complete %d.", *relatedTaskID)
	}
	msg := tgbotapi.NewMessage(user.TelegramID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send %s notification to user %d: %w", kind, userID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send %s notification to user %d: %w", kind, userID, ctx.Err())
	}
}
