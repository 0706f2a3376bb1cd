package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-planner/internal/model"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

type stubUsers map[uint]model.User

func (s stubUsers) FindByID(_ context.Context, id uint) (*model.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

type stubSender struct {
	sent  []tgbotapi.MessageConfig
	err   error
	block chan struct{}
}

func (s *stubSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if s.block != nil {
		<-s.block
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

func TestNotifier_SendsToTelegramChat(t *testing.T) {
	sender := &stubSender{}
	n := &Notifier{api: sender, users: stubUsers{3: {ID: 3, TelegramID: 3003}}}
	taskID := uint(42)

	err := n.Notify(context.Background(), 3, "New task", service.KindAssignment, &taskID)
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(3003), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, "New task\nMark it done with /complete 42.", msg.Text)

	require.NoError(t, n.Notify(context.Background(), 3, "Digest", service.KindDigest, nil))
	assert.Equal(t, "Digest", sender.sent[1].Text)
}

func TestNotifier_Errors(t *testing.T) {
	boom := errors.New("telegram down")
	n := &Notifier{api: &stubSender{err: boom}, users: stubUsers{3: {ID: 3, TelegramID: 3003}}}

	err := n.Notify(context.Background(), 9, "x", service.KindAssignment, nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = n.Notify(context.Background(), 3, "x", service.KindAssignment, nil)
	assert.ErrorIs(t, err, boom)
}

func TestNotifier_GivesUpWhenContextEnds(t *testing.T) {
	sender := &stubSender{block: make(chan struct{})}
	defer close(sender.block)
	n := &Notifier{api: sender, users: stubUsers{3: {ID: 3, TelegramID: 3003}}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := n.Notify(ctx, 3, "x", service.KindRecurrence, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifier_RecurrenceHint(t *testing.T) {
	sender := &stubSender{}
	n := &Notifier{api: sender, users: stubUsers{3: {ID: 3, TelegramID: 3003}}}
	taskID := uint(8)

	require.NoError(t, n.Notify(context.Background(), 3, "Next one", service.KindRecurrence, &taskID))
	require.NoError(t, n.Notify(context.Background(), 3, "Digest", service.KindDigest, &taskID))
	assert.Equal(t, "Next one\nMark it done with /complete 8.", sender.sent[0].Text)
	assert.Equal(t, "Digest", sender.sent[1].Text)
}
