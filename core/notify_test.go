package core

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *MockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

func TestTelegramNotifier_Notify(t *testing.T) {
	bot := &MockBot{}
	log, _ := newObservedLogger()
	n := &TelegramNotifier{Bot: bot, ChatId: -42, Log: log}

	err := n.Notify(Camera{Name: "gate"}, "snapshots/gate.jpg", time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local))

	require.NoError(t, err)
	require.Len(t, bot.sent, 1)
	msg, ok := bot.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-42), msg.ChatID)
	assert.Equal(t, "snapshots/gate.jpg", msg.File)
	assert.Equal(t, "gate 2024-01-02 03:04:05", msg.Caption)
}

func TestTelegramNotifier_NotifyError(t *testing.T) {
	log, _ := newObservedLogger()
	n := &TelegramNotifier{Bot: &MockBot{err: errors.New("bad token")}, ChatId: 1, Log: log}

	assert.Error(t, n.Notify(Camera{}, "a.jpg", time.Now()))
}

func TestTelegramConfig_Enabled(t *testing.T) {
	assert.False(t, TelegramConfig{}.Enabled())
	assert.False(t, TelegramConfig{ApiKey: "k"}.Enabled())
	assert.True(t, TelegramConfig{ApiKey: "k", ChatId: 5}.Enabled())
}
