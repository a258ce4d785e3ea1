package core

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"
)

// Notifier is told about every snapshot written to disk.
type Notifier interface {
	Notify(cam Camera, path string, taken time.Time) error
}

type photoSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier uploads saved snapshots to a Telegram chat.
type TelegramNotifier struct {
	Bot    photoSender
	ChatId int64
	Log    *zap.SugaredLogger
}

func NewTelegramNotifier(cfg TelegramConfig, log *zap.SugaredLogger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.ApiKey)
	if err != nil {
		return nil, err
	}
	log.Debugf("Authorized on account %s", bot.Self.UserName)
	return &TelegramNotifier{Bot: bot, ChatId: cfg.ChatId, Log: log}, nil
}

func (n *TelegramNotifier) Notify(cam Camera, path string, taken time.Time) error {
	msg := tgbotapi.NewPhotoUpload(n.ChatId, path)
	msg.Caption = strings.TrimSpace(cam.Name + " " + taken.Local().Format("2006-01-02 15:04:05"))
	n.Log.Infow("sending snapshot to telegram", "path", path, "chat_id", n.ChatId)
	_, err := n.Bot.Send(msg)
	return err
}
