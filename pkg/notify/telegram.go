package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the part of the Telegram bot API used by TelegramSink.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink sends notifications to one Telegram chat.
type TelegramSink struct {
	API    TelegramSender
	ChatID int64
	Logger *slog.Logger
}

// NewTelegramSink creates a bot client for token and targets chatID.
func NewTelegramSink(token string, chatID int64, logger *slog.Logger) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}
	return &TelegramSink{API: api, ChatID: chatID, Logger: logger}, nil
}

func (s *TelegramSink) Notify(n Notification) {
	msg := tgbotapi.NewMessage(s.ChatID, format(n))
	if _, err := s.API.Send(msg); err != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("notify: failed to send Telegram message", "chat_id", s.ChatID, "err", err)
	}
}

func format(n Notification) string {
	switch n.Severity {
	case Warn:
		return "⚠️ " + n.Message
	case Error:
		return "❌ " + n.Message
	default:
		return "ℹ️ " + n.Message
	}
}
