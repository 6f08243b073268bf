package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"flowpilot/internal/domain"
	"flowpilot/internal/infra/metrics"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram отправляет уведомления в чат Telegram.
type Telegram struct {
	bot         telegramSender
	defaultChat int64
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram подключается к Bot API.
func NewTelegram(token string, defaultChat int64) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, defaultChat: defaultChat}, nil
}

// Notify отправляет текст в чат. channel может содержать числовой chat ID.
func (t *Telegram) Notify(ctx context.Context, channel, text string) error {
	chatID := t.defaultChat
	if id, err := strconv.ParseInt(strings.TrimSpace(channel), 10, 64); err == nil && id != 0 {
		chatID = id
	}
	if chatID == 0 {
		return errors.New("telegram chat is not configured")
	}
	for _, part := range SplitMessage(text, telegramLimit) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.NotifierSendErrors.WithLabelValues("telegram").Inc()
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}
