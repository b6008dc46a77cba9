package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"Encyclopedia/internal/config"
	"Encyclopedia/internal/ports"
)

// Notifier posts moderation events to a Telegram chat via the bot API.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier logs the bot in against the public Telegram API.
func NewNotifier(cfg config.TelegramConfig) (*Notifier, error) {
	return NewNotifierWithEndpoint(cfg, tgbotapi.APIEndpoint, &http.Client{Timeout: 5 * time.Second})
}

// NewNotifierWithEndpoint allows a custom endpoint format ("<base>/bot%s/%s").
func NewNotifierWithEndpoint(cfg config.TelegramConfig, endpoint string, client *http.Client) (*Notifier, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram notifier misconfigured")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}

	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

// NotifyModerators sends msg as a plain text message.
func (n *Notifier) NotifyModerators(ctx context.Context, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message := tgbotapi.NewMessage(n.chatID, msg)
	message.DisableWebPagePreview = true
	if _, err := n.bot.Send(message); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
