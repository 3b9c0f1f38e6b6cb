// Package notify delivers over-budget alerts.
package notify

import (
	"context"
	"fmt"

	"spendsmart/internal/core"
	"spendsmart/internal/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Alert reports a category whose spend exceeds its budget limit.
type Alert struct {
	Owner    int64
	Category string
	Spent    core.Money
	Limit    core.Money
}

// Text renders the alert for humans, amounts prefixed with symbol.
func (a Alert) Text(symbol string) string {
	return fmt.Sprintf("⚠️ Over budget in %s: spent %s of %s (over by %s)",
		a.Category, a.Spent.Format(symbol), a.Limit.Format(symbol), a.Spent.Sub(a.Limit).Format(symbol))
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// sender is the part of tgbotapi.BotAPI used to deliver messages.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends alerts to a single chat.
type Telegram struct {
	api    sender
	chatID int64
	symbol string
}

func NewTelegram(token string, chatID int64, symbol string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegram(api, chatID, symbol), nil
}

func newTelegram(api sender, chatID int64, symbol string) *Telegram {
	if symbol == "" {
		symbol = core.DefaultCurrencySymbol
	}
	return &Telegram{api: api, chatID: chatID, symbol: symbol}
}

func (t *Telegram) Notify(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, a.Text(t.symbol))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// Log writes alerts to the structured log. It is used when no bot token is
// configured.
type Log struct {
	logger *log.Logger
	symbol string
}

func NewLog(logger *log.Logger, symbol string) *Log {
	if symbol == "" {
		symbol = core.DefaultCurrencySymbol
	}
	return &Log{logger: logger.WithComponent(log.ComponentNotify), symbol: symbol}
}

func (l *Log) Notify(ctx context.Context, a Alert) error {
	l.logger.WarnContext(ctx, a.Text(l.symbol),
		log.FieldOwner, a.Owner,
		log.FieldCategory, a.Category,
		log.FieldAmountCents, a.Spent.Cents,
		log.FieldLimitCents, a.Limit.Cents)
	return nil
}
