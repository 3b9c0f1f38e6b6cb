package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"spendsmart/internal/core"
	"spendsmart/internal/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

var foodAlert = Alert{Owner: 1, Category: "Food", Spent: core.Money{Cents: 15000}, Limit: core.Money{Cents: 10000}}

func TestAlertText(t *testing.T) {
	got := foodAlert.Text("₹")
	want := "⚠️ Over budget in Food: spent ₹150.00 of ₹100.00 (over by ₹50.00)"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestTelegram_Notify(t *testing.T) {
	fake := &fakeSender{}
	tg := newTelegram(fake, 42, "")

	if err := tg.Notify(context.Background(), foodAlert); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.sent))
	}
	if fake.sent[0].ChatID != 42 {
		t.Errorf("ChatID = %d, want 42", fake.sent[0].ChatID)
	}
	if !strings.Contains(fake.sent[0].Text, "₹150.00") {
		t.Errorf("Text = %q, want default currency symbol", fake.sent[0].Text)
	}
}

func TestTelegram_NotifyError(t *testing.T) {
	tg := newTelegram(&fakeSender{err: errors.New("bad gateway")}, 42, "$")
	if err := tg.Notify(context.Background(), foodAlert); err == nil {
		t.Error("Notify() should return the send error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.Notify(ctx, foodAlert); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() with cancelled context = %v, want context.Canceled", err)
	}
}

func TestLog_Notify(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf})

	if err := NewLog(logger, "€").Notify(context.Background(), foodAlert); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"level=WARN", "€150.00", "category=Food", "limit_cents=10000"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
