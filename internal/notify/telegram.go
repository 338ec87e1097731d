package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stock-sentinel/internal/errors"
)

// telegramLimit is Telegram's maximum message length.
const telegramLimit = 4096

// MessageSender is the part of tgbotapi.BotAPI used for delivery.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends notifications via Telegram bot.
type TelegramNotifier struct {
	api    MessageSender
	chatID int64
}

// NewTelegramNotifier creates a Telegram channel posting to chatID.
func NewTelegramNotifier(api MessageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, chatID: chatID}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.api != nil && t.chatID != 0
}

// Send sends a notification via Telegram.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.IsEnabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.NewDeliveryError(t.Name(), err)
	}

	text := fmt.Sprintf("%s <b>%s</b>\n\n%s", severityIcon(n.Severity), EscapeHTML(n.Title), EscapeHTML(n.Message))
	for _, chunk := range SplitMessage(text, telegramLimit) {
		msg := tgbotapi.NewMessage(t.chatID, chunk)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.api.Send(msg); err != nil {
			return errors.NewDeliveryError(t.Name(), err)
		}
	}
	return nil
}

// EscapeHTML escapes the characters Telegram's HTML mode reserves.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// SplitMessage breaks text into chunks of at most limit bytes, preferring
// line boundaries.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
