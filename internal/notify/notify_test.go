package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sentinel/internal/config"
	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
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
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

type stubChannel struct {
	name    string
	enabled bool
	err     error
	got     []Notification
}

func (s *stubChannel) Name() string    { return s.name }
func (s *stubChannel) IsEnabled() bool { return s.enabled }
func (s *stubChannel) Send(ctx context.Context, n Notification) error {
	s.got = append(s.got, n)
	return s.err
}

func TestMultiNotifier_AnyChannelDelivers(t *testing.T) {
	mn := NewMultiNotifier(nil, zerolog.Nop())
	broken := &stubChannel{name: "broken", enabled: true, err: fmt.Errorf("down")}
	ok := &stubChannel{name: "ok", enabled: true}
	off := &stubChannel{name: "off", enabled: false}
	mn.AddChannel(broken)
	mn.AddChannel(ok)
	mn.AddChannel(off)

	err := mn.Send(context.Background(), Notification{Title: "AAPL +5.00%"})
	require.NoError(t, err)
	assert.Len(t, ok.got, 1)
	assert.Len(t, broken.got, 1)
	assert.Empty(t, off.got)
	assert.False(t, ok.got[0].Timestamp.IsZero(), "timestamp defaulted")
	assert.Equal(t, []string{"broken", "ok"}, mn.Channels())
}

func TestMultiNotifier_AllFail(t *testing.T) {
	mn := NewMultiNotifier(nil, zerolog.Nop())
	mn.AddChannel(&stubChannel{name: "a", enabled: true, err: fmt.Errorf("timeout")})

	err := mn.Send(context.Background(), Notification{})
	var de *errors.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, err.Error(), "a: timeout")
}

func TestMultiNotifier_NoChannels(t *testing.T) {
	mn := NewMultiNotifier(&config.NotificationConfig{Enabled: true}, zerolog.Nop())
	err := mn.Send(context.Background(), Notification{})
	assert.True(t, errors.Is(err, errors.ErrNotConfigured))
}

func TestWebhookNotifier(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mn := NewMultiNotifier(&config.NotificationConfig{
		Enabled: true,
		Webhook: config.WebhookConfig{Enabled: true, URL: srv.URL},
	}, zerolog.Nop())

	n := StockAlert(models.Quote{Symbol: "AAPL", Current: 105, PreviousClose: 100}, 0.05, "Earnings beat.")
	require.NoError(t, mn.Send(context.Background(), n))

	assert.Equal(t, "stock_alert", payload["type"])
	assert.Equal(t, "AAPL", payload["entity"])
	assert.Equal(t, "warning", payload["severity"])
	meta := payload["metadata"].(map[string]interface{})
	assert.InDelta(t, 0.05, meta["change_ratio"], 1e-9)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhookNotifier(config.WebhookConfig{Enabled: true, URL: srv.URL})
	err := w.Send(context.Background(), Notification{Timestamp: time.Now()})
	var de *errors.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "webhook", de.Channel)
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	tn := NewTelegramNotifier(sender, 42)
	require.True(t, tn.IsEnabled())

	err := tn.Send(context.Background(), Notification{Title: "S&P <move>", Message: "a < b", Severity: models.SeverityCritical})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "<b>S&amp;P &lt;move&gt;</b>")
	assert.Contains(t, msg.Text, "a &lt; b")
	assert.True(t, strings.HasPrefix(msg.Text, "🚨"))
}

func TestTelegramNotifier_Disabled(t *testing.T) {
	assert.False(t, NewTelegramNotifier(&fakeSender{}, 0).IsEnabled())
	assert.False(t, NewTelegramNotifier(nil, 42).IsEnabled())
}

func TestTelegramNotifier_SendError(t *testing.T) {
	tn := NewTelegramNotifier(&fakeSender{err: fmt.Errorf("chat not found")}, 42)
	err := tn.Send(context.Background(), Notification{Title: "x"})
	var de *errors.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "telegram", de.Channel)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	text := "line one\nline two\nline three"
	chunks := SplitMessage(text, 12)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 12)
	}
	assert.Equal(t, "line one", chunks[0])
	assert.Equal(t, strings.ReplaceAll(text, "\n", ""), strings.Join(chunks, ""))

	long := strings.Repeat("x", 25)
	chunks = SplitMessage(long, 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)
}

func TestStockAlert(t *testing.T) {
	n := StockAlert(models.Quote{Symbol: "TSLA", Current: 180, PreviousClose: 200}, -0.10, "")
	assert.Equal(t, models.SeverityCritical, n.Severity)
	assert.Equal(t, "TSLA -10.00%", n.Title)
	assert.Contains(t, n.Message, "down -10.00%")
	assert.Contains(t, n.Message, "$180.00")
}

func TestPoliticianAlert(t *testing.T) {
	n := PoliticianAlert("Nancy Pelosi", 1, "Bought NVDA calls.")
	assert.Equal(t, NotificationPolitician, n.Type)
	assert.Equal(t, 1, n.Metadata.Unanalyzed)
	assert.Contains(t, n.Message, "disclosed 1 new trade\n")
	assert.Contains(t, PoliticianAlert("X", 3, "").Message, "3 new trades")
}

func TestConsoleNotifier(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleNotifier(&buf, false)
	c.SetBellEnabled(true)

	ts := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, c.Send(context.Background(), Notification{
		Title:     "AAPL +12.00%",
		Message:   "first\nsecond",
		Severity:  models.SeverityCritical,
		Timestamp: ts,
	}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\a[09:30:00] 🚨 AAPL +12.00%"))
	assert.Contains(t, out, "\n  first\n  second\n")
	assert.NotContains(t, out, "\033[")
}
