// Package integration exercises the tracking stack end to end: REST API,
// SQLite ledger, Alpaca and Quiver adapters, notifier and Telegram bot.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-sentinel/internal/alert"
	"stock-sentinel/internal/congress"
	"stock-sentinel/internal/market"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/notify"
	"stock-sentinel/internal/resilience"
	"stock-sentinel/internal/server"
	"stock-sentinel/internal/store"
	"stock-sentinel/internal/telegram"
	"stock-sentinel/internal/tracking"
	"stock-sentinel/pkg/utils"
)

const chatID int64 = 77

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type snapshots map[string]*marketdata.Snapshot

func (s snapshots) GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error) {
	return s[symbol], nil
}

type chat struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (c *chat) Send(m tgbotapi.Chattable) (tgbotapi.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg, ok := m.(tgbotapi.MessageConfig); ok {
		c.sent = append(c.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (c *chat) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.sent {
		out = append(out, m.Text)
	}
	return out
}

type system struct {
	clock   *clock
	store   *store.SQLiteStore
	chat    *chat
	tracker *tracking.Service
	api     http.Handler
	bot     *telegram.Bot
}

func newSystem(t *testing.T, quotes snapshots, quiverURL string) *system {
	t.Helper()
	log := zerolog.Nop()
	clk := &clock{now: time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "sentinel.db"), store.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	noRetry := utils.RetryConfig{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	provider := market.NewAlpacaProviderWithClient(quotes, market.Options{Retry: &noRetry}, log)
	quoteBreaker := resilience.NewBreaker("market", resilience.DefaultBreakerConfig())
	guarded := resilience.GuardQuotes(provider, quoteBreaker)

	quiver := congress.NewClient(quiverURL, "quiver-token", log)
	quiver.SetRetry(noRetry)
	trades := resilience.GuardTrades(quiver, resilience.NewBreaker("congress", resilience.DefaultBreakerConfig()))

	tg := &chat{}
	notifier := notify.NewMultiNotifier(nil, log)
	notifier.AddChannel(notify.NewTelegramNotifier(tg, chatID))

	gate := alert.NewGate(st, alert.WithClock(clk.Now))
	pipeline := tracking.NewResearchPipeline(nil, notifier, st, log)
	stocks := tracking.NewCycle(models.KindStock, st, tracking.NewStockSource(guarded, 0.01), gate, pipeline)
	politicians := tracking.NewCycle(models.KindPolitician, st,
		tracking.NewPoliticianSource(trades, st, st, tracking.PoliticianSourceConfig{Now: clk.Now}, log),
		gate, pipeline)
	svc := tracking.NewService(stocks, politicians)

	health := resilience.NewChecker(time.Second)
	health.Register("database", resilience.PingCheck(st.Ping))
	health.Register("market", resilience.BreakerCheck(quoteBreaker))

	srv := server.New(server.Config{
		AuthToken: "api-token",
		Log:       log,
		Store:     st,
		Tracker:   svc,
		Health:    health,
	})
	bot := telegram.NewBot(nil, chatID, telegram.Deps{Entities: st, History: st, Tracker: svc}, 0, log)

	return &system{clock: clk, store: st, chat: tg, tracker: svc, api: srv.Handler(), bot: bot}
}

func (s *system) call(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer api-token")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.api.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func bar(close float64) *marketdata.Bar { return &marketdata.Bar{Close: close} }

func trade(price float64) *marketdata.Trade { return &marketdata.Trade{Price: price} }

// A 5% move alerts once, a 0.3% move stays quiet, a zero previous close is
// skipped without aborting the cycle, and the next day alerts again.
func TestEndToEnd_StockAlerts(t *testing.T) {
	sys := newSystem(t, snapshots{
		"AAPL": {LatestTrade: trade(105.0), PrevDailyBar: bar(100.0)},
		"MSFT": {LatestTrade: trade(100.3), PrevDailyBar: bar(100.0)},
		"ZERO": {LatestTrade: trade(3.0), PrevDailyBar: bar(0)},
	}, "http://127.0.0.1:1")

	for _, sym := range []string{"aapl", "MSFT", "zero"} {
		code, _ := sys.call(t, http.MethodPost, "/api/stocks", `{"symbol":"`+sym+`"}`)
		require.Equal(t, http.StatusCreated, code)
	}

	code, summary := sys.call(t, http.MethodPost, "/api/tracking/run/stocks", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, summary["checked"])
	assert.EqualValues(t, 1, summary["alerted"])
	assert.EqualValues(t, 1, summary["delivered"])
	assert.EqualValues(t, 1, summary["quiet"])
	assert.EqualValues(t, 1, summary["failed"])

	texts := sys.chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "AAPL +5.00%")

	// Same day: the ledger suppresses a repeat.
	_, summary = sys.call(t, http.MethodPost, "/api/tracking/run/stocks", "")
	assert.EqualValues(t, 0, summary["alerted"])
	assert.EqualValues(t, 1, summary["suppressed"])
	assert.Len(t, sys.chat.texts(), 1)

	code, history := sys.call(t, http.MethodGet, "/api/alerts/AAPL", "")
	require.Equal(t, http.StatusOK, code)
	alerts := history["alerts"].([]interface{})
	require.Len(t, alerts, 1)
	row := alerts[0].(map[string]interface{})
	assert.Equal(t, "2024-03-15", row["alert_date"])
	assert.Equal(t, "sent", row["delivery_status"])

	assert.Contains(t, sys.bot.Respond(context.Background(), "/history aapl"), "2024-03-15 daily [sent]")

	// Next calendar day.
	sys.clock.advance(24 * time.Hour)
	reply := sys.bot.Respond(context.Background(), "/check stocks")
	assert.Equal(t, "Checked 3, alerted 1, failed 1.", reply)
	assert.Len(t, sys.chat.texts(), 2)

	code, health := sys.call(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "HEALTHY", health["status"])
}

const houseTrades = `[
	{"Representative": "Nancy Pelosi", "TransactionDate": "2024-03-14", "ReportDate": "2024-03-15", "Ticker": "NVDA", "Transaction": "Purchase", "Range": "$1,000,001 - $5,000,000"},
	{"Representative": "Dan Crenshaw", "TransactionDate": "2024-03-14", "Ticker": "XOM", "Transaction": "Sale", "Range": "$1,001 - $15,000"}
]`

func TestEndToEnd_PoliticianDisclosures(t *testing.T) {
	quiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer quiver-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/housetrading") {
			_, _ = w.Write([]byte(houseTrades))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer quiver.Close()

	sys := newSystem(t, snapshots{}, quiver.URL)
	ctx := context.Background()

	assert.Contains(t, sys.bot.Respond(ctx, "/follow nancy pelosi"), "Now tracking")

	sum, err := sys.tracker.Run(ctx, models.KindPolitician)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Checked)
	assert.Equal(t, 1, sum.Alerted)

	texts := sys.chat.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "Nancy Pelosi")

	left, err := sys.store.UnanalyzedActivities(ctx, "Nancy Pelosi", "2024-03-01")
	require.NoError(t, err)
	assert.Empty(t, left)

	// Untracked politicians are never stored.
	others, err := sys.store.RecentActivities(ctx, "Dan Crenshaw", 10)
	require.NoError(t, err)
	assert.Empty(t, others)

	sys.clock.advance(24 * time.Hour)
	sum, err = sys.tracker.Run(ctx, models.KindPolitician)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Alerted)
	assert.Len(t, sys.chat.texts(), 1)
}
