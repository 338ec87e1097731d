package cli

import (
	"context"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"stock-sentinel/internal/agents"
	"stock-sentinel/internal/alert"
	"stock-sentinel/internal/config"
	"stock-sentinel/internal/congress"
	"stock-sentinel/internal/market"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/notify"
	"stock-sentinel/internal/resilience"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/store"
	"stock-sentinel/internal/tracking"
)

// runtime is the wired set of components behind serve and check.
type runtime struct {
	store     *store.SQLiteStore
	quotes    market.QuoteProvider
	notifier  *notify.MultiNotifier
	botAPI    *tgbotapi.BotAPI
	assistant *agents.Assistant
	tracker   *tracking.Service
	health    *resilience.Checker
}

// buildRuntime wires providers, notifiers and tracking cycles from config.
// console receives alerts when no other channel is configured.
func (app *App) buildRuntime(console io.Writer) (*runtime, error) {
	cfg := app.Config
	log := app.Logger

	st, err := app.openStore()
	if err != nil {
		return nil, err
	}
	rt := &runtime{store: st}

	quoteBreaker := resilience.NewBreaker("market", resilience.DefaultBreakerConfig())
	tradeBreaker := resilience.NewBreaker("congress", resilience.DefaultBreakerConfig())

	rt.quotes = resilience.GuardQuotes(market.NewAlpacaProvider(market.Options{
		KeyID:     cfg.Credentials.Alpaca.KeyID,
		SecretKey: cfg.Credentials.Alpaca.SecretKey,
		BaseURL:   cfg.Market.BaseURL,
		Feed:      cfg.Market.Feed,
	}, log), quoteBreaker)
	trades := resilience.GuardTrades(congress.NewClient(cfg.Congress.BaseURL, cfg.Credentials.Quiver.APIToken, log), tradeBreaker)

	// A nil *Researcher must not reach the pipeline as a non-nil interface.
	var reporter tracking.Reporter
	if cfg.Credentials.OpenAI.APIKey != "" {
		summaryLLM := agents.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.Agents.Model).
			WithLimits(cfg.Agents.MaxTokens, cfg.Agents.Temperature)
		researchLLM := agents.NewOpenAIClient(cfg.Credentials.OpenAI.APIKey, cfg.Agents.ResearchModel).
			WithLimits(cfg.Agents.MaxTokens, cfg.Agents.Temperature)
		reporter = agents.NewResearcher(researchLLM, summaryLLM, log)
		rt.assistant = agents.NewAssistant(summaryLLM, agents.NewToolExecutor(st, rt.quotes, st), log)
		log.Debug().Str("model", cfg.Agents.Model).Str("research_model", cfg.Agents.ResearchModel).Msg("OpenAI clients initialized")
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, alerts will not include research")
	}

	rt.notifier = notify.NewMultiNotifier(&cfg.Notifications, log)
	if tg := cfg.Notifications.Telegram; cfg.Notifications.Enabled && tg.Enabled && tg.BotToken != "" {
		api, err := tgbotapi.NewBotAPI(tg.BotToken)
		if err != nil {
			log.Error().Str("error", security.MaskError(err)).Msg("Failed to connect Telegram bot")
		} else {
			rt.botAPI = api
			rt.notifier.AddChannel(notify.NewTelegramNotifier(api, cfg.TelegramChatID()))
			log.Info().Str("bot", api.Self.UserName).Msg("Telegram bot connected")
		}
	}
	if len(rt.notifier.Channels()) == 0 {
		tty := isTerminal()
		fallback := notify.NewConsoleNotifier(console, tty)
		fallback.SetBellEnabled(tty)
		rt.notifier.AddChannel(fallback)
		log.Warn().Msg("No notification channel configured, alerts go to the console")
	}

	loc := cfg.Location()
	gate := alert.NewGate(st, alert.WithLocation(loc), alert.WithLogger(log))
	pipeline := tracking.NewResearchPipeline(reporter, rt.notifier, st, log)

	policy := tracking.RecordOnAttempt
	if cfg.Tracking.RecordPolicy == config.RecordOnDelivered {
		policy = tracking.RecordOnDelivered
	}
	opts := []tracking.CycleOption{
		tracking.WithPolicy(policy),
		tracking.WithTimeouts(cfg.Tracking.FetchTimeout, cfg.Tracking.DispatchTimeout),
		tracking.WithLogger(log),
	}

	stocks := tracking.NewCycle(models.KindStock, st,
		tracking.NewStockSource(rt.quotes, cfg.Tracking.PriceChangeThreshold),
		gate, pipeline, opts...)
	politicians := tracking.NewCycle(models.KindPolitician, st,
		tracking.NewPoliticianSource(trades, st, st, tracking.PoliticianSourceConfig{
			LookbackDays: cfg.Congress.LookbackDays,
			WindowDays:   cfg.Tracking.PoliticianActivityDays,
		}, log),
		gate, pipeline, opts...)
	rt.tracker = tracking.NewService(stocks, politicians)

	rt.health = resilience.NewChecker(0)
	rt.health.Register("database", resilience.PingCheck(st.Ping))
	rt.health.Register("market", resilience.BreakerCheck(quoteBreaker))
	rt.health.Register("congress", resilience.BreakerCheck(tradeBreaker))

	return rt, nil
}

// runCycle runs one tracking cycle and prints its summary.
func runCycle(ctx context.Context, output *Output, rt *runtime, kind models.EntityKind) error {
	summary, err := rt.tracker.Run(ctx, kind)
	if err != nil {
		return err
	}
	if output.IsJSON() {
		return output.JSON(summary)
	}

	if summary.AlreadyRunning {
		output.Warning("A %s cycle is already running", kind)
		return nil
	}
	output.Bold("%s cycle %s", titleFor(kind), summary.RunID)
	output.Printf("  Checked:    %d\n", summary.Checked)
	output.Printf("  Quiet:      %s\n", output.Count(summary.Quiet, ColorDim))
	output.Printf("  Suppressed: %s\n", output.Count(summary.Suppressed, ColorYellow))
	output.Printf("  Alerted:    %s\n", output.Count(summary.Alerted, ColorGreen))
	output.Printf("  Delivered:  %s\n", output.Count(summary.Delivered, ColorGreen))
	output.Printf("  Failed:     %s\n", output.Count(summary.Failed, ColorRed))
	output.Dim("  Took %s", FormatDuration(summary.Duration))
	return nil
}

func titleFor(kind models.EntityKind) string {
	if kind == models.KindPolitician {
		return "Politician"
	}
	return "Stock"
}
