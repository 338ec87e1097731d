// Package telegram serves watch-list commands and free-form questions from
// the configured Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/notify"
	"stock-sentinel/internal/security"
	"stock-sentinel/internal/store"
	"stock-sentinel/internal/tracking"
)

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Replier answers free-form text. *agents.Assistant implements it.
type Replier interface {
	Reply(ctx context.Context, message string) string
}

// HistoryReader reads the alert ledger.
type HistoryReader interface {
	AlertHistory(ctx context.Context, kind models.EntityKind, entityID string, daysBack int) ([]models.AlertRecord, error)
}

// CycleRunner runs a tracking cycle on demand.
type CycleRunner interface {
	Run(ctx context.Context, kind models.EntityKind) (tracking.Summary, error)
}

// Deps are the collaborators behind the bot's commands. Assistant and
// Tracker are optional.
type Deps struct {
	Entities  store.EntityStore
	History   HistoryReader
	Assistant Replier
	Tracker   CycleRunner
}

// Bot handles updates from a single authorised chat.
type Bot struct {
	api         API
	chatID      int64
	deps        Deps
	pollTimeout int
	log         zerolog.Logger
}

// NewBot creates a bot that only answers chatID.
func NewBot(api API, chatID int64, deps Deps, pollTimeout int, log zerolog.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	return &Bot{
		api:         api,
		chatID:      chatID,
		deps:        deps,
		pollTimeout: pollTimeout,
		log:         log.With().Str("component", "telegram_bot").Logger(),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Info().Int64("chat_id", b.chatID).Msg("Telegram bot listening")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if msg.Chat.ID != b.chatID {
		b.log.Warn().Int64("chat_id", msg.Chat.ID).Msg("Ignoring message from unauthorised chat")
		return
	}

	reply := b.Respond(ctx, msg.Text)
	for _, chunk := range notify.SplitMessage(reply, 4096) {
		out := tgbotapi.NewMessage(msg.Chat.ID, chunk)
		out.ReplyToMessageID = msg.MessageID
		if _, err := b.api.Send(out); err != nil {
			b.log.Error().Str("error", security.MaskError(err)).Msg("Failed to send Telegram reply")
			return
		}
	}
}

// Respond returns the reply to a chat message.
func (b *Bot) Respond(ctx context.Context, text string) string {
	cmd, args := parseCommand(text)
	switch cmd {
	case "":
		if b.deps.Assistant == nil {
			return "I only understand commands. Try /help."
		}
		return b.deps.Assistant.Reply(ctx, text)
	case "start", "help":
		return helpText
	case "track":
		return b.add(ctx, models.KindStock, args)
	case "untrack":
		return b.remove(ctx, models.KindStock, args)
	case "follow":
		return b.add(ctx, models.KindPolitician, args)
	case "unfollow":
		return b.remove(ctx, models.KindPolitician, args)
	case "list":
		return b.list(ctx)
	case "history":
		return b.history(ctx, args)
	case "check":
		return b.check(ctx, args)
	default:
		return fmt.Sprintf("Unknown command /%s. Try /help.", cmd)
	}
}

// parseCommand splits "/track@SentinelBot aapl" into ("track", "aapl").
// Text that is not a command yields an empty command.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.Index(head, "@"); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}

func (b *Bot) add(ctx context.Context, kind models.EntityKind, raw string) string {
	if raw == "" {
		return usageFor(kind, true)
	}
	id, err := security.ValidateEntity(kind, raw)
	if err != nil {
		return "❌ " + err.Error()
	}
	e, err := b.deps.Entities.AddEntity(ctx, kind, id)
	switch {
	case errors.Is(err, errors.ErrAlreadyTracked):
		return fmt.Sprintf("%s is already tracked.", id)
	case errors.Is(err, errors.ErrTrackingLimit):
		return b.limitReached(ctx, kind)
	case err != nil:
		b.log.Error().Err(err).Str("entity", id).Msg("Failed to add entity")
		return "❌ Could not save that right now."
	}
	return fmt.Sprintf("✅ Now tracking %s.", e.ID)
}

func (b *Bot) limitReached(ctx context.Context, kind models.EntityKind) string {
	n, err := b.deps.Entities.CountActive(ctx, kind)
	if err != nil {
		return "❌ Tracking limit reached. Remove something first."
	}
	return fmt.Sprintf("❌ Tracking limit reached (%d %ss). Remove one with %s first.", n, kind, removeCommand(kind))
}

func removeCommand(kind models.EntityKind) string {
	if kind == models.KindPolitician {
		return "/unfollow"
	}
	return "/untrack"
}

func (b *Bot) remove(ctx context.Context, kind models.EntityKind, raw string) string {
	if raw == "" {
		return usageFor(kind, false)
	}
	id := models.NormalizeID(kind, raw)
	err := b.deps.Entities.RemoveEntity(ctx, kind, id)
	switch {
	case errors.Is(err, errors.ErrEntityNotFound):
		return fmt.Sprintf("%s is not being tracked.", id)
	case err != nil:
		b.log.Error().Err(err).Str("entity", id).Msg("Failed to remove entity")
		return "❌ Could not update the watch list right now."
	}
	return fmt.Sprintf("🗑 Stopped tracking %s.", id)
}

func (b *Bot) list(ctx context.Context) string {
	var sb strings.Builder
	for _, kind := range []models.EntityKind{models.KindStock, models.KindPolitician} {
		entities, err := b.deps.Entities.ListActive(ctx, kind)
		if err != nil {
			b.log.Error().Err(err).Str("kind", string(kind)).Msg("Failed to list entities")
			return "❌ Could not read the watch list right now."
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		title := "📈 Stocks"
		if kind == models.KindPolitician {
			title = "🏛 Politicians"
		}
		fmt.Fprintf(&sb, "%s (%d)\n", title, len(entities))
		if len(entities) == 0 {
			sb.WriteString("  none\n")
		}
		for _, e := range entities {
			fmt.Fprintf(&sb, "  • %s\n", e.ID)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) history(ctx context.Context, args string) string {
	if args == "" || b.deps.History == nil {
		return "Usage: /history SYMBOL [days] or /history Full Name [days]"
	}

	days := store.DefaultHistoryDays
	fields := strings.Fields(args)
	if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && len(fields) > 1 {
		days = n
		fields = fields[:len(fields)-1]
	}
	if days < 1 || days > 365 {
		return "Days must be between 1 and 365."
	}

	kind := models.KindStock
	if len(fields) > 1 {
		kind = models.KindPolitician
	}
	entity := models.NormalizeID(kind, strings.Join(fields, " "))

	records, err := b.deps.History.AlertHistory(ctx, kind, entity, days)
	if err != nil {
		b.log.Error().Err(err).Str("entity", entity).Msg("Failed to read alert history")
		return "❌ Could not read alert history right now."
	}
	if len(records) == 0 {
		return fmt.Sprintf("No alerts for %s in the last %d days.", entity, days)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Alerts for %s (last %d days)\n", entity, days)
	for _, r := range records {
		fmt.Fprintf(&sb, "• %s %s [%s]", r.AlertDate, r.AlertType, r.DeliveryStatus)
		if line, _, _ := strings.Cut(r.MessageContent, "\n"); line != "" {
			fmt.Fprintf(&sb, " %s", truncate(line, 80))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) check(ctx context.Context, args string) string {
	if b.deps.Tracker == nil {
		return "Manual checks are not available."
	}
	kind := models.KindStock
	if args != "" {
		k, err := security.ParseKind(args)
		if err != nil {
			return "Usage: /check [stocks|politicians]"
		}
		kind = k
	}

	s, err := b.deps.Tracker.Run(ctx, kind)
	if err != nil {
		b.log.Error().Err(err).Str("kind", string(kind)).Msg("Manual check failed")
		return "❌ Check failed."
	}
	if s.AlreadyRunning {
		return "A check is already running."
	}
	return fmt.Sprintf("Checked %d, alerted %d, failed %d.", s.Checked, s.Alerted, s.Failed)
}

func usageFor(kind models.EntityKind, add bool) string {
	switch {
	case kind == models.KindStock && add:
		return "Usage: /track SYMBOL"
	case kind == models.KindStock:
		return "Usage: /untrack SYMBOL"
	case add:
		return "Usage: /follow Full Name"
	default:
		return "Usage: /unfollow Full Name"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

const helpText = `Stock Sentinel 📈

/track SYMBOL - watch a stock for daily moves
/untrack SYMBOL - stop watching a stock
/follow Full Name - watch a politician's disclosed trades
/unfollow Full Name - stop watching a politician
/list - show the watch list
/history SYMBOL [days] - recent alerts
/check [stocks|politicians] - run a check now
/help - show this message

Anything else is answered by the assistant.`
