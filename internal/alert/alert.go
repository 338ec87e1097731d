// Package alert decides whether a notification may be emitted for an entity
// and defines the ledger contract that remembers which alerts were sent.
package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/models"
	"stock-sentinel/internal/movement"
)

// Ledger is the durable record of alerts keyed by entity kind, entity and
// calendar date.
//
// RecordAlert does not deduplicate on its own behalf: callers gate with
// HasAlertBeenSent first. Implementations backed by a unique constraint
// return errors.ErrAlreadyAlerted when a concurrent writer got there first.
type Ledger interface {
	HasAlertBeenSent(ctx context.Context, kind models.EntityKind, entityID string, date models.Date) (bool, error)
	RecordAlert(ctx context.Context, rec models.AlertRecord) (int64, error)
	AlertHistory(ctx context.Context, kind models.EntityKind, entityID string, daysBack int) ([]models.AlertRecord, error)
}

// Clock returns the current time.
type Clock func() time.Time

// Gate composes a verdict with the ledger into a single yes/no decision.
type Gate struct {
	ledger Ledger
	clock  Clock
	loc    *time.Location
	log    zerolog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source used by Today.
func WithClock(c Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithLocation sets the time zone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		if loc != nil {
			g.loc = loc
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// NewGate creates a gate over the given ledger.
func NewGate(ledger Ledger, opts ...Option) *Gate {
	g := &Gate{
		ledger: ledger,
		clock:  time.Now,
		loc:    time.UTC,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Today returns the current calendar date in the gate's location.
func (g *Gate) Today() models.Date {
	return models.DateOf(g.clock().In(g.loc))
}

// ShouldAlert reports whether a notification should be emitted for the
// entity of the given kind on date given verdict. It records nothing.
//
// Insignificant verdicts short-circuit without touching the ledger. A ledger
// read failure fails open: the alert is allowed.
func (g *Gate) ShouldAlert(ctx context.Context, kind models.EntityKind, entityID string, date models.Date, verdict movement.Verdict) bool {
	if verdict == nil || !verdict.IsSignificant() {
		return false
	}

	sent, err := g.ledger.HasAlertBeenSent(ctx, kind, entityID, date)
	if err != nil {
		g.log.Warn().
			Err(err).
			Str("kind", string(kind)).
			Str("entity", entityID).
			Str("date", string(date)).
			Str("operation", "has_alert_been_sent").
			Msg("Alert ledger unavailable, allowing alert")
		return true
	}
	if sent {
		g.log.Debug().
			Str("kind", string(kind)).
			Str("entity", entityID).
			Str("date", string(date)).
			Msg("Alert already sent today")
		return false
	}
	return true
}

// Ledger returns the underlying ledger.
func (g *Gate) Ledger() Ledger {
	return g.ledger
}
