// Package tracking runs the periodic check that turns entity readings into
// deduplicated alerts.
package tracking

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stock-sentinel/internal/alert"
	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/movement"
)

// RecordPolicy decides how a dispatch outcome is written to the ledger.
type RecordPolicy string

const (
	// RecordOnAttempt records every dispatched alert, delivered or not.
	RecordOnAttempt RecordPolicy = "attempt"
	// RecordOnDelivered records failed deliveries so they do not suppress a retry.
	RecordOnDelivered RecordPolicy = "delivered"
)

// failedSuffix marks the alert type of a failed delivery under RecordOnDelivered.
const failedSuffix = ":failed"

// Reading is the current state of one entity.
type Reading struct {
	Verdict    movement.Verdict
	Quote      *models.Quote
	Activities []models.PoliticianActivity
	Since      models.Date
}

// ReadingSource fetches a reading for an entity.
type ReadingSource interface {
	Read(ctx context.Context, entity models.TrackedEntity, today models.Date) (Reading, error)
}

// Preparer is implemented by sources that refresh shared data once per cycle.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// Pipeline researches and delivers an alert, returning the message sent.
type Pipeline interface {
	Dispatch(ctx context.Context, entity models.TrackedEntity, reading Reading) (string, error)
}

// EntityLister lists the active entities of a kind.
type EntityLister interface {
	ListActive(ctx context.Context, kind models.EntityKind) ([]models.TrackedEntity, error)
}

// Summary reports what a cycle did.
type Summary struct {
	RunID          string           `json:"run_id"`
	Kind           models.EntityKind `json:"kind"`
	StartedAt      time.Time        `json:"started_at"`
	Duration       time.Duration    `json:"duration"`
	Checked        int              `json:"checked"`
	Quiet          int              `json:"quiet"`
	Suppressed     int              `json:"suppressed"`
	Alerted        int              `json:"alerted"`
	Delivered      int              `json:"delivered"`
	Failed         int              `json:"failed"`
	AlreadyRunning bool             `json:"already_running,omitempty"`
}

// Cycle checks every active entity of one kind.
type Cycle struct {
	kind            models.EntityKind
	alertType       models.AlertType
	entities        EntityLister
	source          ReadingSource
	gate            *alert.Gate
	pipeline        Pipeline
	policy          RecordPolicy
	fetchTimeout    time.Duration
	dispatchTimeout time.Duration
	log             zerolog.Logger

	running sync.Mutex
}

// CycleOption configures a Cycle.
type CycleOption func(*Cycle)

// WithPolicy sets the record policy.
func WithPolicy(p RecordPolicy) CycleOption {
	return func(c *Cycle) {
		if p == RecordOnDelivered {
			c.policy = p
		}
	}
}

// WithTimeouts sets the per-entity fetch and dispatch deadlines.
func WithTimeouts(fetch, dispatch time.Duration) CycleOption {
	return func(c *Cycle) {
		if fetch > 0 {
			c.fetchTimeout = fetch
		}
		if dispatch > 0 {
			c.dispatchTimeout = dispatch
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) CycleOption {
	return func(c *Cycle) { c.log = log }
}

// NewCycle creates a cycle for one entity kind.
func NewCycle(kind models.EntityKind, entities EntityLister, source ReadingSource, gate *alert.Gate, pipeline Pipeline, opts ...CycleOption) *Cycle {
	c := &Cycle{
		kind:            kind,
		alertType:       models.AlertDaily,
		entities:        entities,
		source:          source,
		gate:            gate,
		pipeline:        pipeline,
		policy:          RecordOnAttempt,
		fetchTimeout:    30 * time.Second,
		dispatchTimeout: 2 * time.Minute,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns the entity kind the cycle tracks.
func (c *Cycle) Kind() models.EntityKind {
	return c.kind
}

// Run checks each active entity in turn. Per-entity failures are logged and
// skipped; Run itself never fails. Overlapping runs return immediately.
func (c *Cycle) Run(ctx context.Context) Summary {
	sum := Summary{
		RunID:     uuid.NewString(),
		Kind:      c.kind,
		StartedAt: time.Now(),
	}
	// A logger carried by ctx (e.g. the scheduler's job logger) wins over c.log.
	log := logging.FromContext(ctx, c.log).With().
		Str("cycle", string(c.kind)).
		Str("run_id", sum.RunID).
		Logger()

	if !c.running.TryLock() {
		log.Warn().Msg("Tracking cycle already running, skipping")
		sum.AlreadyRunning = true
		return sum
	}
	defer c.running.Unlock()

	if p, ok := c.source.(Preparer); ok {
		if err := p.Prepare(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to refresh source data, continuing with stored data")
		}
	}

	entities, err := c.entities.ListActive(ctx, c.kind)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tracked entities")
		sum.Failed++
		sum.Duration = time.Since(sum.StartedAt)
		return sum
	}

	for _, e := range entities {
		if ctx.Err() != nil {
			log.Warn().Err(ctx.Err()).Msg("Tracking cycle cancelled")
			break
		}
		c.check(ctx, logging.WithEntity(log, string(e.Kind), e.ID), e, &sum)
	}

	sum.Duration = time.Since(sum.StartedAt)
	logging.LogCycle(log, string(c.kind), sum.Checked, sum.Alerted, sum.Failed, sum.Duration)
	return sum
}

func (c *Cycle) check(ctx context.Context, log zerolog.Logger, e models.TrackedEntity, sum *Summary) {
	sum.Checked++
	ctx = logging.IntoContext(ctx, log)

	today := c.gate.Today()

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	reading, err := c.source.Read(fetchCtx, e, today)
	cancel()
	if err != nil {
		sum.Failed++
		if errors.Is(err, errors.ErrInvalidReference) {
			log.Warn().Err(err).Msg("Skipping entity with unusable reference value")
		} else {
			log.Error().Err(err).Msg("Failed to read entity")
		}
		return
	}

	if !c.gate.ShouldAlert(ctx, e.Kind, e.ID, today, reading.Verdict) {
		if reading.Verdict != nil && reading.Verdict.IsSignificant() {
			sum.Suppressed++
		} else {
			sum.Quiet++
		}
		log.Debug().Stringer("verdict", reading.Verdict).Msg("No alert")
		return
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, c.dispatchTimeout)
	message, derr := c.pipeline.Dispatch(dispatchCtx, e, reading)
	cancel()

	sum.Alerted++
	delivered := derr == nil
	if delivered {
		sum.Delivered++
	} else {
		log.Error().Err(derr).Msg("Alert dispatch failed")
	}
	logging.LogAlert(log, e.ID, string(c.alertType), reading.Verdict.String(), delivered)

	rec := c.record(e, today, message, delivered)
	if _, err := c.gate.Ledger().RecordAlert(ctx, rec); err != nil {
		if errors.Is(err, errors.ErrAlreadyAlerted) {
			log.Debug().Msg("Alert already recorded by a concurrent run")
			return
		}
		log.Error().Err(err).Msg("Failed to record alert")
	}
}

func (c *Cycle) record(e models.TrackedEntity, today models.Date, message string, delivered bool) models.AlertRecord {
	rec := models.AlertRecord{
		Kind:           e.Kind,
		EntityID:       e.ID,
		AlertDate:      today,
		AlertType:      c.alertType,
		MessageContent: strings.TrimSpace(message),
		DeliveryStatus: models.DeliverySent,
	}
	if delivered {
		return rec
	}

	switch c.policy {
	case RecordOnDelivered:
		rec.AlertType = c.alertType + failedSuffix
		rec.DeliveryStatus = models.DeliveryFailed
	default:
		rec.DeliveryStatus = models.DeliveryAttempted
	}
	return rec
}
