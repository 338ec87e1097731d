package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/logging"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/tracking"
)

// CycleRunner runs the tracking cycle for a kind.
type CycleRunner interface {
	Run(ctx context.Context, kind models.EntityKind) (tracking.Summary, error)
}

// TrackingJob runs one tracking cycle.
type TrackingJob struct {
	kind   models.EntityKind
	runner CycleRunner
}

// NewTrackingJob creates a job for kind.
func NewTrackingJob(kind models.EntityKind, runner CycleRunner) *TrackingJob {
	return &TrackingJob{kind: kind, runner: runner}
}

// Name implements Job.
func (j *TrackingJob) Name() string {
	return string(j.kind) + "_tracking"
}

// Run implements Job. Per-entity failures are absorbed by the cycle.
func (j *TrackingJob) Run(ctx context.Context) error {
	_, err := j.runner.Run(ctx, j.kind)
	return err
}

// AlertPruner deletes old ledger rows.
type AlertPruner interface {
	DeleteAlertsBefore(ctx context.Context, cutoff models.Date) (int64, error)
}

// RetentionJob purges alert history older than the retention window.
type RetentionJob struct {
	store AlertPruner
	days  int
	now   func() time.Time
	loc   *time.Location
	log   zerolog.Logger
}

// NewRetentionJob creates a retention job. days <= 0 disables pruning.
func NewRetentionJob(store AlertPruner, days int, loc *time.Location, log zerolog.Logger) *RetentionJob {
	if loc == nil {
		loc = time.UTC
	}
	return &RetentionJob{store: store, days: days, now: time.Now, loc: loc, log: log}
}

// Name implements Job.
func (j *RetentionJob) Name() string {
	return "alert_retention"
}

// Cutoff returns the earliest alert date that is kept.
func (j *RetentionJob) Cutoff() models.Date {
	return models.DateOf(j.now().In(j.loc)).AddDays(-j.days)
}

// Run implements Job.
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		return nil
	}
	cutoff := j.Cutoff()
	n, err := j.store.DeleteAlertsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pruning alerts before %s: %w", cutoff, err)
	}
	log := logging.FromContext(ctx, j.log)
	log.Info().Int64("deleted", n).Str("cutoff", string(cutoff)).Msg("Alert history pruned")
	return nil
}

// IntervalSchedule returns an "@every" spec for minutes.
func IntervalSchedule(minutes int) string {
	return fmt.Sprintf("@every %dm", minutes)
}

// DailySchedule returns a cron spec firing at hour:00 every day.
func DailySchedule(hour int) string {
	return fmt.Sprintf("0 %d * * *", hour)
}

// RetentionSchedule fires once a day outside market hours.
const RetentionSchedule = "30 3 * * *"
