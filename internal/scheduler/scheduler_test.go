package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/models"
	"stock-sentinel/internal/tracking"
)

type countingRunner struct {
	calls atomic.Int32
	kinds []models.EntityKind
	err   error
}

func (c *countingRunner) Run(ctx context.Context, kind models.EntityKind) (tracking.Summary, error) {
	c.calls.Add(1)
	c.kinds = append(c.kinds, kind)
	return tracking.Summary{Kind: kind}, c.err
}

type pruner struct {
	cutoff models.Date
	err    error
}

func (p *pruner) DeleteAlertsBefore(ctx context.Context, cutoff models.Date) (int64, error) {
	p.cutoff = cutoff
	return 3, p.err
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := New(zerolog.Nop(), time.UTC)
	err := s.AddJob("every tuesday", NewTrackingJob(models.KindStock, &countingRunner{}))
	if err == nil {
		t.Fatal("AddJob with invalid schedule returned nil")
	}
}

func TestSchedules(t *testing.T) {
	s := New(zerolog.Nop(), time.UTC)
	runner := &countingRunner{}

	if err := s.AddJob(IntervalSchedule(60), NewTrackingJob(models.KindStock, runner)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(DailySchedule(9), NewTrackingJob(models.KindPolitician, runner)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(RetentionSchedule, NewRetentionJob(&pruner{}, 90, time.UTC, zerolog.Nop())); err != nil {
		t.Fatal(err)
	}

	s.Start()
	defer s.Stop()

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Job] = true
		if e.Next.IsZero() {
			t.Errorf("%s has no next run", e.Job)
		}
	}
	for _, want := range []string{"stock_tracking", "politician_tracking", "alert_retention"} {
		if !names[want] {
			t.Errorf("missing job %s", want)
		}
	}
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	runner := &countingRunner{}
	if err := s.RunNow(NewTrackingJob(models.KindPolitician, runner)); err != nil {
		t.Fatal(err)
	}
	if runner.calls.Load() != 1 || runner.kinds[0] != models.KindPolitician {
		t.Errorf("runner calls = %d kinds = %v", runner.calls.Load(), runner.kinds)
	}

	runner.err = errors.ErrInvalidEntity
	if err := s.RunNow(NewTrackingJob(models.KindStock, runner)); !errors.Is(err, errors.ErrInvalidEntity) {
		t.Errorf("RunNow error = %v", err)
	}
}

func TestScheduledJobFires(t *testing.T) {
	s := New(zerolog.Nop(), time.UTC)
	runner := &countingRunner{}
	if err := s.AddJob("@every 1s", NewTrackingJob(models.KindStock, runner)); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for runner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runner.calls.Load() == 0 {
		t.Error("scheduled job never ran")
	}
}

func TestRetentionJob(t *testing.T) {
	p := &pruner{}
	j := NewRetentionJob(p, 90, time.UTC, zerolog.Nop())
	j.now = func() time.Time { return time.Date(2024, 3, 15, 3, 30, 0, 0, time.UTC) }

	if err := j.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.cutoff != "2023-12-16" {
		t.Errorf("cutoff = %s, want 2023-12-16", p.cutoff)
	}

	p.err = fmt.Errorf("database is locked")
	if err := j.Run(context.Background()); err == nil {
		t.Error("Run error = nil on store failure")
	}

	disabled := &pruner{}
	if err := NewRetentionJob(disabled, 0, nil, zerolog.Nop()).Run(context.Background()); err != nil || disabled.cutoff != "" {
		t.Errorf("disabled retention ran: cutoff=%q err=%v", disabled.cutoff, err)
	}
}

func TestRunNow_JobLogsCarryJobName(t *testing.T) {
	var buf bytes.Buffer
	s := New(zerolog.New(&buf), time.UTC)

	j := NewRetentionJob(&pruner{}, 30, time.UTC, zerolog.Nop())
	if err := s.RunNow(j); err != nil {
		t.Fatal(err)
	}

	var pruned string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Alert history pruned") {
			pruned = line
		}
	}
	if pruned == "" {
		t.Fatalf("retention job did not log through the scheduler logger:\n%s", buf.String())
	}
	for _, want := range []string{`"job":"alert_retention"`, `"component":"scheduler"`, `"deleted":3`} {
		if !strings.Contains(pruned, want) {
			t.Errorf("log line %s missing %s", pruned, want)
		}
	}
}
