// Package scheduler runs tracking cycles and housekeeping on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stock-sentinel/internal/logging"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	names  map[cron.EntryID]string
}

// New creates a scheduler evaluating schedules in loc. Overlapping runs of
// the same job are skipped and panics are recovered.
func New(log zerolog.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	log = log.With().Str("component", "scheduler").Logger()
	clog := cronLogger{log: log}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[cron.EntryID]string),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "@every 60m"         - Every 60 minutes
//   - "0 9 * * *"          - 9 AM daily
//   - "30 3 * * *"         - 3:30 AM daily
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s with %q: %w", job.Name(), schedule, err)
	}

	s.mu.Lock()
	s.names[id] = job.Name()
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	log := logging.WithJob(s.log, job.Name())
	log.Info().Msg("Running job immediately")
	return job.Run(logging.IntoContext(s.ctx, log))
}

func (s *Scheduler) execute(job Job) {
	start := time.Now()
	log := logging.WithJob(s.log, job.Name())
	log.Debug().Msg("Running job")

	if err := job.Run(logging.IntoContext(s.ctx, log)); err != nil {
		log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		return
	}
	log.Debug().
		Dur("duration", time.Since(start)).
		Msg("Job completed")
}

// EntryInfo describes a registered job's timing.
type EntryInfo struct {
	Job  string    `json:"job"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev,omitempty"`
}

// Entries lists registered jobs ordered by next run.
func (s *Scheduler) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	out := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryInfo{Job: s.names[e.ID], Next: e.Next, Prev: e.Prev})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

// cronLogger routes cron's logging to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
