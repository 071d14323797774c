package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/stagehand-vp/stagehand/internal/metrics"
)

// ErrAlreadyStarted is returned by Start on a second call.
var ErrAlreadyStarted = errors.New("cron: already started")

// Config holds scheduler configuration.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Set // optional; counts runs per job and result
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// registeredJob pairs a job with the lock that keeps its runs serialized.
type registeredJob struct {
	job     Job
	running sync.Mutex
}

// Scheduler runs stagehand's maintenance jobs (artifact and take-log purges)
// on their cron schedules. Purges can be slow on large download directories,
// so a job whose previous run is still in flight skips the tick instead of
// piling up behind it.
type Scheduler struct {
	cfg Config

	mu     sync.Mutex
	cron   *cron.Cron
	jobs   []*registeredJob
	names  map[string]struct{}
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler. Jobs must be registered before Start.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{
		cfg:   cfg.withDefaults(),
		names: make(map[string]struct{}),
	}
}

// RegisterJob adds a maintenance job. Duplicate job names are rejected.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.jobs = append(s.jobs, &registeredJob{job: j})
	return nil
}

// Start validates every job's schedule and begins ticking. Jobs run with a
// context derived from ctx, so cancelling it interrupts in-flight purges.
// Returns ErrAlreadyStarted on a second call.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser))

	for _, rj := range s.jobs {
		rj := rj
		_, err := c.AddFunc(rj.job.Schedule(), func() {
			s.runJob(runCtx, rj)
		})
		if err != nil {
			cancel()
			return fmt.Errorf("cron: job %q: invalid schedule %q: %w",
				rj.job.Name(), rj.job.Schedule(), err)
		}
	}

	s.cron = c
	s.cancel = cancel
	c.Start()
	s.cfg.Logger.Info("maintenance scheduler started", "jobs", len(s.jobs))
	return nil
}

// runJob executes one tick of a job, skipping it when the previous run is
// still going.
func (s *Scheduler) runJob(ctx context.Context, rj *registeredJob) {
	name := rj.job.Name()

	if !rj.running.TryLock() {
		s.cfg.Logger.Warn("maintenance job overran its schedule, skipping tick", "job", name)
		s.countRun(name, "skipped")
		return
	}
	defer rj.running.Unlock()

	s.cfg.Logger.Debug("maintenance job started", "job", name)
	if err := rj.job.Run(ctx); err != nil {
		s.cfg.Logger.Error("maintenance job failed", "job", name, "error", err)
		s.countRun(name, "error")
		return
	}
	s.cfg.Logger.Debug("maintenance job completed", "job", name)
	s.countRun(name, "ok")
}

func (s *Scheduler) countRun(job, result string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()
	}
}

// Stop cancels the job context and waits for in-flight jobs to finish or
// ctx to expire. Safe to call before Start.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		s.cfg.Logger.Info("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
