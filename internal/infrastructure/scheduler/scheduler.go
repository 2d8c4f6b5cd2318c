// Package scheduler implements background job scheduling for the internship
// hub. It drives the periodic unlock sweep (opening tasks whose wait period
// has elapsed even when nobody reads) and certificate delivery reminders.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Job is a unit of background work with a stable name for logging and
// duplicate-registration checks.
type Job interface {
	Name() string

	// Run executes one pass. The context is cancelled when the scheduler
	// shuts down; long-running jobs must honor it.
	Run(ctx context.Context) error

	Description() string
}

// Schedule decides when a job fires.
type Schedule interface {
	// Next returns the first firing time strictly after t.
	Next(t time.Time) time.Time

	String() string
}

var (
	ErrNilJob           = errors.New("job cannot be nil")
	ErrNilSchedule      = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists = errors.New("job already exists")
	ErrAlreadyRunning   = errors.New("scheduler is already running")
	ErrNotRunning       = errors.New("scheduler is not running")
)

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Logger *slog.Logger

	// Timezone used to evaluate schedules. Cron expressions for daily
	// reminders are meant in local time, not UTC.
	Timezone *time.Location
}

// DefaultSchedulerConfig returns defaults: slog default logger, UTC.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Logger:   slog.Default(),
		Timezone: time.UTC,
	}
}

// Scheduler runs registered jobs on their schedules. Each due job executes
// in its own goroutine; Stop waits for in-flight runs to finish.
type Scheduler struct {
	logger   *slog.Logger
	timezone *time.Location

	mu        sync.Mutex
	jobs      map[string]*jobState
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

type jobState struct {
	job       Job
	schedule  Schedule
	nextRun   time.Time
	failCount int64
}

// NewScheduler creates an idle scheduler.
func NewScheduler(config SchedulerConfig) *Scheduler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	return &Scheduler{
		logger:   config.Logger,
		timezone: config.Timezone,
		jobs:     make(map[string]*jobState),
	}
}

// Register adds a job. Names must be unique.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	next := schedule.Next(time.Now().In(s.timezone))
	s.jobs[name] = &jobState{job: job, schedule: schedule, nextRun: next}

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
		"next_run", next.Format(time.RFC3339),
	)
	return nil
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("scheduler started", "jobs_count", len(s.jobs))
	return nil
}

// Stop cancels the loop and blocks until running jobs return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop wakes every second and dispatches due jobs. One-second granularity
// is plenty: the tightest schedule in use is the per-minute unlock sweep.
func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.dispatchDue(now.In(s.timezone))
		}
	}
}

func (s *Scheduler) dispatchDue(now time.Time) {
	s.mu.Lock()
	var due []*jobState
	for _, st := range s.jobs {
		if !st.nextRun.IsZero() && now.After(st.nextRun) {
			st.nextRun = st.schedule.Next(now)
			due = append(due, st)
		}
	}
	s.mu.Unlock()

	for _, st := range due {
		s.wg.Add(1)
		go s.run(st)
	}
}

func (s *Scheduler) run(st *jobState) {
	defer s.wg.Done()

	name := st.job.Name()
	started := time.Now()
	s.logger.Info("job started", "job", name)

	err := st.job.Run(s.ctx)
	duration := time.Since(started)

	if err != nil {
		s.mu.Lock()
		st.failCount++
		fails := st.failCount
		s.mu.Unlock()
		s.logger.Error("job failed",
			"job", name,
			"duration", duration.String(),
			"fail_count", fails,
			"error", err,
		)
		return
	}

	s.logger.Info("job completed", "job", name, "duration", duration.String())
}
