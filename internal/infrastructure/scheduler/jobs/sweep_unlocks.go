// Package jobs contains implementations of scheduled jobs for the
// internship hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP UNLOCKS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SweepUnlocksJob flips unlock records whose eligible time has passed.
// Unlock state is derived from time and normally flips lazily on read;
// the sweep guarantees a bounded delay for interns who are not polling,
// so "task unlocked" notifications go out without waiting for a read.
// The flip is idempotent, so racing a concurrent lazy read is harmless.
type SweepUnlocksJob struct {
	// Dependencies
	unlockRepo     unlock.Repository
	enrollmentRepo enrollment.Repository
	eventPublisher shared.EventPublisher
	clock          shared.Clock
	logger         *slog.Logger

	// Configuration
	config SweepUnlocksConfig

	// State
	lastSweepStats atomic.Value // *SweepStats
}

// SweepUnlocksConfig contains configuration for the sweep job.
type SweepUnlocksConfig struct {
	// BatchSize is the maximum number of due records processed per run.
	BatchSize int

	// Timeout is the maximum duration for one sweep run.
	Timeout time.Duration
}

// DefaultSweepUnlocksConfig returns sensible defaults.
func DefaultSweepUnlocksConfig() SweepUnlocksConfig {
	return SweepUnlocksConfig{
		BatchSize: 200,
		Timeout:   time.Minute,
	}
}

// SweepStats contains statistics from a sweep run.
type SweepStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Scanned     int
	Flipped     int
	Failed      int
}

// NewSweepUnlocksJob creates a new sweep unlocks job.
func NewSweepUnlocksJob(
	unlockRepo unlock.Repository,
	enrollmentRepo enrollment.Repository,
	eventPublisher shared.EventPublisher,
	clock shared.Clock,
	logger *slog.Logger,
	config SweepUnlocksConfig,
) *SweepUnlocksJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}

	return &SweepUnlocksJob{
		unlockRepo:     unlockRepo,
		enrollmentRepo: enrollmentRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
		logger:         logger,
		config:         config,
	}
}

// Name returns the job name.
func (j *SweepUnlocksJob) Name() string {
	return "sweep_unlocks"
}

// Description returns a human-readable description.
func (j *SweepUnlocksJob) Description() string {
	return "Flips due task unlocks and emits task-unlocked events"
}

// Run executes the sweep.
func (j *SweepUnlocksJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	stats := &SweepStats{StartedAt: now}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	due, err := j.unlockRepo.FindDue(ctx, now, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to find due unlocks: %w", err)
	}

	stats.Scanned = len(due)

	for _, rec := range due {
		if err := j.flipOne(ctx, rec, now); err != nil {
			stats.Failed++
			j.logger.Error("failed to flip unlock",
				"unlock_id", rec.ID,
				"enrollment_id", rec.EnrollmentID,
				"task_number", rec.TaskNumber,
				"error", err,
			)
			continue
		}
		stats.Flipped++
	}

	stats.CompletedAt = j.clock.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastSweepStats.Store(stats)

	if stats.Scanned > 0 {
		j.logger.Info("unlock sweep completed",
			"scanned", stats.Scanned,
			"flipped", stats.Flipped,
			"failed", stats.Failed,
			"duration", stats.Duration.String(),
		)
	}

	_ = j.eventPublisher.Publish(shared.NewUnlockSweepCompletedEvent(stats.Scanned, stats.Flipped, stats.Failed))

	return nil
}

// flipOne flips a single record and emits the task-unlocked event.
func (j *SweepUnlocksJob) flipOne(ctx context.Context, rec *unlock.TaskUnlock, now time.Time) error {
	changed, err := rec.Flip(now)
	if err != nil {
		return err
	}
	if !changed {
		// A lazy read got there first.
		return nil
	}

	if err := j.unlockRepo.Save(ctx, rec); err != nil {
		return err
	}

	enr, err := j.enrollmentRepo.GetByID(ctx, rec.EnrollmentID)
	if err != nil {
		// The flip itself is durable; only the notification is lost.
		return fmt.Errorf("failed to load enrollment for event: %w", err)
	}

	_ = j.eventPublisher.Publish(shared.NewTaskUnlockedEvent(rec.ID, rec.EnrollmentID, enr.InternID, rec.TaskNumber))

	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *SweepUnlocksJob) LastStats() *SweepStats {
	v := j.lastSweepStats.Load()
	if v == nil {
		return nil
	}
	return v.(*SweepStats)
}
