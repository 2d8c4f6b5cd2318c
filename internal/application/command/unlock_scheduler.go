// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK SCHEDULER
// Decides when the next task becomes available after an approval and owns the
// durable "scheduled → unlocked" transition. The unlocked flag is derived:
// every read lazily re-evaluates the eligibility time and persists the flip,
// so correctness never depends on an in-process timer surviving a restart.
// A background sweep performs the same idempotent flip for timely
// notifications.
// ══════════════════════════════════════════════════════════════════════════════

// UnlockScheduler schedules and resolves per-task unlock gates.
type UnlockScheduler struct {
	unlockRepo     unlock.Repository
	submissionRepo submission.Repository
	clock          shared.Clock
}

// NewUnlockScheduler creates a new UnlockScheduler.
func NewUnlockScheduler(
	unlockRepo unlock.Repository,
	submissionRepo submission.Repository,
	clock shared.Clock,
) *UnlockScheduler {
	return &UnlockScheduler{
		unlockRepo:     unlockRepo,
		submissionRepo: submissionRepo,
		clock:          clock,
	}
}

// ScheduleResult describes the outcome of scheduling after an approval.
type ScheduleResult struct {
	// Completed is true when the approved task was the program's last:
	// nothing was scheduled and the completion evaluator takes over.
	Completed bool

	// Unlock is the created record when Completed is false.
	Unlock *unlock.TaskUnlock

	// NextTask is the task the unlock gates.
	NextTask *program.Task
}

// ScheduleNext finds the task following the just-approved one and creates or
// overwrites its TaskUnlock record with eligibility at now + the task's wait
// time. Returns a completion signal instead when no further task exists.
//
// Conflicts: scheduling is rejected when the enrollment is already complete,
// or when the next task already has a submission (a re-approval must not
// double-schedule past an intern who already moved on).
func (s *UnlockScheduler) ScheduleNext(
	ctx context.Context,
	enr *enrollment.Enrollment,
	prog *program.Program,
	approvedTask program.TaskNumber,
) (*ScheduleResult, error) {
	if enr.Completed {
		return nil, shared.ErrEnrollmentComplete.WithEntity(enr.ID, "completed")
	}

	nextTask, ok := prog.NextTask(approvedTask)
	if !ok {
		return &ScheduleResult{Completed: true}, nil
	}

	attempts, err := s.submissionRepo.GetByEnrollmentAndTask(ctx, enr.ID, int(nextTask.Number))
	if err != nil {
		return nil, fmt.Errorf("unlock_scheduler: failed to check next task submissions: %w", err)
	}
	if len(attempts) > 0 {
		return nil, shared.ErrUnlockAlreadyPlanned.WithEntity(enr.ID, fmt.Sprintf("task %d has submissions", nextTask.Number))
	}

	now := s.clock.Now()
	rec, err := unlock.NewScheduled(
		uuid.NewString(),
		enr.ID,
		nextTask.ID,
		int(nextTask.Number),
		now.Add(nextTask.WaitAfterApproval),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("unlock_scheduler: %w", err)
	}

	if err := s.unlockRepo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("unlock_scheduler: failed to persist unlock: %w", err)
	}

	return &ScheduleResult{Unlock: rec, NextTask: nextTask}, nil
}

// UnlockFirstTask creates the pre-unlocked record for task 1 at enrollment
// start.
func (s *UnlockScheduler) UnlockFirstTask(
	ctx context.Context,
	enr *enrollment.Enrollment,
	prog *program.Program,
) (*unlock.TaskUnlock, error) {
	first, ok := prog.TaskByNumber(1)
	if !ok {
		return nil, shared.ErrTaskNotFound.WithEntity(prog.ID, "program has no tasks")
	}

	rec, err := unlock.NewPreUnlocked(uuid.NewString(), enr.ID, first.ID, 1, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("unlock_scheduler: %w", err)
	}

	if err := s.unlockRepo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("unlock_scheduler: failed to persist first unlock: %w", err)
	}
	return rec, nil
}

// IsUnlocked reports whether the task is open for the enrollment, lazily
// confirming a due flip and persisting it. Task 1 is always unlocked.
//
// The flip persist is best-effort under concurrency: losing a save race to
// the background sweep is fine because the operation is idempotent.
func (s *UnlockScheduler) IsUnlocked(ctx context.Context, enrollmentID string, taskNumber int) (bool, error) {
	if taskNumber == 1 {
		return true, nil
	}

	rec, err := s.unlockRepo.Get(ctx, enrollmentID, taskNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("unlock_scheduler: failed to load unlock: %w", err)
	}

	if rec.Unlocked {
		return true, nil
	}

	changed, err := rec.Flip(s.clock.Now())
	if err != nil {
		if errors.Is(err, unlock.ErrNotDue) {
			return false, nil
		}
		return false, err
	}
	if changed {
		if err := s.unlockRepo.Save(ctx, rec); err != nil {
			return false, fmt.Errorf("unlock_scheduler: failed to persist flip: %w", err)
		}
	}

	return true, nil
}

// CheckSubmittable enforces the admission rule: task T is submittable for
// enrollment E iff T is task 1 or its unlock record is unlocked (after lazy
// re-evaluation), and E has no open submission for T.
func (s *UnlockScheduler) CheckSubmittable(ctx context.Context, enrollmentID string, taskNumber int) error {
	unlocked, err := s.IsUnlocked(ctx, enrollmentID, taskNumber)
	if err != nil {
		return err
	}
	if !unlocked {
		return shared.ErrTaskNotUnlocked.WithEntity(enrollmentID, fmt.Sprintf("task %d locked", taskNumber))
	}

	open, err := s.submissionRepo.HasOpenSubmission(ctx, enrollmentID, taskNumber)
	if err != nil {
		return fmt.Errorf("unlock_scheduler: failed to check open submissions: %w", err)
	}
	if open {
		return shared.ErrOpenSubmissionExists.WithEntity(enrollmentID, fmt.Sprintf("task %d awaiting review", taskNumber))
	}

	return nil
}
