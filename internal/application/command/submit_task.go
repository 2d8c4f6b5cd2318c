package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/certificate"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT TASK COMMAND
// An intern submits an artifact for a task. Admission is gated by the unlock
// scheduler: the task must be unlocked and must not have an open submission.
// Premium tasks additionally require an approved certificate validation.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitTaskCommand contains the intern's submission.
type SubmitTaskCommand struct {
	// EnrollmentID is the intern's enrollment.
	EnrollmentID string

	// TaskNumber is the task being submitted.
	TaskNumber int

	// Artifact is the submitted work (repo link / form link / file).
	Artifact submission.Artifact

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SubmitTaskCommand) Validate() error {
	if c.EnrollmentID == "" {
		return errors.New("submit_task: enrollment_id is required")
	}
	if c.TaskNumber <= 0 {
		return errors.New("submit_task: task_number must be positive")
	}
	if !c.Artifact.IsValid() {
		return errors.New("submit_task: artifact kind and locator are required")
	}
	return nil
}

// SubmitTaskResult contains the created submission.
type SubmitTaskResult struct {
	SubmissionID  string
	AttemptNumber int
	Late          bool
	LateBy        time.Duration
}

// SubmitTaskHandler handles the SubmitTaskCommand.
type SubmitTaskHandler struct {
	submissionRepo submission.Repository
	enrollmentRepo enrollment.Repository
	programRepo    program.Repository
	validationRepo certificate.ValidationRepository
	scheduler      *UnlockScheduler
	clock          shared.Clock
}

// NewSubmitTaskHandler creates a new SubmitTaskHandler.
func NewSubmitTaskHandler(
	submissionRepo submission.Repository,
	enrollmentRepo enrollment.Repository,
	programRepo program.Repository,
	validationRepo certificate.ValidationRepository,
	scheduler *UnlockScheduler,
	clock shared.Clock,
) *SubmitTaskHandler {
	return &SubmitTaskHandler{
		submissionRepo: submissionRepo,
		enrollmentRepo: enrollmentRepo,
		programRepo:    programRepo,
		validationRepo: validationRepo,
		scheduler:      scheduler,
		clock:          clock,
	}
}

// Handle executes the submit task command.
func (h *SubmitTaskHandler) Handle(ctx context.Context, cmd SubmitTaskCommand) (*SubmitTaskResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("submission", "Create", shared.ErrValidation, "invalid command", err)
	}

	enr, err := h.enrollmentRepo.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}
	if enr.Completed {
		return nil, shared.ErrEnrollmentComplete.WithEntity(enr.ID, "completed")
	}

	prog, err := h.programRepo.GetByID(ctx, enr.ProgramID)
	if err != nil {
		return nil, err
	}
	task, ok := prog.TaskByNumber(program.TaskNumber(cmd.TaskNumber))
	if !ok {
		return nil, shared.ErrTaskNotFound.WithEntity(prog.ID, fmt.Sprintf("task %d", cmd.TaskNumber))
	}

	if task.Premium {
		hasAccess, err := h.validationRepo.HasApproved(ctx, enr.ID)
		if err != nil {
			return nil, fmt.Errorf("submit_task: failed to check premium access: %w", err)
		}
		if !hasAccess {
			return nil, shared.ErrNoCompletedCert.WithEntity(enr.ID,
				fmt.Sprintf("task %d is premium", cmd.TaskNumber))
		}
	}

	if err := h.scheduler.CheckSubmittable(ctx, enr.ID, cmd.TaskNumber); err != nil {
		return nil, err
	}

	// Attempt bookkeeping: a rejected previous attempt opens attempt n+1
	// while attempts remain. An exhausted task takes no more submissions.
	attemptNumber := 1
	latest, err := h.submissionRepo.GetLatestAttempt(ctx, enr.ID, cmd.TaskNumber)
	switch {
	case err == nil:
		if latest.Exhausted {
			return nil, shared.ErrAttemptsExhausted.WithEntity(enr.ID,
				fmt.Sprintf("task %d attempts used", cmd.TaskNumber))
		}
		if latest.Status == submission.StatusApproved {
			return nil, shared.ErrOpenSubmissionExists.WithEntity(enr.ID,
				fmt.Sprintf("task %d already approved", cmd.TaskNumber))
		}
		attemptNumber = latest.AttemptNumber + 1
		if attemptNumber > prog.MaxAttempts {
			return nil, shared.ErrAttemptsExhausted.WithEntity(enr.ID,
				fmt.Sprintf("task %d attempts used", cmd.TaskNumber))
		}
	case shared.IsNotFound(err):
		// First attempt.
	default:
		return nil, fmt.Errorf("submit_task: failed to load latest attempt: %w", err)
	}

	now := h.clock.Now()
	var dueAt *time.Time
	if task.SubmissionWindow > 0 {
		if rec, err := h.scheduler.unlockRepo.Get(ctx, enr.ID, cmd.TaskNumber); err == nil {
			d := rec.UnlockEligibleAt.Add(task.SubmissionWindow)
			dueAt = &d
		}
	}

	sub, err := submission.NewSubmission(submission.NewSubmissionParams{
		ID:            uuid.NewString(),
		EnrollmentID:  enr.ID,
		TaskID:        task.ID,
		TaskNumber:    cmd.TaskNumber,
		AttemptNumber: attemptNumber,
		Artifact:      cmd.Artifact,
		DueAt:         dueAt,
		SubmittedAt:   now,
	})
	if err != nil {
		return nil, shared.WrapError("submission", "Create", shared.ErrValidation, "invalid submission", err)
	}

	if err := h.submissionRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("submit_task: failed to persist submission: %w", err)
	}

	return &SubmitTaskResult{
		SubmissionID:  sub.ID,
		AttemptNumber: sub.AttemptNumber,
		Late:          sub.Late,
		LateBy:        sub.LateBy,
	}, nil
}
