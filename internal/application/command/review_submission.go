package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/application/scoring"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW SUBMISSION COMMAND
// The progression controller: applies a reviewer's decision, refreshes the
// running score, schedules the next unlock gate on approval, and hands the
// last approval over to the completion evaluator.
// ══════════════════════════════════════════════════════════════════════════════

// ReviewDecision is the reviewer's verdict on a submission.
type ReviewDecision string

const (
	// DecisionApprove - the submission passes with the given score.
	DecisionApprove ReviewDecision = "approve"
	// DecisionReject - the submission fails; the intern may retry while
	// attempts remain.
	DecisionReject ReviewDecision = "reject"
)

// ReviewSubmissionCommand contains a reviewer's decision.
type ReviewSubmissionCommand struct {
	// SubmissionID is the submission under review.
	SubmissionID string

	// ReviewerID identifies the reviewing actor.
	ReviewerID string

	// Decision is approve or reject.
	Decision ReviewDecision

	// Score is the awarded score. Required for approval.
	Score *float64

	// Feedback is the reviewer's message to the intern.
	Feedback string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ReviewSubmissionCommand) Validate() error {
	if c.SubmissionID == "" {
		return errors.New("review_submission: submission_id is required")
	}
	if c.ReviewerID == "" {
		return errors.New("review_submission: reviewer_id is required")
	}
	switch c.Decision {
	case DecisionApprove:
		if c.Score == nil {
			return errors.New("review_submission: score is required for approval")
		}
	case DecisionReject:
		if c.Feedback == "" {
			return errors.New("review_submission: feedback is required for rejection")
		}
	default:
		return fmt.Errorf("review_submission: unknown decision: %s", c.Decision)
	}
	return nil
}

// ReviewSubmissionResult describes the state after the review.
type ReviewSubmissionResult struct {
	// SubmissionID is the reviewed submission.
	SubmissionID string

	// Status is the submission's new status.
	Status submission.Status

	// RunningScore is the enrollment's refreshed dashboard score.
	RunningScore float64

	// AttemptsRemaining - retries left after a rejection.
	AttemptsRemaining int

	// Exhausted is true when a rejection consumed the last attempt:
	// the task counts as skipped and subsequent tasks stay locked until
	// an administrator intervenes.
	Exhausted bool

	// NextUnlockAt is when the next task opens. Zero when none was
	// scheduled (rejection, or the last task).
	NextUnlockAt time.Time

	// Completed is true when this approval was the program's last task
	// and the enrollment was finalized.
	Completed bool

	// FinalScore and Eligible carry the finalization outcome when
	// Completed is true.
	FinalScore float64
	Eligible   bool
}

// ReviewSubmissionHandler handles the ReviewSubmissionCommand.
type ReviewSubmissionHandler struct {
	submissionRepo submission.Repository
	enrollmentRepo enrollment.Repository
	programRepo    program.Repository
	scheduler      *UnlockScheduler
	finalizer      *FinalizeEnrollmentHandler
	engine         scoring.Engine
	eventPublisher shared.EventPublisher
	clock          shared.Clock
}

// NewReviewSubmissionHandler creates a new ReviewSubmissionHandler.
func NewReviewSubmissionHandler(
	submissionRepo submission.Repository,
	enrollmentRepo enrollment.Repository,
	programRepo program.Repository,
	scheduler *UnlockScheduler,
	finalizer *FinalizeEnrollmentHandler,
	engine scoring.Engine,
	eventPublisher shared.EventPublisher,
	clock shared.Clock,
) *ReviewSubmissionHandler {
	return &ReviewSubmissionHandler{
		submissionRepo: submissionRepo,
		enrollmentRepo: enrollmentRepo,
		programRepo:    programRepo,
		scheduler:      scheduler,
		finalizer:      finalizer,
		engine:         engine,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// Handle executes the review submission command.
func (h *ReviewSubmissionHandler) Handle(ctx context.Context, cmd ReviewSubmissionCommand) (*ReviewSubmissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("submission", "Review", shared.ErrValidation, "invalid command", err)
	}

	sub, err := h.submissionRepo.GetByID(ctx, cmd.SubmissionID)
	if err != nil {
		return nil, err
	}
	if !sub.Status.IsOpen() {
		return nil, shared.ErrSubmissionTerminal.WithEntity(sub.ID, string(sub.Status))
	}

	enr, err := h.enrollmentRepo.GetByID(ctx, sub.EnrollmentID)
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
	task, ok := prog.TaskByNumber(program.TaskNumber(sub.TaskNumber))
	if !ok {
		return nil, shared.ErrTaskNotFound.WithEntity(prog.ID, fmt.Sprintf("task %d", sub.TaskNumber))
	}

	switch cmd.Decision {
	case DecisionApprove:
		return h.approve(ctx, cmd, sub, enr, prog, task)
	default:
		return h.reject(ctx, cmd, sub, enr, prog)
	}
}

// approve marks the submission approved, refreshes the running score,
// schedules the next gate, and finalizes after the last task.
func (h *ReviewSubmissionHandler) approve(
	ctx context.Context,
	cmd ReviewSubmissionCommand,
	sub *submission.Submission,
	enr *enrollment.Enrollment,
	prog *program.Program,
	task *program.Task,
) (*ReviewSubmissionResult, error) {
	score := *cmd.Score
	if score < 0 || score > float64(task.MaxPoints) {
		return nil, shared.ErrInvalidScore.WithEntity(sub.ID,
			fmt.Sprintf("score %.2f outside [0, %d]", score, task.MaxPoints))
	}

	now := h.clock.Now()
	if err := sub.Approve(score, cmd.ReviewerID, cmd.Feedback, now); err != nil {
		return nil, shared.WrapError("submission", "Review", shared.ErrInvalidTransition, "approve failed", err)
	}
	if err := h.submissionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("review_submission: failed to persist approval: %w", err)
	}

	// Refresh the running score for dashboards. This uses the same
	// formula as finalization but its eligibility flag is ignored.
	history, err := h.submissionRepo.GetByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, fmt.Errorf("review_submission: failed to load history: %w", err)
	}
	breakdown := h.engine.Compute(prog, history)
	enr.UpdateRunningScore(breakdown.FinalScore, now)
	if err := h.enrollmentRepo.Update(ctx, enr); err != nil {
		return nil, fmt.Errorf("review_submission: failed to persist running score: %w", err)
	}

	result := &ReviewSubmissionResult{
		SubmissionID: sub.ID,
		Status:       sub.Status,
		RunningScore: breakdown.FinalScore,
	}

	sched, err := h.scheduler.ScheduleNext(ctx, enr, prog, task.Number)
	if err != nil {
		return nil, err
	}

	if sched.Completed {
		fin, err := h.finalizer.Handle(ctx, FinalizeEnrollmentCommand{
			EnrollmentID:  enr.ID,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			return nil, err
		}
		result.Completed = true
		result.FinalScore = fin.FinalScore
		result.Eligible = fin.Eligible
	} else {
		result.NextUnlockAt = sched.Unlock.UnlockEligibleAt

		unlockEvent := shared.NewUnlockScheduledEvent(
			sched.Unlock.ID, enr.ID, enr.InternID,
			sched.Unlock.TaskNumber, sched.Unlock.UnlockEligibleAt,
		)
		if cmd.CorrelationID != "" {
			unlockEvent.BaseEvent = unlockEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.eventPublisher.Publish(unlockEvent)
	}

	approvedEvent := shared.NewSubmissionApprovedEvent(
		sub.ID, enr.ID, enr.InternID, enr.ProgramID, sub.TaskNumber,
		score, breakdown.FinalScore, result.NextUnlockAt,
	)
	if cmd.CorrelationID != "" {
		approvedEvent.BaseEvent = approvedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(approvedEvent)

	return result, nil
}

// reject marks the submission rejected. The last attempt turns the task into
// a terminal skip: subsequent tasks are not unlocked automatically and an
// administrator has to step in.
func (h *ReviewSubmissionHandler) reject(
	ctx context.Context,
	cmd ReviewSubmissionCommand,
	sub *submission.Submission,
	enr *enrollment.Enrollment,
	prog *program.Program,
) (*ReviewSubmissionResult, error) {
	exhausted := sub.AttemptNumber >= prog.MaxAttempts

	now := h.clock.Now()
	if err := sub.Reject(cmd.ReviewerID, cmd.Feedback, exhausted, now); err != nil {
		return nil, shared.WrapError("submission", "Review", shared.ErrInvalidTransition, "reject failed", err)
	}
	if err := h.submissionRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("review_submission: failed to persist rejection: %w", err)
	}

	remaining := prog.MaxAttempts - sub.AttemptNumber
	if remaining < 0 {
		remaining = 0
	}

	rejectedEvent := shared.NewSubmissionRejectedEvent(
		sub.ID, enr.ID, enr.InternID, sub.TaskNumber, cmd.Feedback, remaining,
	)
	if cmd.CorrelationID != "" {
		rejectedEvent.BaseEvent = rejectedEvent.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(rejectedEvent)

	return &ReviewSubmissionResult{
		SubmissionID:      sub.ID,
		Status:            sub.Status,
		RunningScore:      enr.RunningScore,
		AttemptsRemaining: remaining,
		Exhausted:         exhausted,
	}, nil
}
