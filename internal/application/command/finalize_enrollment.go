package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/internforge/internship-hub/internal/application/scoring"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// FINALIZE ENROLLMENT COMMAND
// The completion evaluator: runs the score engine over the full history once
// all tasks are terminal, persists the final score and eligibility, and emits
// the completion event consumed by the certificate workflow.
//
// Finalization is idempotent. A second call returns the stored result
// unchanged - recomputing after late data corrections would let the score
// drift under certification decisions already made downstream.
// ══════════════════════════════════════════════════════════════════════════════

// FinalizeEnrollmentCommand requests finalization of an enrollment.
type FinalizeEnrollmentCommand struct {
	// EnrollmentID is the enrollment to finalize.
	EnrollmentID string

	// Force allows finalizing with unattempted tasks: they count as
	// skipped. Used by administrators to close out abandoned enrollments.
	Force bool

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c FinalizeEnrollmentCommand) Validate() error {
	if c.EnrollmentID == "" {
		return errors.New("finalize_enrollment: enrollment_id is required")
	}
	return nil
}

// FinalizeEnrollmentResult contains the finalization outcome.
type FinalizeEnrollmentResult struct {
	// FinalScore is the persisted final score.
	FinalScore float64

	// Eligible is the persisted certificate eligibility.
	Eligible bool

	// AlreadyFinalized is true when the stored result was returned
	// without recomputation.
	AlreadyFinalized bool

	// Breakdown is the full score breakdown. Nil when AlreadyFinalized.
	Breakdown *scoring.Breakdown
}

// FinalizeEnrollmentHandler handles the FinalizeEnrollmentCommand.
type FinalizeEnrollmentHandler struct {
	enrollmentRepo enrollment.Repository
	programRepo    program.Repository
	submissionRepo submission.Repository
	engine         scoring.Engine
	eventPublisher shared.EventPublisher
	clock          shared.Clock
}

// NewFinalizeEnrollmentHandler creates a new FinalizeEnrollmentHandler.
func NewFinalizeEnrollmentHandler(
	enrollmentRepo enrollment.Repository,
	programRepo program.Repository,
	submissionRepo submission.Repository,
	engine scoring.Engine,
	eventPublisher shared.EventPublisher,
	clock shared.Clock,
) *FinalizeEnrollmentHandler {
	return &FinalizeEnrollmentHandler{
		enrollmentRepo: enrollmentRepo,
		programRepo:    programRepo,
		submissionRepo: submissionRepo,
		engine:         engine,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// Handle executes the finalize enrollment command.
func (h *FinalizeEnrollmentHandler) Handle(ctx context.Context, cmd FinalizeEnrollmentCommand) (*FinalizeEnrollmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("enrollment", "Finalize", shared.ErrValidation, "invalid command", err)
	}

	enr, err := h.enrollmentRepo.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}

	// Idempotence: an already-finalized enrollment returns the stored
	// result byte-for-byte, never a recomputation.
	if enr.Completed {
		finalScore, eligible, err := enr.FinalResult()
		if err != nil {
			return nil, shared.WrapError("enrollment", "Finalize", shared.ErrInvalidEntity, "completed enrollment without final score", err)
		}
		return &FinalizeEnrollmentResult{
			FinalScore:       finalScore,
			Eligible:         eligible,
			AlreadyFinalized: true,
		}, nil
	}

	prog, err := h.programRepo.GetByID(ctx, enr.ProgramID)
	if err != nil {
		return nil, err
	}
	if prog.TaskCount() == 0 {
		return nil, shared.ErrEnrollmentNotComplete.WithEntity(enr.ID, "program has no tasks")
	}

	history, err := h.submissionRepo.GetByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, fmt.Errorf("finalize_enrollment: failed to load history: %w", err)
	}

	if !cmd.Force {
		if err := h.requireAllTerminal(prog, history, enr.ID); err != nil {
			return nil, err
		}
	}

	breakdown := h.engine.Compute(prog, history)

	now := h.clock.Now()
	if err := enr.Finalize(breakdown.FinalScore, breakdown.Eligible, now); err != nil {
		return nil, shared.WrapError("enrollment", "Finalize", shared.ErrAlreadyProcessed, "already finalized", err)
	}
	if err := h.enrollmentRepo.Update(ctx, enr); err != nil {
		return nil, fmt.Errorf("finalize_enrollment: failed to persist: %w", err)
	}

	event := shared.NewEnrollmentCompletedEvent(enr.ID, enr.InternID, enr.ProgramID, breakdown.FinalScore, breakdown.Eligible)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &FinalizeEnrollmentResult{
		FinalScore: breakdown.FinalScore,
		Eligible:   breakdown.Eligible,
		Breakdown:  &breakdown,
	}, nil
}

// requireAllTerminal verifies every task of the program has a terminal
// submission (approved, or rejected with attempts exhausted).
func (h *FinalizeEnrollmentHandler) requireAllTerminal(prog *program.Program, history []*submission.Submission, enrollmentID string) error {
	terminal := make(map[int]bool, prog.TaskCount())
	for _, s := range history {
		if s.IsTerminal() {
			terminal[s.TaskNumber] = true
		}
	}

	for _, t := range prog.Tasks {
		if !terminal[int(t.Number)] {
			return shared.ErrEnrollmentNotComplete.WithEntity(
				enrollmentID,
				fmt.Sprintf("task %d is not terminal", t.Number),
			)
		}
	}
	return nil
}
