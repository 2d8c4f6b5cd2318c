package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL INTERN COMMAND
// Creates the enrollment and the pre-unlocked record for task 1 so the intern
// can start immediately. Every later task goes through the scheduled gate.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollInternCommand enrolls an intern into a program.
type EnrollInternCommand struct {
	// InternID is the intern to enroll.
	InternID string

	// ProgramID is the program to enroll into.
	ProgramID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c EnrollInternCommand) Validate() error {
	if c.InternID == "" {
		return errors.New("enroll_intern: intern_id is required")
	}
	if c.ProgramID == "" {
		return errors.New("enroll_intern: program_id is required")
	}
	return nil
}

// EnrollInternResult contains the created enrollment.
type EnrollInternResult struct {
	EnrollmentID string
	FirstTaskID  string
}

// EnrollInternHandler handles the EnrollInternCommand.
type EnrollInternHandler struct {
	enrollmentRepo enrollment.Repository
	programRepo    program.Repository
	scheduler      *UnlockScheduler
	clock          shared.Clock
}

// NewEnrollInternHandler creates a new EnrollInternHandler.
func NewEnrollInternHandler(
	enrollmentRepo enrollment.Repository,
	programRepo program.Repository,
	scheduler *UnlockScheduler,
	clock shared.Clock,
) *EnrollInternHandler {
	return &EnrollInternHandler{
		enrollmentRepo: enrollmentRepo,
		programRepo:    programRepo,
		scheduler:      scheduler,
		clock:          clock,
	}
}

// Handle executes the enroll intern command.
func (h *EnrollInternHandler) Handle(ctx context.Context, cmd EnrollInternCommand) (*EnrollInternResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("enrollment", "Create", shared.ErrValidation, "invalid command", err)
	}

	prog, err := h.programRepo.GetByID(ctx, cmd.ProgramID)
	if err != nil {
		return nil, err
	}
	if prog.TaskCount() == 0 {
		return nil, shared.ErrTaskNotFound.WithEntity(prog.ID, "program has no tasks")
	}

	enr, err := enrollment.NewEnrollment(uuid.NewString(), cmd.InternID, cmd.ProgramID, h.clock.Now())
	if err != nil {
		return nil, shared.WrapError("enrollment", "Create", shared.ErrValidation, "invalid enrollment", err)
	}

	if err := h.enrollmentRepo.Create(ctx, enr); err != nil {
		return nil, err
	}

	first, err := h.scheduler.UnlockFirstTask(ctx, enr, prog)
	if err != nil {
		return nil, fmt.Errorf("enroll_intern: failed to unlock first task: %w", err)
	}

	return &EnrollInternResult{
		EnrollmentID: enr.ID,
		FirstTaskID:  first.TaskID,
	}, nil
}
