package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgramRepository implements program.Repository for PostgreSQL.
type ProgramRepository struct {
	conn *Connection
}

// NewProgramRepository creates a new ProgramRepository.
func NewProgramRepository(conn *Connection) *ProgramRepository {
	return &ProgramRepository{conn: conn}
}

// GetByID returns a program with all of its tasks, ordered by task number.
func (r *ProgramRepository) GetByID(ctx context.Context, id string) (*program.Program, error) {
	query := `
		SELECT id, name, pass_threshold, max_attempts, certificate_fee, created_at
		FROM programs
		WHERE id = $1
	`

	var p program.Program
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.PassThreshold,
		&p.MaxAttempts,
		&p.CertificateFee,
		&p.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgramNotFound.WithEntity(id, "")
		}
		return nil, fmt.Errorf("failed to get program: %w", err)
	}

	tasks, err := r.loadTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks

	return &p, nil
}

// List returns all programs without their tasks.
func (r *ProgramRepository) List(ctx context.Context) ([]*program.Program, error) {
	query := `
		SELECT id, name, pass_threshold, max_attempts, certificate_fee, created_at
		FROM programs
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	var programs []*program.Program
	for rows.Next() {
		var p program.Program
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.PassThreshold,
			&p.MaxAttempts,
			&p.CertificateFee,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan program row: %w", err)
		}
		programs = append(programs, &p)
	}

	return programs, rows.Err()
}

// loadTasks loads a program's tasks ordered by number.
func (r *ProgramRepository) loadTasks(ctx context.Context, programID string) ([]program.Task, error) {
	query := `
		SELECT id, program_id, number, title, description, max_points,
			   wait_after_approval_seconds, submission_window_seconds,
			   mandatory, premium, created_at
		FROM tasks
		WHERE program_id = $1
		ORDER BY number
	`

	rows, err := r.conn.Query(ctx, query, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	defer rows.Close()

	var tasks []program.Task
	for rows.Next() {
		var (
			t         program.Task
			number    int
			maxPoints float64
			waitSec   int64
			windowSec int64
		)
		if err := rows.Scan(
			&t.ID,
			&t.ProgramID,
			&number,
			&t.Title,
			&t.Description,
			&maxPoints,
			&waitSec,
			&windowSec,
			&t.Mandatory,
			&t.Premium,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		t.Number = program.TaskNumber(number)
		t.MaxPoints = program.Points(maxPoints)
		t.WaitAfterApproval = time.Duration(waitSec) * time.Second
		t.SubmissionWindow = time.Duration(windowSec) * time.Second
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}
