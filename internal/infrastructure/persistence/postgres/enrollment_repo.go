package postgres

import (
	"context"
	"fmt"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	conn *Connection
}

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

// Create creates a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		INSERT INTO enrollments (
			id, intern_id, program_id, running_score, final_score,
			completed, completed_at, certificate_eligible, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		e.InternID,
		e.ProgramID,
		e.RunningScore,
		e.FinalScore,
		e.Completed,
		e.CompletedAt,
		e.CertificateEligible,
		e.Version,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrEnrollmentExists.WithEntity(e.ID, "")
		}
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// GetByID returns an enrollment by ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	query := `
		SELECT id, intern_id, program_id, running_score, final_score,
			   completed, completed_at, certificate_eligible, version,
			   created_at, updated_at
		FROM enrollments
		WHERE id = $1
	`

	var e enrollment.Enrollment
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.InternID,
		&e.ProgramID,
		&e.RunningScore,
		&e.FinalScore,
		&e.Completed,
		&e.CompletedAt,
		&e.CertificateEligible,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound.WithEntity(id, "")
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	return &e, nil
}

// Update saves changes with an optimistic version check. The version column
// is incremented in the same statement, so a concurrent writer loses the
// race and observes shared.ErrOptimisticLock.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			running_score = $1,
			final_score = $2,
			completed = $3,
			completed_at = $4,
			certificate_eligible = $5,
			version = version + 1,
			updated_at = $6
		WHERE id = $7 AND version = $8
	`

	tag, err := r.conn.Exec(ctx, query,
		e.RunningScore,
		e.FinalScore,
		e.Completed,
		e.CompletedAt,
		e.CertificateEligible,
		e.UpdatedAt,
		e.ID,
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("enrollment", "Update", shared.ErrOptimisticLock,
			"enrollment was modified concurrently", nil).WithEntity(e.ID, "")
	}

	e.Version++
	return nil
}

// GetByProgram returns enrollments of a program.
func (r *EnrollmentRepository) GetByProgram(ctx context.Context, programID string, opts enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	query := `
		SELECT id, intern_id, program_id, running_score, final_score,
			   completed, completed_at, certificate_eligible, version,
			   created_at, updated_at
		FROM enrollments
		WHERE program_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, programID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollments by program: %w", err)
	}
	defer rows.Close()

	var result []*enrollment.Enrollment
	for rows.Next() {
		var e enrollment.Enrollment
		if err := rows.Scan(
			&e.ID,
			&e.InternID,
			&e.ProgramID,
			&e.RunningScore,
			&e.FinalScore,
			&e.Completed,
			&e.CompletedAt,
			&e.CertificateEligible,
			&e.Version,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		result = append(result, &e)
	}

	return result, rows.Err()
}

// TopByRunningScore returns leaderboard rows ordered by running score
// descending. An empty programID means all programs.
func (r *EnrollmentRepository) TopByRunningScore(ctx context.Context, programID string, limit int) ([]enrollment.LeaderboardRow, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, intern_id, program_id, running_score, completed
		FROM enrollments
		WHERE ($1 = '' OR program_id::text = $1)
		ORDER BY running_score DESC, created_at
		LIMIT $2
	`

	rows, err := r.conn.Query(ctx, query, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var result []enrollment.LeaderboardRow
	for rows.Next() {
		var row enrollment.LeaderboardRow
		if err := rows.Scan(
			&row.EnrollmentID,
			&row.InternID,
			&row.ProgramID,
			&row.Score,
			&row.Completed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		result = append(result, row)
	}

	return result, rows.Err()
}
