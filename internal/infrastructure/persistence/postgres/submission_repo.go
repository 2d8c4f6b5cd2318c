package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionRepository implements submission.Repository for PostgreSQL.
type SubmissionRepository struct {
	conn *Connection
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(conn *Connection) *SubmissionRepository {
	return &SubmissionRepository{conn: conn}
}

const submissionColumns = `
	id, enrollment_id, task_id, task_number, attempt_number,
	artifact_kind, artifact_locator, submitted_at, due_at,
	late, late_by_seconds, status, exhausted, score, feedback,
	reviewer_id, reviewed_at, version, created_at, updated_at
`

// Create creates a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, s *submission.Submission) error {
	query := `
		INSERT INTO submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
				$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	var reviewerID *string
	if s.ReviewerID != "" {
		reviewerID = &s.ReviewerID
	}

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.EnrollmentID,
		s.TaskID,
		s.TaskNumber,
		s.AttemptNumber,
		string(s.Artifact.Kind),
		s.Artifact.Locator,
		s.SubmittedAt,
		s.DueAt,
		s.Late,
		int64(s.LateBy.Seconds()),
		string(s.Status),
		s.Exhausted,
		s.Score,
		s.Feedback,
		reviewerID,
		s.ReviewedAt,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrOpenSubmissionExists.WithEntity(s.ID, string(s.Status))
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// GetByID returns a submission by ID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*submission.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`

	s, err := r.scanSubmission(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubmissionNotFound.WithEntity(id, "")
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// Update saves changes with an optimistic version check.
func (r *SubmissionRepository) Update(ctx context.Context, s *submission.Submission) error {
	query := `
		UPDATE submissions SET
			status = $1,
			exhausted = $2,
			score = $3,
			feedback = $4,
			reviewer_id = $5,
			reviewed_at = $6,
			version = version + 1,
			updated_at = $7
		WHERE id = $8 AND version = $9
	`

	var reviewerID *string
	if s.ReviewerID != "" {
		reviewerID = &s.ReviewerID
	}

	tag, err := r.conn.Exec(ctx, query,
		string(s.Status),
		s.Exhausted,
		s.Score,
		s.Feedback,
		reviewerID,
		s.ReviewedAt,
		s.UpdatedAt,
		s.ID,
		s.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("submission", "Update", shared.ErrOptimisticLock,
			"submission was modified concurrently", nil).WithEntity(s.ID, string(s.Status))
	}

	s.Version++
	return nil
}

// GetByEnrollment returns the full submission history of an enrollment,
// ordered by submit time ascending.
func (r *SubmissionRepository) GetByEnrollment(ctx context.Context, enrollmentID string) ([]*submission.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE enrollment_id = $1
		ORDER BY submitted_at, attempt_number
	`
	return r.querySubmissions(ctx, query, enrollmentID)
}

// GetByEnrollmentAndTask returns all attempts for one task, ordered by
// attempt number ascending.
func (r *SubmissionRepository) GetByEnrollmentAndTask(ctx context.Context, enrollmentID string, taskNumber int) ([]*submission.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE enrollment_id = $1 AND task_number = $2
		ORDER BY attempt_number
	`
	return r.querySubmissions(ctx, query, enrollmentID, taskNumber)
}

// GetLatestAttempt returns the most recent attempt for a task.
func (r *SubmissionRepository) GetLatestAttempt(ctx context.Context, enrollmentID string, taskNumber int) (*submission.Submission, error) {
	query := `
		SELECT ` + submissionColumns + `
		FROM submissions
		WHERE enrollment_id = $1 AND task_number = $2
		ORDER BY attempt_number DESC
		LIMIT 1
	`

	s, err := r.scanSubmission(r.conn.QueryRow(ctx, query, enrollmentID, taskNumber))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubmissionNotFound.WithEntity(enrollmentID, fmt.Sprintf("task %d", taskNumber))
		}
		return nil, fmt.Errorf("failed to get latest attempt: %w", err)
	}
	return s, nil
}

// HasOpenSubmission returns true when the task has a submission awaiting
// review.
func (r *SubmissionRepository) HasOpenSubmission(ctx context.Context, enrollmentID string, taskNumber int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM submissions
			WHERE enrollment_id = $1 AND task_number = $2
			  AND status IN ('submitted', 'resubmitted')
		)
	`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, enrollmentID, taskNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check open submissions: %w", err)
	}
	return exists, nil
}

// CountByEnrollment returns the number of submissions of an enrollment.
func (r *SubmissionRepository) CountByEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE enrollment_id = $1`,
		enrollmentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *SubmissionRepository) scanSubmission(row rowScanner) (*submission.Submission, error) {
	var (
		s            submission.Submission
		artifactKind string
		lateBySec    int64
		status       string
		reviewerID   *string
	)

	err := row.Scan(
		&s.ID,
		&s.EnrollmentID,
		&s.TaskID,
		&s.TaskNumber,
		&s.AttemptNumber,
		&artifactKind,
		&s.Artifact.Locator,
		&s.SubmittedAt,
		&s.DueAt,
		&s.Late,
		&lateBySec,
		&status,
		&s.Exhausted,
		&s.Score,
		&s.Feedback,
		&reviewerID,
		&s.ReviewedAt,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Artifact.Kind = submission.ArtifactKind(artifactKind)
	s.LateBy = time.Duration(lateBySec) * time.Second
	s.Status = submission.Status(status)
	if reviewerID != nil {
		s.ReviewerID = *reviewerID
	}

	return &s, nil
}

func (r *SubmissionRepository) querySubmissions(ctx context.Context, query string, args ...interface{}) ([]*submission.Submission, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var result []*submission.Submission
	for rows.Next() {
		s, err := r.scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		result = append(result, s)
	}

	return result, rows.Err()
}
