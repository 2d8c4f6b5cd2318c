package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK UNLOCK REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UnlockRepository implements unlock.Repository for PostgreSQL.
type UnlockRepository struct {
	conn *Connection
}

// NewUnlockRepository creates a new UnlockRepository.
func NewUnlockRepository(conn *Connection) *UnlockRepository {
	return &UnlockRepository{conn: conn}
}

// Upsert creates or overwrites the record for an (enrollment, task) pair.
// Rescheduling overwrites the eligibility time and resets the derived state.
func (r *UnlockRepository) Upsert(ctx context.Context, u *unlock.TaskUnlock) error {
	query := `
		INSERT INTO task_unlocks (
			id, enrollment_id, task_id, task_number, unlock_eligible_at,
			unlocked, unlocked_at, notified, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (enrollment_id, task_number) DO UPDATE SET
			unlock_eligible_at = EXCLUDED.unlock_eligible_at,
			unlocked = EXCLUDED.unlocked,
			unlocked_at = EXCLUDED.unlocked_at,
			notified = EXCLUDED.notified,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		u.ID,
		u.EnrollmentID,
		u.TaskID,
		u.TaskNumber,
		u.UnlockEligibleAt,
		u.Unlocked,
		u.UnlockedAt,
		u.Notified,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert unlock: %w", err)
	}
	return nil
}

// Get returns the record for an (enrollment, task) pair.
func (r *UnlockRepository) Get(ctx context.Context, enrollmentID string, taskNumber int) (*unlock.TaskUnlock, error) {
	query := `
		SELECT id, enrollment_id, task_id, task_number, unlock_eligible_at,
			   unlocked, unlocked_at, notified, created_at, updated_at
		FROM task_unlocks
		WHERE enrollment_id = $1 AND task_number = $2
	`

	var u unlock.TaskUnlock
	err := r.conn.QueryRow(ctx, query, enrollmentID, taskNumber).Scan(
		&u.ID,
		&u.EnrollmentID,
		&u.TaskID,
		&u.TaskNumber,
		&u.UnlockEligibleAt,
		&u.Unlocked,
		&u.UnlockedAt,
		&u.Notified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUnlockNotFound.WithEntity(enrollmentID, fmt.Sprintf("task %d", taskNumber))
		}
		return nil, fmt.Errorf("failed to get unlock: %w", err)
	}

	return &u, nil
}

// Save persists changes of an existing record (the unlocked flip or the
// notified mark). The flip is idempotent, so no version check is needed:
// concurrent writers converge on the same state.
func (r *UnlockRepository) Save(ctx context.Context, u *unlock.TaskUnlock) error {
	query := `
		UPDATE task_unlocks SET
			unlocked = $1,
			unlocked_at = $2,
			notified = $3,
			updated_at = $4
		WHERE id = $5
	`

	tag, err := r.conn.Exec(ctx, query,
		u.Unlocked,
		u.UnlockedAt,
		u.Notified,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save unlock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUnlockNotFound.WithEntity(u.ID, "")
	}
	return nil
}

// FindDue returns records whose eligibility time has passed but whose flip
// is not yet persisted. Used by the background sweep.
func (r *UnlockRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*unlock.TaskUnlock, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, enrollment_id, task_id, task_number, unlock_eligible_at,
			   unlocked, unlocked_at, notified, created_at, updated_at
		FROM task_unlocks
		WHERE NOT unlocked AND unlock_eligible_at <= $1
		ORDER BY unlock_eligible_at
		LIMIT $2
	`

	return r.queryUnlocks(ctx, query, now, limit)
}

// GetByEnrollment returns all records of an enrollment ordered by task
// number ascending.
func (r *UnlockRepository) GetByEnrollment(ctx context.Context, enrollmentID string) ([]*unlock.TaskUnlock, error) {
	query := `
		SELECT id, enrollment_id, task_id, task_number, unlock_eligible_at,
			   unlocked, unlocked_at, notified, created_at, updated_at
		FROM task_unlocks
		WHERE enrollment_id = $1
		ORDER BY task_number
	`

	return r.queryUnlocks(ctx, query, enrollmentID)
}

func (r *UnlockRepository) queryUnlocks(ctx context.Context, query string, args ...interface{}) ([]*unlock.TaskUnlock, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlocks: %w", err)
	}
	defer rows.Close()

	var result []*unlock.TaskUnlock
	for rows.Next() {
		var u unlock.TaskUnlock
		if err := rows.Scan(
			&u.ID,
			&u.EnrollmentID,
			&u.TaskID,
			&u.TaskNumber,
			&u.UnlockEligibleAt,
			&u.Unlocked,
			&u.UnlockedAt,
			&u.Notified,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan unlock row: %w", err)
		}
		result = append(result, &u)
	}

	return result, rows.Err()
}
