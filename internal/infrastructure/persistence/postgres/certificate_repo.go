package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/certificate"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE WORKFLOW REPOSITORIES
// Payments, delivery sessions, and validations share the pattern: one row
// per enrollment, optimistic version checks on update.
// ══════════════════════════════════════════════════════════════════════════════

// ─────────────────────────────────────────────────────────────────────────────
// Payment repository
// ─────────────────────────────────────────────────────────────────────────────

// PaymentRepository implements certificate.PaymentRepository for PostgreSQL.
type PaymentRepository struct {
	conn *Connection
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(conn *Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

// Create creates a new payment.
func (r *PaymentRepository) Create(ctx context.Context, p *certificate.Payment) error {
	query := `
		INSERT INTO certificate_payments (
			id, enrollment_id, amount, external_ref, proof_kind, proof_locator,
			status, attempt_count, verifier_id, verified_at, rejection_reason,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	proofKind, proofLocator := artifactColumns(p.Proof)

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.EnrollmentID,
		p.Amount,
		p.ExternalRef,
		proofKind,
		proofLocator,
		string(p.Status),
		p.AttemptCount,
		nullableID(p.VerifierID),
		p.VerifiedAt,
		p.RejectionReason,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("payment", "Create", shared.ErrAlreadyExists,
				"payment already exists for this enrollment").WithEntity(p.EnrollmentID, "")
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID returns a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*certificate.Payment, error) {
	return r.getPayment(ctx, "id = $1", id)
}

// GetByEnrollment returns the payment of an enrollment.
func (r *PaymentRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (*certificate.Payment, error) {
	return r.getPayment(ctx, "enrollment_id = $1", enrollmentID)
}

func (r *PaymentRepository) getPayment(ctx context.Context, where string, arg interface{}) (*certificate.Payment, error) {
	query := `
		SELECT id, enrollment_id, amount, external_ref, proof_kind, proof_locator,
			   status, attempt_count, verifier_id, verified_at, rejection_reason,
			   version, created_at, updated_at
		FROM certificate_payments
		WHERE ` + where

	var (
		p            certificate.Payment
		proofKind    *string
		proofLocator *string
		status       string
		verifierID   *string
	)

	err := r.conn.QueryRow(ctx, query, arg).Scan(
		&p.ID,
		&p.EnrollmentID,
		&p.Amount,
		&p.ExternalRef,
		&proofKind,
		&proofLocator,
		&status,
		&p.AttemptCount,
		&verifierID,
		&p.VerifiedAt,
		&p.RejectionReason,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPaymentNotFound.WithEntity(fmt.Sprintf("%v", arg), "")
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	p.Status = certificate.PaymentStatus(status)
	p.Proof = artifactFromColumns(proofKind, proofLocator)
	if verifierID != nil {
		p.VerifierID = *verifierID
	}

	return &p, nil
}

// Update saves changes with an optimistic version check.
func (r *PaymentRepository) Update(ctx context.Context, p *certificate.Payment) error {
	query := `
		UPDATE certificate_payments SET
			external_ref = $1,
			proof_kind = $2,
			proof_locator = $3,
			status = $4,
			attempt_count = $5,
			verifier_id = $6,
			verified_at = $7,
			rejection_reason = $8,
			version = version + 1,
			updated_at = $9
		WHERE id = $10 AND version = $11
	`

	proofKind, proofLocator := artifactColumns(p.Proof)

	tag, err := r.conn.Exec(ctx, query,
		p.ExternalRef,
		proofKind,
		proofLocator,
		string(p.Status),
		p.AttemptCount,
		nullableID(p.VerifierID),
		p.VerifiedAt,
		p.RejectionReason,
		p.UpdatedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("payment", "Update", shared.ErrOptimisticLock,
			"payment was modified concurrently", nil).WithEntity(p.ID, string(p.Status))
	}

	p.Version++
	return nil
}

// HasVerified returns true when the enrollment already has a verified
// payment.
func (r *PaymentRepository) HasVerified(ctx context.Context, enrollmentID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM certificate_payments
			WHERE enrollment_id = $1 AND status = 'verified'
		)
	`, enrollmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check verified payment: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session repository
// ─────────────────────────────────────────────────────────────────────────────

// SessionRepository implements certificate.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// Create creates a new delivery session.
func (r *SessionRepository) Create(ctx context.Context, s *certificate.Session) error {
	query := `
		INSERT INTO certificate_sessions (
			id, enrollment_id, payment_id, started_at, expected_delivery_at,
			status, certificate_number, artifact_kind, artifact_locator,
			uploader_id, completed_at, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	artKind, artLocator := artifactColumns(s.Artifact)

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.EnrollmentID,
		s.PaymentID,
		s.StartedAt,
		s.ExpectedDeliveryAt,
		string(s.Status),
		s.CertificateNumber,
		artKind,
		artLocator,
		nullableID(s.UploaderID),
		s.CompletedAt,
		s.Version,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("certsession", "Create", shared.ErrAlreadyExists,
				"session already exists for this enrollment").WithEntity(s.EnrollmentID, "")
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*certificate.Session, error) {
	sessions, err := r.querySessions(ctx, "WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, shared.ErrSessionNotFound.WithEntity(id, "")
	}
	return sessions[0], nil
}

// GetByEnrollment returns the session of an enrollment.
func (r *SessionRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (*certificate.Session, error) {
	sessions, err := r.querySessions(ctx, "WHERE enrollment_id = $1", enrollmentID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, shared.ErrSessionNotFound.WithEntity(enrollmentID, "")
	}
	return sessions[0], nil
}

// Update saves changes with an optimistic version check.
func (r *SessionRepository) Update(ctx context.Context, s *certificate.Session) error {
	query := `
		UPDATE certificate_sessions SET
			status = $1,
			certificate_number = $2,
			artifact_kind = $3,
			artifact_locator = $4,
			uploader_id = $5,
			completed_at = $6,
			version = version + 1,
			updated_at = $7
		WHERE id = $8 AND version = $9
	`

	artKind, artLocator := artifactColumns(s.Artifact)

	tag, err := r.conn.Exec(ctx, query,
		string(s.Status),
		s.CertificateNumber,
		artKind,
		artLocator,
		nullableID(s.UploaderID),
		s.CompletedAt,
		s.UpdatedAt,
		s.ID,
		s.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("certsession", "Update", shared.ErrOptimisticLock,
			"session was modified concurrently", nil).WithEntity(s.ID, string(s.Status))
	}

	s.Version++
	return nil
}

// FindOverdue returns sessions still pending past their expected delivery
// time. Used by the admin reminder job.
func (r *SessionRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*certificate.Session, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.querySessions(ctx,
		"WHERE status = 'pending_upload' AND expected_delivery_at <= $1 ORDER BY expected_delivery_at LIMIT $2",
		now, limit)
}

// NextCertificateNumber returns the next value of the global monotonic
// certificate number sequence. The database sequence keeps allocation
// atomic under concurrent uploads from multiple processes.
func (r *SessionRepository) NextCertificateNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT nextval('certificate_number_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to advance certificate sequence: %w", err)
	}
	return n, nil
}

func (r *SessionRepository) querySessions(ctx context.Context, tail string, args ...interface{}) ([]*certificate.Session, error) {
	query := `
		SELECT id, enrollment_id, payment_id, started_at, expected_delivery_at,
			   status, certificate_number, artifact_kind, artifact_locator,
			   uploader_id, completed_at, version, created_at, updated_at
		FROM certificate_sessions ` + tail

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var result []*certificate.Session
	for rows.Next() {
		var (
			s          certificate.Session
			status     string
			artKind    *string
			artLocator *string
			uploaderID *string
		)
		if err := rows.Scan(
			&s.ID,
			&s.EnrollmentID,
			&s.PaymentID,
			&s.StartedAt,
			&s.ExpectedDeliveryAt,
			&status,
			&s.CertificateNumber,
			&artKind,
			&artLocator,
			&uploaderID,
			&s.CompletedAt,
			&s.Version,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.Status = certificate.SessionStatus(status)
		s.Artifact = artifactFromColumns(artKind, artLocator)
		if uploaderID != nil {
			s.UploaderID = *uploaderID
		}
		result = append(result, &s)
	}

	return result, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation repository
// ─────────────────────────────────────────────────────────────────────────────

// ValidationRepository implements certificate.ValidationRepository for
// PostgreSQL.
type ValidationRepository struct {
	conn *Connection
}

// NewValidationRepository creates a new ValidationRepository.
func NewValidationRepository(conn *Connection) *ValidationRepository {
	return &ValidationRepository{conn: conn}
}

// Upsert creates or overwrites the enrollment's validation (latest wins).
func (r *ValidationRepository) Upsert(ctx context.Context, v *certificate.Validation) error {
	query := `
		INSERT INTO certificate_validations (
			id, enrollment_id, certificate_number, artifact_kind, artifact_locator,
			submitted_at, status, reviewer_id, reviewer_message, reviewed_at, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (enrollment_id) DO UPDATE SET
			certificate_number = EXCLUDED.certificate_number,
			artifact_kind = EXCLUDED.artifact_kind,
			artifact_locator = EXCLUDED.artifact_locator,
			submitted_at = EXCLUDED.submitted_at,
			status = EXCLUDED.status,
			reviewer_id = EXCLUDED.reviewer_id,
			reviewer_message = EXCLUDED.reviewer_message,
			reviewed_at = EXCLUDED.reviewed_at,
			version = certificate_validations.version + 1,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		v.ID,
		v.EnrollmentID,
		v.CertificateNumber,
		string(v.Artifact.Kind),
		v.Artifact.Locator,
		v.SubmittedAt,
		string(v.Status),
		nullableID(v.ReviewerID),
		v.ReviewerMessage,
		v.ReviewedAt,
		v.Version,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert validation: %w", err)
	}
	return nil
}

// GetByID returns a validation by ID.
func (r *ValidationRepository) GetByID(ctx context.Context, id string) (*certificate.Validation, error) {
	return r.getValidation(ctx, "id = $1", id)
}

// GetByEnrollment returns the validation of an enrollment.
func (r *ValidationRepository) GetByEnrollment(ctx context.Context, enrollmentID string) (*certificate.Validation, error) {
	return r.getValidation(ctx, "enrollment_id = $1", enrollmentID)
}

func (r *ValidationRepository) getValidation(ctx context.Context, where string, arg interface{}) (*certificate.Validation, error) {
	query := `
		SELECT id, enrollment_id, certificate_number, artifact_kind, artifact_locator,
			   submitted_at, status, reviewer_id, reviewer_message, reviewed_at,
			   version, created_at, updated_at
		FROM certificate_validations
		WHERE ` + where

	var (
		v          certificate.Validation
		artKind    string
		status     string
		reviewerID *string
	)

	err := r.conn.QueryRow(ctx, query, arg).Scan(
		&v.ID,
		&v.EnrollmentID,
		&v.CertificateNumber,
		&artKind,
		&v.Artifact.Locator,
		&v.SubmittedAt,
		&status,
		&reviewerID,
		&v.ReviewerMessage,
		&v.ReviewedAt,
		&v.Version,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrValidationNotFound.WithEntity(fmt.Sprintf("%v", arg), "")
		}
		return nil, fmt.Errorf("failed to get validation: %w", err)
	}

	v.Artifact.Kind = submission.ArtifactKind(artKind)
	v.Status = certificate.ValidationStatus(status)
	if reviewerID != nil {
		v.ReviewerID = *reviewerID
	}

	return &v, nil
}

// Update saves changes with an optimistic version check.
func (r *ValidationRepository) Update(ctx context.Context, v *certificate.Validation) error {
	query := `
		UPDATE certificate_validations SET
			certificate_number = $1,
			artifact_kind = $2,
			artifact_locator = $3,
			submitted_at = $4,
			status = $5,
			reviewer_id = $6,
			reviewer_message = $7,
			reviewed_at = $8,
			version = version + 1,
			updated_at = $9
		WHERE id = $10 AND version = $11
	`

	tag, err := r.conn.Exec(ctx, query,
		v.CertificateNumber,
		string(v.Artifact.Kind),
		v.Artifact.Locator,
		v.SubmittedAt,
		string(v.Status),
		nullableID(v.ReviewerID),
		v.ReviewerMessage,
		v.ReviewedAt,
		v.UpdatedAt,
		v.ID,
		v.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update validation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.WrapError("certvalidation", "Update", shared.ErrOptimisticLock,
			"validation was modified concurrently", nil).WithEntity(v.ID, string(v.Status))
	}

	v.Version++
	return nil
}

// HasApproved returns true when the enrollment has an approved validation.
func (r *ValidationRepository) HasApproved(ctx context.Context, enrollmentID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM certificate_validations
			WHERE enrollment_id = $1 AND status = 'approved'
		)
	`, enrollmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check approved validation: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Column helpers
// ─────────────────────────────────────────────────────────────────────────────

func artifactColumns(a *submission.Artifact) (kind, locator *string) {
	if a == nil {
		return nil, nil
	}
	k := string(a.Kind)
	l := a.Locator
	return &k, &l
}

func artifactFromColumns(kind, locator *string) *submission.Artifact {
	if kind == nil || locator == nil {
		return nil
	}
	return &submission.Artifact{
		Kind:    submission.ArtifactKind(*kind),
		Locator: *locator,
	}
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
