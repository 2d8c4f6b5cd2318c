// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/certificate"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE FLOW SAGA
// Four linked state machines layered on the completion evaluator's output:
//
//	Payment → CertificateSession → CertificateValidation → premium access
//
// Each human-reviewed step carries a reject/resubmit loop. The saga owns the
// cross-machine invariants: payments only for eligible enrollments, exactly
// one session per verified payment, validation only against a completed
// session.
// ══════════════════════════════════════════════════════════════════════════════

// CertificateFlowConfig contains configuration for the saga.
type CertificateFlowConfig struct {
	// NumberPrefix is the fixed prefix of issued certificate numbers.
	NumberPrefix string

	// NumberDigits is the minimum width of the zero-padded ordinal.
	NumberDigits int
}

// DefaultCertificateFlowConfig returns sensible defaults.
func DefaultCertificateFlowConfig() CertificateFlowConfig {
	return CertificateFlowConfig{
		NumberPrefix: "IFH-CERT-",
		NumberDigits: 4,
	}
}

// CertificateFlowSaga orchestrates the payment, delivery, and validation
// stages of the certificate life cycle.
type CertificateFlowSaga struct {
	enrollmentRepo enrollment.Repository
	paymentRepo    certificate.PaymentRepository
	sessionRepo    certificate.SessionRepository
	validationRepo certificate.ValidationRepository
	eventPublisher shared.EventPublisher
	clock          shared.Clock
	config         CertificateFlowConfig
}

// NewCertificateFlowSaga creates a new CertificateFlowSaga.
func NewCertificateFlowSaga(
	enrollmentRepo enrollment.Repository,
	paymentRepo certificate.PaymentRepository,
	sessionRepo certificate.SessionRepository,
	validationRepo certificate.ValidationRepository,
	eventPublisher shared.EventPublisher,
	clock shared.Clock,
	config CertificateFlowConfig,
) *CertificateFlowSaga {
	if config.NumberPrefix == "" {
		config = DefaultCertificateFlowConfig()
	}
	return &CertificateFlowSaga{
		enrollmentRepo: enrollmentRepo,
		paymentRepo:    paymentRepo,
		sessionRepo:    sessionRepo,
		validationRepo: validationRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
		config:         config,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Stage 1: Payment
// ─────────────────────────────────────────────────────────────────────────────

// InitiatePayment creates the PENDING certificate-fee payment for an
// enrollment. Rejected when the enrollment is not certificate-eligible or
// a payment already exists (resubmit proof on the existing record instead).
func (s *CertificateFlowSaga) InitiatePayment(ctx context.Context, enrollmentID string, amount float64) (*certificate.Payment, error) {
	enr, err := s.enrollmentRepo.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !enr.Completed || !enr.CertificateEligible {
		return nil, shared.ErrEnrollmentNotEligible.WithEntity(enr.ID, s.enrollmentState(enr))
	}

	existing, err := s.paymentRepo.GetByEnrollment(ctx, enrollmentID)
	switch {
	case err == nil:
		if existing.Status == certificate.PaymentVerified {
			return nil, shared.ErrVerifiedPaymentOpen.WithEntity(existing.ID, string(existing.Status))
		}
		return nil, shared.NewDomainError("payment", "Initiate", shared.ErrAlreadyExists,
			"payment already initiated, submit proof on the existing record").
			WithEntity(existing.ID, string(existing.Status))
	case shared.IsNotFound(err):
		// No payment yet - proceed.
	default:
		return nil, err
	}

	p, err := certificate.NewPayment(uuid.NewString(), enrollmentID, amount, s.clock.Now())
	if err != nil {
		return nil, shared.WrapError("payment", "Initiate", shared.ErrValidation, "invalid payment", err)
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SubmitPaymentProof attaches evidence to a pending payment or resubmits a
// rejected one, moving it back to PENDING with the attempt count incremented.
func (s *CertificateFlowSaga) SubmitPaymentProof(ctx context.Context, paymentID string, proof submission.Artifact, externalRef string) (*certificate.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	switch p.Status {
	case certificate.PaymentPending:
		err = p.AttachProof(proof, externalRef, now)
	case certificate.PaymentRejected:
		err = p.Resubmit(proof, externalRef, now)
	default:
		return nil, shared.ErrPaymentVerified.WithEntity(p.ID, string(p.Status))
	}
	if err != nil {
		return nil, shared.WrapError("payment", "SubmitProof", shared.ErrInvalidTransition, "proof rejected", err).
			WithEntity(p.ID, string(p.Status))
	}

	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// VerifyPayment marks the payment VERIFIED and - exactly once - creates the
// certificate session. A duplicate verify observes a conflict: either the
// terminal-state check here or the optimistic version check in the store.
func (s *CertificateFlowSaga) VerifyPayment(ctx context.Context, paymentID, verifierID string) (*certificate.Session, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	enr, err := s.enrollmentRepo.GetByID(ctx, p.EnrollmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := p.Verify(verifierID, now); err != nil {
		if errors.Is(err, certificate.ErrPaymentTerminal) {
			return nil, shared.ErrPaymentVerified.WithEntity(p.ID, string(p.Status))
		}
		return nil, shared.WrapError("payment", "Verify", shared.ErrInvalidTransition, "verify failed", err).
			WithEntity(p.ID, string(p.Status))
	}
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	sess, err := certificate.NewSession(uuid.NewString(), p.EnrollmentID, p.ID, now)
	if err != nil {
		return nil, shared.WrapError("certsession", "Create", shared.ErrValidation, "invalid session", err)
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, err
	}

	_ = s.eventPublisher.Publish(shared.NewPaymentVerifiedEvent(
		p.ID, p.EnrollmentID, enr.InternID, verifierID, sess.ExpectedDeliveryAt,
	))

	return sess, nil
}

// RejectPayment rejects the payment proof with a reason. The intern may
// resubmit proof afterwards - rejection is never a dead end.
func (s *CertificateFlowSaga) RejectPayment(ctx context.Context, paymentID, verifierID, reason string) (*certificate.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	enr, err := s.enrollmentRepo.GetByID(ctx, p.EnrollmentID)
	if err != nil {
		return nil, err
	}

	if err := p.Reject(verifierID, reason, s.clock.Now()); err != nil {
		if errors.Is(err, certificate.ErrPaymentTerminal) {
			return nil, shared.ErrPaymentVerified.WithEntity(p.ID, string(p.Status))
		}
		return nil, shared.WrapError("payment", "Reject", shared.ErrInvalidTransition, "reject failed", err).
			WithEntity(p.ID, string(p.Status))
	}
	if err := s.paymentRepo.Update(ctx, p); err != nil {
		return nil, err
	}

	_ = s.eventPublisher.Publish(shared.NewPaymentRejectedEvent(p.ID, p.EnrollmentID, enr.InternID, reason))

	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Stage 2: Certificate delivery
// ─────────────────────────────────────────────────────────────────────────────

// UploadCertificate completes a pending session: assigns the next certificate
// number from the storage-backed monotonic sequence and attaches the signed
// artifact. Upload past the delivery SLA is accepted as late delivery, not an
// error. A double upload is a conflict.
func (s *CertificateFlowSaga) UploadCertificate(ctx context.Context, sessionID string, artifact submission.Artifact, uploaderID string) (*certificate.Session, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == certificate.SessionCompleted {
		return nil, shared.ErrSessionCompleted.WithEntity(sess.ID, string(sess.Status))
	}

	enr, err := s.enrollmentRepo.GetByID(ctx, sess.EnrollmentID)
	if err != nil {
		return nil, err
	}

	seq, err := s.sessionRepo.NextCertificateNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("certificate_flow: failed to allocate certificate number: %w", err)
	}
	number := fmt.Sprintf("%s%0*d", s.config.NumberPrefix, s.config.NumberDigits, seq)

	now := s.clock.Now()
	if err := sess.Complete(number, artifact, uploaderID, now); err != nil {
		if errors.Is(err, certificate.ErrSessionDone) {
			return nil, shared.ErrSessionCompleted.WithEntity(sess.ID, string(sess.Status))
		}
		return nil, shared.WrapError("certsession", "Upload", shared.ErrValidation, "upload rejected", err)
	}
	if err := s.sessionRepo.Update(ctx, sess); err != nil {
		return nil, err
	}

	_ = s.eventPublisher.Publish(shared.NewCertificateIssuedEvent(
		sess.ID, sess.EnrollmentID, enr.InternID, number, sess.IsLate(now),
	))

	return sess, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Stage 3: Certificate validation (premium-task gate)
// ─────────────────────────────────────────────────────────────────────────────

// SubmitValidation records the intern's certificate for the anti-forgery
// check gating premium tasks. Requires a completed session. Latest submission
// wins: a pending or rejected record is superseded in place.
func (s *CertificateFlowSaga) SubmitValidation(ctx context.Context, enrollmentID, certificateNumber string, artifact submission.Artifact) (*certificate.Validation, error) {
	sess, err := s.sessionRepo.GetByEnrollment(ctx, enrollmentID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrNoCompletedCert.WithEntity(enrollmentID, "no certificate session")
		}
		return nil, err
	}
	if sess.Status != certificate.SessionCompleted {
		return nil, shared.ErrNoCompletedCert.WithEntity(enrollmentID, string(sess.Status))
	}

	now := s.clock.Now()

	existing, err := s.validationRepo.GetByEnrollment(ctx, enrollmentID)
	switch {
	case err == nil:
		if err := existing.Resubmit(certificateNumber, artifact, now); err != nil {
			if errors.Is(err, certificate.ErrValidationTerminal) {
				return nil, shared.ErrValidationApproved.WithEntity(existing.ID, string(existing.Status))
			}
			return nil, shared.WrapError("certvalidation", "Submit", shared.ErrValidation, "resubmit rejected", err)
		}
		if err := s.validationRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	case shared.IsNotFound(err):
		// First submission.
	default:
		return nil, err
	}

	v, err := certificate.NewValidation(uuid.NewString(), enrollmentID, certificateNumber, artifact, now)
	if err != nil {
		return nil, shared.WrapError("certvalidation", "Submit", shared.ErrValidation, "invalid validation", err)
	}
	if err := s.validationRepo.Upsert(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ReviewValidation records the reviewer's verdict on a pending validation.
// Approval is terminal and grants premium-task access permanently; rejection
// carries the reviewer's message and allows resubmission.
func (s *CertificateFlowSaga) ReviewValidation(ctx context.Context, validationID string, approve bool, reviewerID, message string) (*certificate.Validation, error) {
	v, err := s.validationRepo.GetByID(ctx, validationID)
	if err != nil {
		return nil, err
	}

	enr, err := s.enrollmentRepo.GetByID(ctx, v.EnrollmentID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if approve {
		err = v.Approve(reviewerID, message, now)
	} else {
		err = v.Reject(reviewerID, message, now)
	}
	if err != nil {
		if errors.Is(err, certificate.ErrValidationTerminal) {
			return nil, shared.ErrValidationApproved.WithEntity(v.ID, string(v.Status))
		}
		return nil, shared.ErrValidationNotPending.WithEntity(v.ID, string(v.Status))
	}

	if err := s.validationRepo.Update(ctx, v); err != nil {
		return nil, err
	}

	_ = s.eventPublisher.Publish(shared.NewCertValidationReviewedEvent(
		v.ID, v.EnrollmentID, enr.InternID, approve, message,
	))

	return v, nil
}

// HasPremiumAccess reports whether the enrollment holds an approved
// certificate validation.
func (s *CertificateFlowSaga) HasPremiumAccess(ctx context.Context, enrollmentID string) (bool, error) {
	return s.validationRepo.HasApproved(ctx, enrollmentID)
}

func (s *CertificateFlowSaga) enrollmentState(enr *enrollment.Enrollment) string {
	if !enr.Completed {
		return "in progress"
	}
	return "completed, not eligible"
}
