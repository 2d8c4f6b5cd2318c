package saga

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/domain/certificate"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

var baseTime = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory repositories
// ─────────────────────────────────────────────────────────────────────────────

type memEnrollmentRepo struct {
	items map[string]*enrollment.Enrollment
}

func (r *memEnrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	r.items[e.ID] = e
	return nil
}

func (r *memEnrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	e, ok := r.items[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound.WithEntity(id, "")
	}
	return e.Clone(), nil
}

func (r *memEnrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	r.items[e.ID] = e.Clone()
	return nil
}

func (r *memEnrollmentRepo) GetByProgram(_ context.Context, _ string, _ enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	return nil, nil
}

func (r *memEnrollmentRepo) TopByRunningScore(_ context.Context, _ string, _ int) ([]enrollment.LeaderboardRow, error) {
	return nil, nil
}

type memPaymentRepo struct {
	mu    sync.Mutex
	items map[string]*certificate.Payment
}

func (r *memPaymentRepo) Create(_ context.Context, p *certificate.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *p
	r.items[p.ID] = &clone
	return nil
}

func (r *memPaymentRepo) GetByID(_ context.Context, id string) (*certificate.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, shared.ErrPaymentNotFound.WithEntity(id, "")
	}
	clone := *p
	return &clone, nil
}

func (r *memPaymentRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.EnrollmentID == enrollmentID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, shared.ErrPaymentNotFound.WithEntity(enrollmentID, "")
}

func (r *memPaymentRepo) Update(_ context.Context, p *certificate.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[p.ID]; !ok {
		return shared.ErrPaymentNotFound.WithEntity(p.ID, "")
	}
	p.Version++
	clone := *p
	r.items[p.ID] = &clone
	return nil
}

func (r *memPaymentRepo) HasVerified(_ context.Context, enrollmentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.EnrollmentID == enrollmentID && p.Status == certificate.PaymentVerified {
			return true, nil
		}
	}
	return false, nil
}

type memSessionRepo struct {
	mu    sync.Mutex
	items map[string]*certificate.Session
	seq   int64
}

func (r *memSessionRepo) Create(_ context.Context, s *certificate.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.items[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*certificate.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, shared.ErrSessionNotFound.WithEntity(id, "")
	}
	clone := *s
	return &clone, nil
}

func (r *memSessionRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, shared.ErrSessionNotFound.WithEntity(enrollmentID, "")
}

func (r *memSessionRepo) Update(_ context.Context, s *certificate.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return shared.ErrSessionNotFound.WithEntity(s.ID, "")
	}
	s.Version++
	clone := *s
	r.items[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) FindOverdue(_ context.Context, now time.Time, limit int) ([]*certificate.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*certificate.Session
	for _, s := range r.items {
		if s.Status != certificate.SessionCompleted && now.After(s.ExpectedDeliveryAt) {
			clone := *s
			out = append(out, &clone)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memSessionRepo) NextCertificateNumber(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

type memValidationRepo struct {
	mu    sync.Mutex
	items map[string]*certificate.Validation
}

func (r *memValidationRepo) Upsert(_ context.Context, v *certificate.Validation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *v
	r.items[v.ID] = &clone
	return nil
}

func (r *memValidationRepo) GetByID(_ context.Context, id string) (*certificate.Validation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[id]
	if !ok {
		return nil, shared.ErrValidationNotFound.WithEntity(id, "")
	}
	clone := *v
	return &clone, nil
}

func (r *memValidationRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Validation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.items {
		if v.EnrollmentID == enrollmentID {
			clone := *v
			return &clone, nil
		}
	}
	return nil, shared.ErrValidationNotFound.WithEntity(enrollmentID, "")
}

func (r *memValidationRepo) Update(_ context.Context, v *certificate.Validation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[v.ID]; !ok {
		return shared.ErrValidationNotFound.WithEntity(v.ID, "")
	}
	v.Version++
	clone := *v
	r.items[v.ID] = &clone
	return nil
}

func (r *memValidationRepo) HasApproved(_ context.Context, enrollmentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.items {
		if v.EnrollmentID == enrollmentID && v.Status == certificate.ValidationApproved {
			return true, nil
		}
	}
	return false, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count(t shared.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixture
// ─────────────────────────────────────────────────────────────────────────────

type sagaFixture struct {
	enrollments *memEnrollmentRepo
	payments    *memPaymentRepo
	sessions    *memSessionRepo
	validations *memValidationRepo
	publisher   *capturingPublisher
	clock       *shared.FixedClock
	saga        *CertificateFlowSaga
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()

	f := &sagaFixture{
		enrollments: &memEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)},
		payments:    &memPaymentRepo{items: make(map[string]*certificate.Payment)},
		sessions:    &memSessionRepo{items: make(map[string]*certificate.Session)},
		validations: &memValidationRepo{items: make(map[string]*certificate.Validation)},
		publisher:   &capturingPublisher{},
		clock:       shared.NewFixedClock(baseTime),
	}
	f.saga = NewCertificateFlowSaga(
		f.enrollments, f.payments, f.sessions, f.validations,
		f.publisher, f.clock, DefaultCertificateFlowConfig(),
	)
	return f
}

// addEnrollment seeds a finalized enrollment.
func (f *sagaFixture) addEnrollment(t *testing.T, id string, completed, eligible bool) {
	t.Helper()

	enr, err := enrollment.NewEnrollment(id, "intern-"+id, "prog-1", baseTime.Add(-30*24*time.Hour))
	require.NoError(t, err)
	if completed {
		score := 80.0
		if !eligible {
			score = 40.0
		}
		require.NoError(t, enr.Finalize(score, eligible, baseTime.Add(-time.Hour)))
	}
	require.NoError(t, f.enrollments.Create(context.Background(), enr))
}

// verifiedSession walks an enrollment through payment to a pending session.
func (f *sagaFixture) verifiedSession(t *testing.T, enrollmentID string) *certificate.Session {
	t.Helper()
	ctx := context.Background()

	p, err := f.saga.InitiatePayment(ctx, enrollmentID, 50)
	require.NoError(t, err)
	_, err = f.saga.SubmitPaymentProof(ctx, p.ID, fileArtifact("receipt.pdf"), "bank-ref-1")
	require.NoError(t, err)
	sess, err := f.saga.VerifyPayment(ctx, p.ID, "admin-1")
	require.NoError(t, err)
	return sess
}

func fileArtifact(name string) submission.Artifact {
	return submission.Artifact{Kind: submission.ArtifactFile, Locator: "https://files.example/" + name}
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestInitiatePayment(t *testing.T) {
	t.Run("requires a completed eligible enrollment", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-progress", false, false)
		f.addEnrollment(t, "enr-failed", true, false)

		_, err := f.saga.InitiatePayment(context.Background(), "enr-progress", 50)
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))

		_, err = f.saga.InitiatePayment(context.Background(), "enr-failed", 50)
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))
	})

	t.Run("creates a pending payment once", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)

		p, err := f.saga.InitiatePayment(context.Background(), "enr-1", 50)
		require.NoError(t, err)
		assert.Equal(t, certificate.PaymentPending, p.Status)
		assert.Equal(t, 0, p.AttemptCount)

		_, err = f.saga.InitiatePayment(context.Background(), "enr-1", 50)
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})
}

func TestPaymentVerification(t *testing.T) {
	t.Run("verify creates exactly one session with the delivery deadline", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)

		sess := f.verifiedSession(t, "enr-1")
		assert.Equal(t, certificate.SessionPendingUpload, sess.Status)
		assert.Equal(t, baseTime.Add(certificate.DeliverySLA), sess.ExpectedDeliveryAt)
		assert.Equal(t, 1, f.publisher.count(shared.EventPaymentVerified))
	})

	t.Run("double verify is a conflict", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)

		p, err := f.saga.InitiatePayment(context.Background(), "enr-1", 50)
		require.NoError(t, err)
		_, err = f.saga.SubmitPaymentProof(context.Background(), p.ID, fileArtifact("receipt.pdf"), "")
		require.NoError(t, err)
		_, err = f.saga.VerifyPayment(context.Background(), p.ID, "admin-1")
		require.NoError(t, err)

		_, err = f.saga.VerifyPayment(context.Background(), p.ID, "admin-2")
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("rejected proof can be resubmitted and then verified", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)
		ctx := context.Background()

		p, err := f.saga.InitiatePayment(ctx, "enr-1", 50)
		require.NoError(t, err)
		_, err = f.saga.SubmitPaymentProof(ctx, p.ID, fileArtifact("blurry.jpg"), "")
		require.NoError(t, err)

		rejected, err := f.saga.RejectPayment(ctx, p.ID, "admin-1", "illegible receipt")
		require.NoError(t, err)
		assert.Equal(t, certificate.PaymentRejected, rejected.Status)
		assert.Equal(t, 1, f.publisher.count(shared.EventPaymentRejected))

		resubmitted, err := f.saga.SubmitPaymentProof(ctx, p.ID, fileArtifact("clear.pdf"), "bank-ref-2")
		require.NoError(t, err)
		assert.Equal(t, certificate.PaymentPending, resubmitted.Status)
		assert.Equal(t, 2, resubmitted.AttemptCount)

		_, err = f.saga.VerifyPayment(ctx, p.ID, "admin-1")
		require.NoError(t, err)
	})
}

func TestUploadCertificate(t *testing.T) {
	t.Run("assigns sequential prefixed numbers", func(t *testing.T) {
		f := newSagaFixture(t)
		ctx := context.Background()

		for i, enrID := range []string{"enr-1", "enr-2"} {
			f.addEnrollment(t, enrID, true, true)
			sess := f.verifiedSession(t, enrID)

			done, err := f.saga.UploadCertificate(ctx, sess.ID, fileArtifact("cert.pdf"), "admin-1")
			require.NoError(t, err)
			assert.Equal(t, certificate.SessionCompleted, done.Status)
			assert.Equal(t, fmt.Sprintf("IFH-CERT-%04d", i+1), done.CertificateNumber)
		}
		assert.Equal(t, 2, f.publisher.count(shared.EventCertificateIssued))
	})

	t.Run("double upload is a conflict", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)
		sess := f.verifiedSession(t, "enr-1")
		ctx := context.Background()

		_, err := f.saga.UploadCertificate(ctx, sess.ID, fileArtifact("cert.pdf"), "admin-1")
		require.NoError(t, err)

		_, err = f.saga.UploadCertificate(ctx, sess.ID, fileArtifact("cert2.pdf"), "admin-1")
		require.Error(t, err)
		assert.True(t, shared.IsInvalidTransition(err))
	})

	t.Run("concurrent uploads get pairwise distinct numbers", func(t *testing.T) {
		f := newSagaFixture(t)
		ctx := context.Background()

		const uploads = 8
		sessionIDs := make([]string, 0, uploads)
		for i := 0; i < uploads; i++ {
			enrID := fmt.Sprintf("enr-%d", i+1)
			f.addEnrollment(t, enrID, true, true)
			sessionIDs = append(sessionIDs, f.verifiedSession(t, enrID).ID)
		}

		var wg sync.WaitGroup
		results := make(chan *certificate.Session, uploads)
		for _, sessID := range sessionIDs {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				done, err := f.saga.UploadCertificate(ctx, id, fileArtifact("cert.pdf"), "admin-1")
				assert.NoError(t, err)
				results <- done
			}(sessID)
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool, uploads)
		for done := range results {
			require.NotNil(t, done)
			assert.Regexp(t, `^IFH-CERT-\d{4}$`, done.CertificateNumber)
			assert.False(t, seen[done.CertificateNumber],
				"certificate number %s issued twice", done.CertificateNumber)
			seen[done.CertificateNumber] = true
		}
		assert.Len(t, seen, uploads)
	})

	t.Run("upload past the SLA is accepted as late delivery", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)
		sess := f.verifiedSession(t, "enr-1")

		f.clock.Advance(certificate.DeliverySLA + 6*time.Hour)
		done, err := f.saga.UploadCertificate(context.Background(), sess.ID, fileArtifact("cert.pdf"), "admin-1")
		require.NoError(t, err)
		assert.Equal(t, certificate.SessionCompleted, done.Status)
		require.NotNil(t, done.CompletedAt)
		assert.True(t, done.CompletedAt.After(done.ExpectedDeliveryAt))
	})
}

func TestCertificateValidation(t *testing.T) {
	completedCertificate := func(t *testing.T) (*sagaFixture, string) {
		t.Helper()
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)
		sess := f.verifiedSession(t, "enr-1")
		done, err := f.saga.UploadCertificate(context.Background(), sess.ID, fileArtifact("cert.pdf"), "admin-1")
		require.NoError(t, err)
		return f, done.CertificateNumber
	}

	t.Run("requires a completed session", func(t *testing.T) {
		f := newSagaFixture(t)
		f.addEnrollment(t, "enr-1", true, true)

		_, err := f.saga.SubmitValidation(context.Background(), "enr-1", "IFH-CERT-0001", fileArtifact("scan.pdf"))
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))
	})

	t.Run("approval grants premium access", func(t *testing.T) {
		f, number := completedCertificate(t)
		ctx := context.Background()

		v, err := f.saga.SubmitValidation(ctx, "enr-1", number, fileArtifact("scan.pdf"))
		require.NoError(t, err)
		assert.Equal(t, certificate.ValidationPending, v.Status)

		has, err := f.saga.HasPremiumAccess(ctx, "enr-1")
		require.NoError(t, err)
		assert.False(t, has)

		_, err = f.saga.ReviewValidation(ctx, v.ID, true, "admin-1", "matches the registry")
		require.NoError(t, err)

		has, err = f.saga.HasPremiumAccess(ctx, "enr-1")
		require.NoError(t, err)
		assert.True(t, has)
		assert.Equal(t, 1, f.publisher.count(shared.EventCertValidationReviewed))
	})

	t.Run("rejection allows resubmission, approval is terminal", func(t *testing.T) {
		f, number := completedCertificate(t)
		ctx := context.Background()

		v, err := f.saga.SubmitValidation(ctx, "enr-1", number, fileArtifact("scan.pdf"))
		require.NoError(t, err)

		_, err = f.saga.ReviewValidation(ctx, v.ID, false, "admin-1", "number does not match")
		require.NoError(t, err)

		resubmitted, err := f.saga.SubmitValidation(ctx, "enr-1", number, fileArtifact("better-scan.pdf"))
		require.NoError(t, err)
		assert.Equal(t, v.ID, resubmitted.ID)
		assert.Equal(t, certificate.ValidationPending, resubmitted.Status)

		_, err = f.saga.ReviewValidation(ctx, v.ID, true, "admin-1", "ok")
		require.NoError(t, err)

		// Approval is permanent: no further review or resubmission.
		_, err = f.saga.ReviewValidation(ctx, v.ID, false, "admin-2", "second thoughts")
		require.Error(t, err)
		assert.True(t, shared.IsInvalidTransition(err))

		_, err = f.saga.SubmitValidation(ctx, "enr-1", number, fileArtifact("late.pdf"))
		require.Error(t, err)
		assert.True(t, shared.IsInvalidTransition(err))
	})
}
