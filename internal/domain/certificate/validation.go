package certificate

import (
	"errors"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE VALIDATION
// Повторная подача выданного сертификата самим стажёром для доступа к платным
// задачам. Конечный автомат: PENDING → {APPROVED, REJECTED};
// REJECTED → PENDING (пересдача, действует последняя подача на зачисление).
// APPROVED терминален и навсегда открывает платные задачи. Это ручная
// проверка на подделку: ядро фиксирует вердикт ревьюера и само подлинность
// не проверяет.
// ══════════════════════════════════════════════════════════════════════════════

// ValidationStatus определяет состояние подтверждения сертификата.
type ValidationStatus string

const (
	// ValidationPending - подача ожидает ревью.
	ValidationPending ValidationStatus = "pending"
	// ValidationApproved - сертификат подтверждён. Терминальное состояние.
	ValidationApproved ValidationStatus = "approved"
	// ValidationRejected - подача отклонена, допускается пересдача.
	ValidationRejected ValidationStatus = "rejected"
)

// IsValid проверяет, что статус корректен.
func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationPending, ValidationApproved, ValidationRejected:
		return true
	default:
		return false
	}
}

// Validation - подача сертификата на подтверждение. Одна запись на
// зачисление; повторная подача перезаписывает предыдущую (latest wins).
type Validation struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// EnrollmentID - зачисление стажёра.
	EnrollmentID string

	// CertificateNumber - номер сертификата, указанный стажёром.
	CertificateNumber string

	// Artifact - приложенный артефакт сертификата.
	Artifact submission.Artifact

	// SubmittedAt - время подачи.
	SubmittedAt time.Time

	// Status - текущее состояние.
	Status ValidationStatus

	// ReviewerID - кто провёл ревью.
	ReviewerID string

	// ReviewerMessage - сообщение ревьюера. Очищается при пересдаче.
	ReviewerMessage string

	// ReviewedAt - время ревью. nil до ревью.
	ReviewedAt *time.Time

	// Version - счётчик версий для оптимистической блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

var (
	// ErrValidationTerminal - подтверждение уже одобрено.
	ErrValidationTerminal = errors.New("certificate validation already approved")

	// ErrValidationNotPending - ревью допустимо только из PENDING.
	ErrValidationNotPending = errors.New("certificate validation is not pending")
)

// NewValidation создаёт подачу сертификата в состоянии PENDING.
func NewValidation(id, enrollmentID, certificateNumber string, artifact submission.Artifact, now time.Time) (*Validation, error) {
	if id == "" {
		return nil, errors.New("validation id is required")
	}
	if enrollmentID == "" {
		return nil, errors.New("enrollment id is required")
	}
	if certificateNumber == "" {
		return nil, ErrEmptyCertNumber
	}
	if !artifact.IsValid() {
		return nil, submission.ErrInvalidArtifact
	}

	return &Validation{
		ID:                id,
		EnrollmentID:      enrollmentID,
		CertificateNumber: certificateNumber,
		Artifact:          artifact,
		SubmittedAt:       now,
		Status:            ValidationPending,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Approve одобряет подтверждение. Терминальный переход: доступ к платным
// задачам открывается навсегда.
func (v *Validation) Approve(reviewerID, message string, now time.Time) error {
	if v.Status == ValidationApproved {
		return ErrValidationTerminal
	}
	if v.Status != ValidationPending {
		return ErrValidationNotPending
	}

	v.Status = ValidationApproved
	v.ReviewerID = reviewerID
	v.ReviewerMessage = message
	t := now
	v.ReviewedAt = &t
	v.UpdatedAt = now
	return nil
}

// Reject отклоняет подачу с сообщением ревьюера.
func (v *Validation) Reject(reviewerID, message string, now time.Time) error {
	if v.Status == ValidationApproved {
		return ErrValidationTerminal
	}
	if v.Status != ValidationPending {
		return ErrValidationNotPending
	}

	v.Status = ValidationRejected
	v.ReviewerID = reviewerID
	v.ReviewerMessage = message
	t := now
	v.ReviewedAt = &t
	v.UpdatedAt = now
	return nil
}

// Resubmit перезаписывает подачу новыми данными и возвращает её в PENDING.
// Допустимо из REJECTED (пересдача) и из PENDING (действует последняя подача).
// Сообщение ревьюера очищается.
func (v *Validation) Resubmit(certificateNumber string, artifact submission.Artifact, now time.Time) error {
	if v.Status == ValidationApproved {
		return ErrValidationTerminal
	}
	if certificateNumber == "" {
		return ErrEmptyCertNumber
	}
	if !artifact.IsValid() {
		return submission.ErrInvalidArtifact
	}

	v.Status = ValidationPending
	v.CertificateNumber = certificateNumber
	v.Artifact = artifact
	v.SubmittedAt = now
	v.ReviewerID = ""
	v.ReviewerMessage = ""
	v.ReviewedAt = nil
	v.UpdatedAt = now
	return nil
}

// GrantsPremiumAccess возвращает true, если подтверждение открывает
// платные задачи.
func (v *Validation) GrantsPremiumAccess() bool {
	return v.Status == ValidationApproved
}

// String возвращает строковое представление для логирования.
func (v *Validation) String() string {
	return fmt.Sprintf("CertValidation{ID: %s, Enrollment: %s, Number: %s, Status: %s}",
		v.ID, v.EnrollmentID, v.CertificateNumber, v.Status)
}
