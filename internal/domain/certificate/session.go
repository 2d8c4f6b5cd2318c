package certificate

import (
	"errors"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE SESSION
// Отслеживает доставку подписанного сертификата после подтверждения оплаты.
// Конечный автомат: PENDING_UPLOAD → COMPLETED (односторонний переход,
// загрузка - единственное привилегированное действие). Запись не удаляется.
// ══════════════════════════════════════════════════════════════════════════════

// DeliverySLA - операционный ориентир доставки сертификата после
// подтверждения оплаты. Показывается стажёру; загрузка после истечения
// срока принимается как поздняя доставка, а не ошибка.
const DeliverySLA = 24 * time.Hour

// SessionStatus определяет состояние сессии сертификата.
type SessionStatus string

const (
	// SessionPendingUpload - ожидается загрузка сертификата администратором.
	SessionPendingUpload SessionStatus = "pending_upload"
	// SessionCompleted - сертификат загружен. Терминальное состояние.
	SessionCompleted SessionStatus = "completed"
)

// IsValid проверяет, что статус корректен.
func (s SessionStatus) IsValid() bool {
	return s == SessionPendingUpload || s == SessionCompleted
}

// Session - интервал между подтверждением оплаты и доставкой сертификата.
type Session struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// EnrollmentID - зачисление, для которого выпускается сертификат.
	EnrollmentID string

	// PaymentID - подтверждённая оплата, породившая сессию.
	PaymentID string

	// StartedAt - момент подтверждения оплаты.
	StartedAt time.Time

	// ExpectedDeliveryAt - StartedAt + DeliverySLA.
	ExpectedDeliveryAt time.Time

	// Status - текущее состояние.
	Status SessionStatus

	// CertificateNumber - номер сертификата, присваивается при загрузке
	// из монотонной глобально уникальной последовательности.
	CertificateNumber string

	// Artifact - загруженный артефакт сертификата.
	Artifact *submission.Artifact

	// UploaderID - администратор, загрузивший сертификат.
	UploaderID string

	// CompletedAt - время загрузки. nil до загрузки.
	CompletedAt *time.Time

	// Version - счётчик версий для оптимистической блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

var (
	// ErrSessionDone - сертификат уже загружен, повторная загрузка запрещена.
	ErrSessionDone = errors.New("certificate session already completed")

	// ErrEmptyCertNumber - пустой номер сертификата.
	ErrEmptyCertNumber = errors.New("certificate number is required")
)

// NewSession создаёт сессию доставки после подтверждения оплаты.
func NewSession(id, enrollmentID, paymentID string, now time.Time) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	if enrollmentID == "" {
		return nil, errors.New("enrollment id is required")
	}
	if paymentID == "" {
		return nil, errors.New("payment id is required")
	}

	return &Session{
		ID:                 id,
		EnrollmentID:       enrollmentID,
		PaymentID:          paymentID,
		StartedAt:          now,
		ExpectedDeliveryAt: now.Add(DeliverySLA),
		Status:             SessionPendingUpload,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Complete фиксирует загрузку сертификата: присваивает номер и закрывает
// сессию. Повторная загрузка - конфликт.
func (s *Session) Complete(certificateNumber string, artifact submission.Artifact, uploaderID string, now time.Time) error {
	if s.Status == SessionCompleted {
		return ErrSessionDone
	}
	if certificateNumber == "" {
		return ErrEmptyCertNumber
	}
	if !artifact.IsValid() {
		return submission.ErrInvalidArtifact
	}

	s.Status = SessionCompleted
	s.CertificateNumber = certificateNumber
	s.Artifact = &artifact
	s.UploaderID = uploaderID
	t := now
	s.CompletedAt = &t
	s.UpdatedAt = now
	return nil
}

// IsLate возвращает true, если SLA истёк, а сертификат не загружен
// (или был загружен после срока).
func (s *Session) IsLate(now time.Time) bool {
	if s.Status == SessionCompleted && s.CompletedAt != nil {
		return s.CompletedAt.After(s.ExpectedDeliveryAt)
	}
	return now.After(s.ExpectedDeliveryAt)
}

// String возвращает строковое представление для логирования.
func (s *Session) String() string {
	return fmt.Sprintf("CertSession{ID: %s, Enrollment: %s, Status: %s, Number: %s}",
		s.ID, s.EnrollmentID, s.Status, s.CertificateNumber)
}
