// Package certificate содержит доменные модели воркфлоу сертификата:
// оплата сбора, сессия доставки сертификата и подтверждение сертификата
// для доступа к платным задачам. Каждый шаг с ручным ревью допускает
// цикл "отклонить - пересдать".
package certificate

import (
	"errors"
	"fmt"
	"time"

	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// PAYMENT
// Конечный автомат: PENDING → {VERIFIED, REJECTED}; REJECTED → PENDING
// (пересдача доказательства, та же запись, счётчик попыток увеличивается).
// VERIFIED терминален и ровно один раз порождает CertificateSession.
// ══════════════════════════════════════════════════════════════════════════════

// PaymentStatus определяет состояние оплаты.
type PaymentStatus string

const (
	// PaymentPending - оплата заявлена, ожидает проверки.
	PaymentPending PaymentStatus = "pending"
	// PaymentVerified - оплата подтверждена. Терминальное состояние.
	PaymentVerified PaymentStatus = "verified"
	// PaymentRejected - доказательство отклонено, допускается пересдача.
	PaymentRejected PaymentStatus = "rejected"
)

// IsValid проверяет, что статус корректен.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentVerified, PaymentRejected:
		return true
	default:
		return false
	}
}

// Payment - попытка оплаты сбора за сертификат. Одна запись на зачисление,
// переиспользуется при пересдаче доказательства после отклонения.
type Payment struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// EnrollmentID - зачисление, за которое платится сбор.
	EnrollmentID string

	// Amount - сумма оплаты.
	Amount float64

	// ExternalRef - идентификатор транзакции во внешней платёжной системе.
	ExternalRef string

	// Proof - доказательство оплаты (чек, скриншот перевода).
	Proof *submission.Artifact

	// Status - текущее состояние.
	Status PaymentStatus

	// AttemptCount - число поданных доказательств.
	AttemptCount int

	// VerifierID - кто подтвердил или отклонил оплату.
	VerifierID string

	// VerifiedAt - время подтверждения. nil до подтверждения.
	VerifiedAt *time.Time

	// RejectionReason - причина отклонения. Пустая после пересдачи.
	RejectionReason string

	// Version - счётчик версий для оптимистической блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

var (
	// ErrPaymentTerminal - оплата уже подтверждена.
	ErrPaymentTerminal = errors.New("payment is already verified")

	// ErrNoProof - доказательство оплаты не приложено.
	ErrNoProof = errors.New("payment has no proof attached")

	// ErrNotRejected - пересдать можно только отклонённую оплату.
	ErrNotRejected = errors.New("only a rejected payment can be resubmitted")

	// ErrNotPending - действие допустимо только из PENDING.
	ErrNotPending = errors.New("payment is not pending")
)

// NewPayment создаёт заявку на оплату в состоянии PENDING.
func NewPayment(id, enrollmentID string, amount float64, now time.Time) (*Payment, error) {
	if id == "" {
		return nil, errors.New("payment id is required")
	}
	if enrollmentID == "" {
		return nil, errors.New("enrollment id is required")
	}
	if amount < 0 {
		return nil, errors.New("amount cannot be negative")
	}

	return &Payment{
		ID:           id,
		EnrollmentID: enrollmentID,
		Amount:       amount,
		Status:       PaymentPending,
		AttemptCount: 0,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AttachProof прикладывает доказательство оплаты. Статус остаётся PENDING:
// "намерение оплатить" и "доказательство подано" - разные шаги.
func (p *Payment) AttachProof(proof submission.Artifact, externalRef string, now time.Time) error {
	if p.Status != PaymentPending {
		return ErrNotPending
	}
	if !proof.IsValid() {
		return submission.ErrInvalidArtifact
	}

	p.Proof = &proof
	p.ExternalRef = externalRef
	p.AttemptCount++
	p.UpdatedAt = now
	return nil
}

// Verify подтверждает оплату. Допустимо только из PENDING с приложенным
// доказательством. VERIFIED терминален.
func (p *Payment) Verify(verifierID string, now time.Time) error {
	if p.Status == PaymentVerified {
		return ErrPaymentTerminal
	}
	if p.Status != PaymentPending {
		return ErrNotPending
	}
	if p.Proof == nil {
		return ErrNoProof
	}

	p.Status = PaymentVerified
	p.VerifierID = verifierID
	t := now
	p.VerifiedAt = &t
	p.RejectionReason = ""
	p.UpdatedAt = now
	return nil
}

// Reject отклоняет доказательство с указанием причины.
// Отклонение не тупик: стажёр может подать доказательство заново.
func (p *Payment) Reject(verifierID, reason string, now time.Time) error {
	if p.Status == PaymentVerified {
		return ErrPaymentTerminal
	}
	if p.Status != PaymentPending {
		return ErrNotPending
	}

	p.Status = PaymentRejected
	p.VerifierID = verifierID
	p.RejectionReason = reason
	p.UpdatedAt = now
	return nil
}

// Resubmit возвращает отклонённую оплату в PENDING с новым доказательством.
// Та же запись, счётчик попыток увеличивается.
func (p *Payment) Resubmit(proof submission.Artifact, externalRef string, now time.Time) error {
	if p.Status != PaymentRejected {
		return ErrNotRejected
	}
	if !proof.IsValid() {
		return submission.ErrInvalidArtifact
	}

	p.Status = PaymentPending
	p.Proof = &proof
	p.ExternalRef = externalRef
	p.AttemptCount++
	p.RejectionReason = ""
	p.UpdatedAt = now
	return nil
}

// String возвращает строковое представление для логирования.
func (p *Payment) String() string {
	return fmt.Sprintf("Payment{ID: %s, Enrollment: %s, Status: %s, Attempts: %d}",
		p.ID, p.EnrollmentID, p.Status, p.AttemptCount)
}
