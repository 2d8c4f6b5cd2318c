// Package notification содержит доменную модель уведомлений стажёрам и
// администраторам. Уведомления информируют о ключевых переходах воркфлоу:
// открытие задачи, результат ревью, завершение программы и этапы сертификата.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// NotificationID представляет уникальный идентификатор уведомления.
type NotificationID string

// IsValid проверяет, что ID не пустой.
func (id NotificationID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID.
func (id NotificationID) String() string {
	return string(id)
}

// RecipientID представляет идентификатор получателя уведомления.
type RecipientID string

// IsValid проверяет, что ID получателя не пустой.
func (id RecipientID) IsValid() bool {
	return len(id) > 0
}

// String возвращает строковое представление ID получателя.
func (id RecipientID) String() string {
	return string(id)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// NotificationType определяет тип уведомления.
type NotificationType string

const (
	// NotificationTypeTaskUnlocked - следующая задача открыта для сдачи.
	NotificationTypeTaskUnlocked NotificationType = "task_unlocked"

	// NotificationTypeUnlockScheduled - назначено время открытия задачи.
	NotificationTypeUnlockScheduled NotificationType = "unlock_scheduled"

	// NotificationTypeSubmissionApproved - сдача одобрена ревьюером.
	NotificationTypeSubmissionApproved NotificationType = "submission_approved"

	// NotificationTypeSubmissionRejected - сдача отклонена, доступна пересдача.
	NotificationTypeSubmissionRejected NotificationType = "submission_rejected"

	// NotificationTypeAttemptsExhausted - лимит попыток исчерпан.
	NotificationTypeAttemptsExhausted NotificationType = "attempts_exhausted"

	// NotificationTypeEnrollmentCompleted - программа завершена,
	// итоговый балл зафиксирован.
	NotificationTypeEnrollmentCompleted NotificationType = "enrollment_completed"

	// NotificationTypePaymentVerified - оплата подтверждена, сертификат
	// будет доставлен в течение SLA.
	NotificationTypePaymentVerified NotificationType = "payment_verified"

	// NotificationTypePaymentRejected - доказательство оплаты отклонено.
	NotificationTypePaymentRejected NotificationType = "payment_rejected"

	// NotificationTypeCertificateIssued - сертификат загружен и доступен.
	NotificationTypeCertificateIssued NotificationType = "certificate_issued"

	// NotificationTypeDeliveryOverdue - напоминание администраторам:
	// SLA доставки сертификата истёк.
	NotificationTypeDeliveryOverdue NotificationType = "delivery_overdue"

	// NotificationTypeValidationReviewed - подтверждение сертификата
	// проверено администратором.
	NotificationTypeValidationReviewed NotificationType = "validation_reviewed"
)

// IsValid проверяет корректность типа уведомления.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeTaskUnlocked, NotificationTypeUnlockScheduled,
		NotificationTypeSubmissionApproved, NotificationTypeSubmissionRejected,
		NotificationTypeAttemptsExhausted, NotificationTypeEnrollmentCompleted,
		NotificationTypePaymentVerified, NotificationTypePaymentRejected,
		NotificationTypeCertificateIssued, NotificationTypeDeliveryOverdue,
		NotificationTypeValidationReviewed:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PRIORITY
// ══════════════════════════════════════════════════════════════════════════════

// Priority определяет приоритет доставки уведомления.
type Priority int

const (
	// PriorityLow - информационное уведомление.
	PriorityLow Priority = iota
	// PriorityNormal - стандартный приоритет.
	PriorityNormal
	// PriorityHigh - важное уведомление (результат ревью, сертификат).
	PriorityHigh
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - одно уведомление одному получателю.
type Notification struct {
	// ID - внутренний уникальный идентификатор.
	ID NotificationID

	// Type - тип уведомления.
	Type NotificationType

	// RecipientID - получатель (стажёр или администратор).
	RecipientID RecipientID

	// Message - текст уведомления.
	Message string

	// Priority - приоритет доставки.
	Priority Priority

	// Metadata - дополнительные данные (ID сущностей, номера задач).
	Metadata map[string]string

	// CreatedAt - время создания.
	CreatedAt time.Time
}

var (
	// ErrInvalidNotification - некорректные параметры уведомления.
	ErrInvalidNotification = errors.New("invalid notification")
)

// NewNotification создаёт новое уведомление.
func NewNotification(id NotificationID, t NotificationType, recipient RecipientID, message string, priority Priority, now time.Time) (*Notification, error) {
	if !id.IsValid() {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidNotification)
	}
	if !t.IsValid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, t)
	}
	if !recipient.IsValid() {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidNotification)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidNotification)
	}

	return &Notification{
		ID:          id,
		Type:        t,
		RecipientID: recipient,
		Message:     message,
		Priority:    priority,
		Metadata:    make(map[string]string),
		CreatedAt:   now,
	}, nil
}

// SetMetadata добавляет пару ключ-значение в метаданные.
func (n *Notification) SetMetadata(key, value string) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]string)
	}
	n.Metadata[key] = value
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDER
// ══════════════════════════════════════════════════════════════════════════════

// SendResult описывает результат отправки уведомления.
type SendResult struct {
	// Success - доставлено ли уведомление.
	Success bool

	// Error - причина неудачи. nil при успехе.
	Error error

	// SentAt - время отправки.
	SentAt time.Time
}

// NotificationSender отправляет уведомления во внешний канал доставки.
// Реализация находится в infrastructure/service.
type NotificationSender interface {
	Send(ctx context.Context, n *Notification) SendResult
}
