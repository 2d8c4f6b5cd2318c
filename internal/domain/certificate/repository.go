package certificate

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// PaymentRepository определяет операции над оплатами.
type PaymentRepository interface {
	// Create создаёт заявку на оплату.
	Create(ctx context.Context, p *Payment) error

	// GetByID возвращает оплату по ID.
	// Возвращает shared.ErrPaymentNotFound, если не найдена.
	GetByID(ctx context.Context, id string) (*Payment, error)

	// GetByEnrollment возвращает оплату зачисления.
	// Возвращает shared.ErrPaymentNotFound, если её нет.
	GetByEnrollment(ctx context.Context, enrollmentID string) (*Payment, error)

	// Update сохраняет изменения с проверкой версии.
	// Возвращает shared.ErrOptimisticLock при конкурентном изменении.
	Update(ctx context.Context, p *Payment) error

	// HasVerified возвращает true, если у зачисления уже есть
	// подтверждённая оплата.
	HasVerified(ctx context.Context, enrollmentID string) (bool, error)
}

// SessionRepository определяет операции над сессиями сертификата.
type SessionRepository interface {
	// Create создаёт сессию доставки.
	Create(ctx context.Context, s *Session) error

	// GetByID возвращает сессию по ID.
	// Возвращает shared.ErrSessionNotFound, если не найдена.
	GetByID(ctx context.Context, id string) (*Session, error)

	// GetByEnrollment возвращает сессию зачисления.
	// Возвращает shared.ErrSessionNotFound, если её нет.
	GetByEnrollment(ctx context.Context, enrollmentID string) (*Session, error)

	// Update сохраняет изменения с проверкой версии.
	Update(ctx context.Context, s *Session) error

	// FindOverdue возвращает сессии, не завершённые к истечению SLA.
	// Используется фоновой задачей напоминаний администраторам.
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*Session, error)

	// NextCertificateNumber возвращает следующее значение монотонной
	// глобально уникальной последовательности номеров сертификатов.
	// Атомарность обязана держаться под конкурентными загрузками
	// из разных процессов.
	NextCertificateNumber(ctx context.Context) (int64, error)
}

// ValidationRepository определяет операции над подтверждениями сертификатов.
type ValidationRepository interface {
	// Upsert создаёт или перезаписывает подачу зачисления (latest wins).
	Upsert(ctx context.Context, v *Validation) error

	// GetByID возвращает подачу по ID.
	// Возвращает shared.ErrValidationNotFound, если не найдена.
	GetByID(ctx context.Context, id string) (*Validation, error)

	// GetByEnrollment возвращает подачу зачисления.
	// Возвращает shared.ErrValidationNotFound, если её нет.
	GetByEnrollment(ctx context.Context, enrollmentID string) (*Validation, error)

	// Update сохраняет изменения с проверкой версии.
	Update(ctx context.Context, v *Validation) error

	// HasApproved возвращает true, если у зачисления есть одобренное
	// подтверждение (доступ к платным задачам).
	HasApproved(ctx context.Context, enrollmentID string) (bool, error)
}
