package submission

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции CRUD для сдач.
type Repository interface {
	// Create создаёт новую сдачу.
	Create(ctx context.Context, s *Submission) error

	// GetByID возвращает сдачу по ID.
	// Возвращает shared.ErrSubmissionNotFound, если не найдена.
	GetByID(ctx context.Context, id string) (*Submission, error)

	// Update сохраняет изменения с проверкой версии (оптимистическая
	// блокировка). Возвращает shared.ErrOptimisticLock при конкурентном
	// изменении.
	Update(ctx context.Context, s *Submission) error

	// GetByEnrollment возвращает всю историю сдач зачисления,
	// отсортированную по времени сдачи по возрастанию.
	GetByEnrollment(ctx context.Context, enrollmentID string) ([]*Submission, error)

	// GetByEnrollmentAndTask возвращает все попытки по одной задаче,
	// отсортированные по номеру попытки по возрастанию.
	GetByEnrollmentAndTask(ctx context.Context, enrollmentID string, taskNumber int) ([]*Submission, error)

	// GetLatestAttempt возвращает последнюю попытку по задаче.
	// Возвращает shared.ErrSubmissionNotFound, если попыток не было.
	GetLatestAttempt(ctx context.Context, enrollmentID string, taskNumber int) (*Submission, error)

	// HasOpenSubmission возвращает true, если по задаче есть сдача,
	// ожидающая ревью.
	HasOpenSubmission(ctx context.Context, enrollmentID string, taskNumber int) (bool, error)

	// CountByEnrollment возвращает число сдач зачисления.
	CountByEnrollment(ctx context.Context, enrollmentID string) (int, error)
}
