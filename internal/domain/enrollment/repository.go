package enrollment

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// ListOptions задаёт пагинацию для списков.
type ListOptions struct {
	Limit  int
	Offset int
}

// LeaderboardRow - строка лидерборда по текущим баллам.
type LeaderboardRow struct {
	EnrollmentID string
	InternID     string
	ProgramID    string
	Score        float64
	Completed    bool
}

// Repository определяет операции CRUD для зачислений.
type Repository interface {
	// Create создаёт новое зачисление.
	// Возвращает shared.ErrEnrollmentExists, если стажёр уже зачислен
	// на эту программу.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID возвращает зачисление по ID.
	// Возвращает shared.ErrEnrollmentNotFound, если не найдено.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// Update сохраняет изменения с проверкой версии (оптимистическая
	// блокировка). Возвращает shared.ErrOptimisticLock, если запись
	// была изменена конкурентно.
	Update(ctx context.Context, e *Enrollment) error

	// GetByProgram возвращает зачисления программы.
	GetByProgram(ctx context.Context, programID string, opts ListOptions) ([]*Enrollment, error)

	// TopByRunningScore возвращает строки лидерборда, отсортированные по
	// текущему баллу по убыванию. programID == "" означает все программы.
	TopByRunningScore(ctx context.Context, programID string, limit int) ([]LeaderboardRow, error)
}
