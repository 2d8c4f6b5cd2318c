package program

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции чтения программ.
// Программы неизменяемы для ядра, поэтому интерфейс только читающий.
type Repository interface {
	// GetByID возвращает программу вместе со всеми задачами.
	// Возвращает shared.ErrProgramNotFound, если программа не найдена.
	GetByID(ctx context.Context, id string) (*Program, error)

	// List возвращает все программы (без задач, для списков в API).
	List(ctx context.Context) ([]*Program, error)
}
