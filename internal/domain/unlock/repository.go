package unlock

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализация находится в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями открытия задач.
type Repository interface {
	// Upsert создаёт или перезаписывает запись для пары
	// (зачисление, задача). Повторное планирование той же пары
	// перезаписывает время открытия.
	Upsert(ctx context.Context, u *TaskUnlock) error

	// Get возвращает запись для пары (зачисление, задача).
	// Возвращает shared.ErrUnlockNotFound, если записи нет.
	Get(ctx context.Context, enrollmentID string, taskNumber int) (*TaskUnlock, error)

	// Save сохраняет изменения существующей записи (фиксация перехода,
	// отметка об уведомлении).
	Save(ctx context.Context, u *TaskUnlock) error

	// FindDue возвращает записи, у которых время открытия наступило,
	// но переход ещё не зафиксирован. Используется фоновым свипом.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*TaskUnlock, error)

	// GetByEnrollment возвращает все записи зачисления по номеру задачи
	// по возрастанию.
	GetByEnrollment(ctx context.Context, enrollmentID string) ([]*TaskUnlock, error)
}
