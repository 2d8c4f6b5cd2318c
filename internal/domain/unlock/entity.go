// Package unlock содержит доменную модель отложенного открытия задач.
// Задача становится доступной через WaitAfterApproval после одобрения
// предыдущей. Флаг Unlocked - производный: каждое чтение лениво сверяет
// время и фиксирует переход, поэтому корректность не зависит от того,
// сработал ли фоновый таймер.
package unlock

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: TASK UNLOCK
// ══════════════════════════════════════════════════════════════════════════════

// TaskUnlock - одна запись на пару (зачисление, задача), начиная со второй
// задачи программы. Для первой задачи запись создаётся сразу открытой
// при старте зачисления.
type TaskUnlock struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// EnrollmentID - зачисление.
	EnrollmentID string

	// TaskID - задача программы.
	TaskID string

	// TaskNumber - порядковый номер задачи (денормализован).
	TaskNumber int

	// UnlockEligibleAt - момент, с которого задача может быть открыта.
	UnlockEligibleAt time.Time

	// Unlocked - задача открыта для сдачи.
	Unlocked bool

	// UnlockedAt - когда переход был зафиксирован. nil, пока закрыта.
	UnlockedAt *time.Time

	// Notified - уведомление "задача открыта" уже отправлено
	// (защита от повторов при совместной работе свипа и ленивых чтений).
	Notified bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotDue - время открытия ещё не наступило.
	ErrNotDue = errors.New("unlock is not due yet")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewScheduled создаёт запланированную запись: задача закрыта до eligibleAt.
func NewScheduled(id, enrollmentID, taskID string, taskNumber int, eligibleAt, now time.Time) (*TaskUnlock, error) {
	if id == "" {
		return nil, errors.New("unlock id is required")
	}
	if enrollmentID == "" {
		return nil, errors.New("enrollment id is required")
	}
	if taskID == "" {
		return nil, errors.New("task id is required")
	}
	if taskNumber <= 0 {
		return nil, errors.New("task number must be positive")
	}

	return &TaskUnlock{
		ID:               id,
		EnrollmentID:     enrollmentID,
		TaskID:           taskID,
		TaskNumber:       taskNumber,
		UnlockEligibleAt: eligibleAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewPreUnlocked создаёт запись, открытую с момента создания.
// Используется для первой задачи программы при старте зачисления.
func NewPreUnlocked(id, enrollmentID, taskID string, taskNumber int, now time.Time) (*TaskUnlock, error) {
	u, err := NewScheduled(id, enrollmentID, taskID, taskNumber, now, now)
	if err != nil {
		return nil, err
	}
	u.Unlocked = true
	t := now
	u.UnlockedAt = &t
	u.Notified = true
	return u, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsDue возвращает true, если время открытия наступило.
func (u *TaskUnlock) IsDue(now time.Time) bool {
	return !now.Before(u.UnlockEligibleAt)
}

// Flip фиксирует переход в открытое состояние, если время наступило.
// Идемпотентен: повторный вызов на уже открытой записи - no-op, не ошибка.
// Возвращает true, если состояние изменилось и запись нужно сохранить.
func (u *TaskUnlock) Flip(now time.Time) (changed bool, err error) {
	if u.Unlocked {
		return false, nil
	}
	if !u.IsDue(now) {
		return false, ErrNotDue
	}

	u.Unlocked = true
	t := now
	u.UnlockedAt = &t
	u.UpdatedAt = now
	return true, nil
}

// MarkNotified помечает, что уведомление об открытии отправлено.
func (u *TaskUnlock) MarkNotified(now time.Time) {
	u.Notified = true
	u.UpdatedAt = now
}

// String возвращает строковое представление для логирования.
func (u *TaskUnlock) String() string {
	return fmt.Sprintf("TaskUnlock{Enrollment: %s, Task: %d, EligibleAt: %s, Unlocked: %v}",
		u.EnrollmentID, u.TaskNumber, u.UnlockEligibleAt.Format(time.RFC3339), u.Unlocked)
}
