package query

import (
	"context"
	"errors"
	"time"

	"github.com/internforge/internship-hub/internal/application/command"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

// ══════════════════════════════════════════════════════════════════════════════
// IS TASK UNLOCKED QUERY
// Проверяет доступность задачи для зачисления. Делегирует разблокировку
// планировщику: чтение переоценивает срок и фиксирует переход, поэтому
// ответ корректен даже если фоновая задача ещё не прошлась по записи.
// ══════════════════════════════════════════════════════════════════════════════

// IsTaskUnlockedQuery содержит параметры запроса.
type IsTaskUnlockedQuery struct {
	// EnrollmentID - зачисление.
	EnrollmentID string

	// TaskNumber - порядковый номер задачи.
	TaskNumber int
}

// Validate проверяет корректность параметров запроса.
func (q *IsTaskUnlockedQuery) Validate() error {
	if q.EnrollmentID == "" {
		return errors.New("enrollment id is required")
	}
	if q.TaskNumber <= 0 {
		return errors.New("task number must be positive")
	}
	return nil
}

// IsTaskUnlockedResult содержит результат запроса.
type IsTaskUnlockedResult struct {
	// EnrollmentID - зачисление.
	EnrollmentID string `json:"enrollment_id"`

	// TaskNumber - порядковый номер задачи.
	TaskNumber int `json:"task_number"`

	// Unlocked - доступна ли задача сейчас.
	Unlocked bool `json:"unlocked"`

	// UnlockEligibleAt - когда задача станет (или стала) доступной.
	// nil, если разблокировка ещё не запланирована.
	UnlockEligibleAt *time.Time `json:"unlock_eligible_at,omitempty"`

	// UnlockedAt - фактический момент разблокировки. nil до перехода.
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// IsTaskUnlockedHandler обрабатывает запросы доступности задачи.
type IsTaskUnlockedHandler struct {
	enrollmentRepo enrollment.Repository
	unlockRepo     unlock.Repository
	scheduler      *command.UnlockScheduler
}

// NewIsTaskUnlockedHandler создаёт новый обработчик.
func NewIsTaskUnlockedHandler(
	enrollmentRepo enrollment.Repository,
	unlockRepo unlock.Repository,
	scheduler *command.UnlockScheduler,
) *IsTaskUnlockedHandler {
	return &IsTaskUnlockedHandler{
		enrollmentRepo: enrollmentRepo,
		unlockRepo:     unlockRepo,
		scheduler:      scheduler,
	}
}

// Handle выполняет запрос доступности задачи.
func (h *IsTaskUnlockedHandler) Handle(ctx context.Context, query IsTaskUnlockedQuery) (*IsTaskUnlockedResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "IsTaskUnlocked", shared.ErrValidation, err.Error(), err)
	}

	// Зачисление должно существовать: запрос по чужому ID - NotFound,
	// а не молчаливое "заблокировано".
	if _, err := h.enrollmentRepo.GetByID(ctx, query.EnrollmentID); err != nil {
		return nil, err
	}

	unlocked, err := h.scheduler.IsUnlocked(ctx, query.EnrollmentID, query.TaskNumber)
	if err != nil {
		return nil, err
	}

	result := &IsTaskUnlockedResult{
		EnrollmentID: query.EnrollmentID,
		TaskNumber:   query.TaskNumber,
		Unlocked:     unlocked,
	}

	rec, err := h.unlockRepo.Get(ctx, query.EnrollmentID, query.TaskNumber)
	switch {
	case err == nil:
		t := rec.UnlockEligibleAt
		result.UnlockEligibleAt = &t
		result.UnlockedAt = rec.UnlockedAt
	case shared.IsNotFound(err):
		// Первая задача разблокирована всегда, даже без записи.
	default:
		return nil, err
	}

	return result, nil
}
