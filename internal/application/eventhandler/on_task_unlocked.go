package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON TASK UNLOCKED HANDLER
// Уведомляет стажёра об открытии задачи и помечает запись разблокировки
// как отправленную, чтобы фоновая задача не продублировала уведомление.
// ═══════════════════════════════════════════════════════════════════════════

// TaskUnlockedHandler обрабатывает событие открытия задачи.
type TaskUnlockedHandler struct {
	unlockRepo unlock.Repository
	sender     notification.NotificationSender
	clock      shared.Clock
	logger     *slog.Logger
}

// NewTaskUnlockedHandler создаёт новый обработчик.
func NewTaskUnlockedHandler(
	unlockRepo unlock.Repository,
	sender notification.NotificationSender,
	clock shared.Clock,
	logger *slog.Logger,
) *TaskUnlockedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskUnlockedHandler{
		unlockRepo: unlockRepo,
		sender:     sender,
		clock:      clock,
		logger:     logger.With("handler", "on_task_unlocked"),
	}
}

// Name реализует интерфейс shared.EventHandler.
func (h *TaskUnlockedHandler) Name() string {
	return "on_task_unlocked"
}

// Handle обрабатывает событие открытия задачи.
// Реализует интерфейс shared.EventHandler.
func (h *TaskUnlockedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	e, ok := event.(shared.TaskUnlockedEvent)
	if !ok {
		h.logger.Warn("received non-TaskUnlockedEvent",
			"event_type", event.EventType(),
		)
		return nil
	}

	rec, err := h.unlockRepo.Get(ctx, e.EnrollmentID, e.TaskNumber)
	if err != nil {
		return fmt.Errorf("load unlock record: %w", err)
	}
	if rec.Notified {
		// Ленивое чтение и фоновая задача могут обогнать друг друга.
		return nil
	}

	if h.sender != nil {
		notif, err := notification.NewNotification(
			notification.NotificationID(uuid.NewString()),
			notification.NotificationTypeTaskUnlocked,
			notification.RecipientID(e.InternID),
			fmt.Sprintf("Задача %d открыта и доступна для сдачи", e.TaskNumber),
			notification.PriorityNormal,
			h.clock.Now(),
		)
		if err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		notif.SetMetadata("enrollment_id", e.EnrollmentID)
		notif.SetMetadata("task_number", fmt.Sprintf("%d", e.TaskNumber))

		if result := h.sender.Send(ctx, notif); !result.Success {
			return fmt.Errorf("send notification: %w", result.Error)
		}
	}

	rec.MarkNotified(h.clock.Now())
	if err := h.unlockRepo.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist notified flag: %w", err)
	}

	h.logger.Info("task unlocked notification sent",
		"enrollment_id", e.EnrollmentID,
		"task_number", e.TaskNumber,
	)
	return nil
}
