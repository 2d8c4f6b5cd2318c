// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SUBMISSION REVIEWED HANDLER
// Обрабатывает результат ревью сдачи: одобрение и отклонение.
//
// Ключевые функции:
// 1. Уведомление стажёру о вердикте ревьюера
// 2. Обновление балла в кеше лидерборда при одобрении
// 3. Отдельное предупреждение при исчерпании лимита попыток
// ═══════════════════════════════════════════════════════════════════════════

// submissionReviewedDeps группирует зависимости обработчика.
type submissionReviewedDeps struct {
	cache  enrollment.LeaderboardCache
	sender notification.NotificationSender
	clock  shared.Clock
	logger *slog.Logger
}

// SubmissionReviewedHandler обрабатывает события ревью сдачи.
type SubmissionReviewedHandler struct {
	deps submissionReviewedDeps
}

// NewSubmissionReviewedHandler создаёт новый обработчик.
func NewSubmissionReviewedHandler(
	cache enrollment.LeaderboardCache,
	sender notification.NotificationSender,
	clock shared.Clock,
	logger *slog.Logger,
) *SubmissionReviewedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionReviewedHandler{
		deps: submissionReviewedDeps{
			cache:  cache,
			sender: sender,
			clock:  clock,
			logger: logger.With("handler", "on_submission_reviewed"),
		},
	}
}

// Name реализует интерфейс shared.EventHandler.
func (h *SubmissionReviewedHandler) Name() string {
	return "on_submission_reviewed"
}

// Handle обрабатывает событие ревью.
// Реализует интерфейс shared.EventHandler.
func (h *SubmissionReviewedHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	switch e := event.(type) {
	case shared.SubmissionApprovedEvent:
		return h.onApproved(ctx, e)
	case shared.SubmissionRejectedEvent:
		return h.onRejected(ctx, e)
	default:
		h.deps.logger.Warn("received unexpected event",
			"event_type", event.EventType(),
		)
		return nil
	}
}

// onApproved уведомляет стажёра об одобрении и обновляет кеш лидерборда.
func (h *SubmissionReviewedHandler) onApproved(ctx context.Context, e shared.SubmissionApprovedEvent) error {
	h.deps.logger.Info("processing submission approved",
		"enrollment_id", e.EnrollmentID,
		"task_number", e.TaskNumber,
		"score", e.Score,
	)

	if h.deps.cache != nil {
		// Обновляем балл и в глобальном, и в программном лидерборде.
		scopes := []string{""}
		if e.ProgramID != "" {
			scopes = append(scopes, e.ProgramID)
		}
		for _, scope := range scopes {
			if err := h.deps.cache.UpdateScore(ctx, scope, e.EnrollmentID, e.RunningScore); err != nil {
				h.deps.logger.Warn("failed to update leaderboard cache",
					"enrollment_id", e.EnrollmentID,
					"program_id", scope,
					"error", err,
				)
			}
		}
	}

	message := fmt.Sprintf("Задача %d засчитана: %.1f баллов. Текущий балл: %.2f",
		e.TaskNumber, e.Score, e.RunningScore)
	if !e.NextUnlockAt.IsZero() {
		message += fmt.Sprintf(". Следующая задача откроется %s",
			e.NextUnlockAt.Format("02.01.2006 15:04 MST"))
	}

	return h.send(ctx, notification.NotificationTypeSubmissionApproved,
		e.InternID, message, notification.PriorityHigh, map[string]string{
			"enrollment_id": e.EnrollmentID,
			"task_number":   fmt.Sprintf("%d", e.TaskNumber),
		})
}

// onRejected уведомляет стажёра об отклонении с комментарием ревьюера.
func (h *SubmissionReviewedHandler) onRejected(ctx context.Context, e shared.SubmissionRejectedEvent) error {
	h.deps.logger.Info("processing submission rejected",
		"enrollment_id", e.EnrollmentID,
		"task_number", e.TaskNumber,
		"attempts_remaining", e.AttemptsRemaining,
		"exhausted", e.Exhausted,
	)

	notifType := notification.NotificationTypeSubmissionRejected
	message := fmt.Sprintf("Задача %d отклонена: %s. Осталось попыток: %d",
		e.TaskNumber, e.Feedback, e.AttemptsRemaining)

	if e.Exhausted {
		notifType = notification.NotificationTypeAttemptsExhausted
		message = fmt.Sprintf("Задача %d отклонена окончательно: %s. Лимит попыток исчерпан, задача будет засчитана как пропущенная",
			e.TaskNumber, e.Feedback)
	}

	return h.send(ctx, notifType, e.InternID, message, notification.PriorityHigh,
		map[string]string{
			"enrollment_id": e.EnrollmentID,
			"task_number":   fmt.Sprintf("%d", e.TaskNumber),
		})
}

// send создаёт и отправляет уведомление.
func (h *SubmissionReviewedHandler) send(
	ctx context.Context,
	t notification.NotificationType,
	recipient, message string,
	priority notification.Priority,
	metadata map[string]string,
) error {
	if h.deps.sender == nil {
		return nil
	}

	notif, err := notification.NewNotification(
		notification.NotificationID(uuid.NewString()),
		t,
		notification.RecipientID(recipient),
		message,
		priority,
		h.deps.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	for k, v := range metadata {
		notif.SetMetadata(k, v)
	}

	result := h.deps.sender.Send(ctx, notif)
	if !result.Success {
		return fmt.Errorf("send notification: %w", result.Error)
	}
	return nil
}
