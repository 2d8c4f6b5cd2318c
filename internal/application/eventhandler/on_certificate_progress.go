package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CERTIFICATE PROGRESS HANDLER
// Единый обработчик событий воркфлоу сертификата: завершение программы,
// вердикты по оплате, выпуск сертификата и результат его подтверждения.
// Все события сводятся к одному действию - уведомить стажёра.
// ═══════════════════════════════════════════════════════════════════════════

// CertificateProgressHandler обрабатывает события воркфлоу сертификата.
type CertificateProgressHandler struct {
	sender notification.NotificationSender
	clock  shared.Clock
	logger *slog.Logger
}

// NewCertificateProgressHandler создаёт новый обработчик.
func NewCertificateProgressHandler(
	sender notification.NotificationSender,
	clock shared.Clock,
	logger *slog.Logger,
) *CertificateProgressHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateProgressHandler{
		sender: sender,
		clock:  clock,
		logger: logger.With("handler", "on_certificate_progress"),
	}
}

// Name реализует интерфейс shared.EventHandler.
func (h *CertificateProgressHandler) Name() string {
	return "on_certificate_progress"
}

// Handle обрабатывает событие воркфлоу сертификата.
// Реализует интерфейс shared.EventHandler.
func (h *CertificateProgressHandler) Handle(event shared.Event) error {
	ctx := context.Background()

	var (
		notifType notification.NotificationType
		recipient string
		message   string
		priority  = notification.PriorityHigh
		metadata  = map[string]string{}
	)

	switch e := event.(type) {
	case shared.EnrollmentCompletedEvent:
		notifType = notification.NotificationTypeEnrollmentCompleted
		recipient = e.InternID
		metadata["enrollment_id"] = e.AggregateID()
		if e.Eligible {
			message = fmt.Sprintf("Программа завершена! Итоговый балл: %.2f. Вы можете оплатить сбор и получить сертификат", e.FinalScore)
		} else {
			message = fmt.Sprintf("Программа завершена. Итоговый балл: %.2f. К сожалению, порога для сертификата он не достигает", e.FinalScore)
		}

	case shared.PaymentVerifiedEvent:
		notifType = notification.NotificationTypePaymentVerified
		recipient = e.InternID
		metadata["enrollment_id"] = e.EnrollmentID
		message = fmt.Sprintf("Оплата подтверждена. Сертификат будет доставлен до %s",
			e.ExpectedDeliveryAt.Format("02.01.2006 15:04 MST"))

	case shared.PaymentRejectedEvent:
		notifType = notification.NotificationTypePaymentRejected
		recipient = e.InternID
		metadata["enrollment_id"] = e.EnrollmentID
		message = fmt.Sprintf("Доказательство оплаты отклонено: %s. Приложите корректное доказательство и отправьте снова", e.Reason)

	case shared.CertificateIssuedEvent:
		notifType = notification.NotificationTypeCertificateIssued
		recipient = e.InternID
		metadata["enrollment_id"] = e.EnrollmentID
		metadata["certificate_number"] = e.CertificateNumber
		message = fmt.Sprintf("Сертификат %s выпущен и доступен для скачивания", e.CertificateNumber)

	case shared.CertValidationReviewedEvent:
		notifType = notification.NotificationTypeValidationReviewed
		recipient = e.InternID
		metadata["enrollment_id"] = e.EnrollmentID
		if e.Approved {
			message = "Сертификат подтверждён. Платные задачи открыты"
		} else {
			message = fmt.Sprintf("Подтверждение сертификата отклонено: %s. Вы можете подать заново", e.Message)
		}

	default:
		h.logger.Warn("received unexpected event",
			"event_type", event.EventType(),
		)
		return nil
	}

	if h.sender == nil {
		return nil
	}

	notif, err := notification.NewNotification(
		notification.NotificationID(uuid.NewString()),
		notifType,
		notification.RecipientID(recipient),
		message,
		priority,
		h.clock.Now(),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	for k, v := range metadata {
		notif.SetMetadata(k, v)
	}

	if result := h.sender.Send(ctx, notif); !result.Success {
		return fmt.Errorf("send notification: %w", result.Error)
	}

	h.logger.Info("certificate progress notification sent",
		"type", string(notifType),
		"recipient", recipient,
	)
	return nil
}
