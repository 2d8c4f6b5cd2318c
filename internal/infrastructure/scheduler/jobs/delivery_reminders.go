package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/certificate"
	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY REMINDERS JOB
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryRemindersJob notifies administrators about certificate delivery
// sessions whose SLA window has elapsed without an upload. It does not
// change session state: an overdue upload is still accepted, the reminder
// only makes the backlog visible.
type DeliveryRemindersJob struct {
	// Dependencies
	sessionRepo certificate.SessionRepository
	sender      notification.NotificationSender
	clock       shared.Clock
	logger      *slog.Logger

	// Configuration
	config DeliveryRemindersConfig
}

// DeliveryRemindersConfig contains configuration for the reminders job.
type DeliveryRemindersConfig struct {
	// AdminRecipients are the recipients of overdue reminders.
	AdminRecipients []string

	// BatchSize is the maximum number of overdue sessions per run.
	BatchSize int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultDeliveryRemindersConfig returns sensible defaults.
func DefaultDeliveryRemindersConfig() DeliveryRemindersConfig {
	return DeliveryRemindersConfig{
		BatchSize: 100,
		Timeout:   time.Minute,
	}
}

// NewDeliveryRemindersJob creates a new delivery reminders job.
func NewDeliveryRemindersJob(
	sessionRepo certificate.SessionRepository,
	sender notification.NotificationSender,
	clock shared.Clock,
	logger *slog.Logger,
	config DeliveryRemindersConfig,
) *DeliveryRemindersJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &DeliveryRemindersJob{
		sessionRepo: sessionRepo,
		sender:      sender,
		clock:       clock,
		logger:      logger,
		config:      config,
	}
}

// Name returns the job name.
func (j *DeliveryRemindersJob) Name() string {
	return "delivery_reminders"
}

// Description returns a human-readable description.
func (j *DeliveryRemindersJob) Description() string {
	return "Reminds administrators about overdue certificate deliveries"
}

// Run executes the reminder pass.
func (j *DeliveryRemindersJob) Run(ctx context.Context) error {
	if len(j.config.AdminRecipients) == 0 {
		j.logger.Warn("delivery reminders job has no admin recipients configured")
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := j.clock.Now()

	overdue, err := j.sessionRepo.FindOverdue(ctx, now, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to find overdue sessions: %w", err)
	}

	if len(overdue) == 0 {
		return nil
	}

	sent := 0
	failed := 0

	for _, sess := range overdue {
		lateness := now.Sub(sess.ExpectedDeliveryAt).Round(time.Minute)
		message := fmt.Sprintf(
			"Certificate %s for enrollment %s is overdue by %s",
			sess.CertificateNumber, sess.EnrollmentID, lateness,
		)

		for _, recipient := range j.config.AdminRecipients {
			n, err := notification.NewNotification(
				notification.NotificationID(uuid.NewString()),
				notification.NotificationTypeDeliveryOverdue,
				notification.RecipientID(recipient),
				message,
				notification.PriorityHigh,
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to build reminder: %w", err)
			}
			n.SetMetadata("session_id", sess.ID)
			n.SetMetadata("enrollment_id", sess.EnrollmentID)
			n.SetMetadata("certificate_number", sess.CertificateNumber)

			result := j.sender.Send(ctx, n)
			if !result.Success {
				failed++
				j.logger.Error("failed to send delivery reminder",
					"session_id", sess.ID,
					"recipient", recipient,
					"error", result.Error,
				)
				continue
			}
			sent++
		}
	}

	j.logger.Info("delivery reminders completed",
		"overdue", len(overdue),
		"sent", sent,
		"failed", failed,
	)

	return nil
}
