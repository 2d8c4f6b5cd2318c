// Package service contains infrastructure adapters for domain service
// interfaces: notification delivery and ID generation.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/internforge/internship-hub/internal/domain/notification"
	"github.com/internforge/internship-hub/pkg/circuitbreaker"
	"github.com/internforge/internship-hub/pkg/retry"
	"github.com/internforge/internship-hub/pkg/timeutil"
)

// IDGenerator produces UUID identifiers for new entities.
type IDGenerator struct{}

// NewIDGenerator creates a new IDGenerator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GenerateID returns a new UUID string.
func (g *IDGenerator) GenerateID() string {
	return uuid.New().String()
}

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK NOTIFICATION SENDER
// ══════════════════════════════════════════════════════════════════════════════

// webhookPayload is the wire format posted to the delivery channel.
type webhookPayload struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Recipient  string            `json:"recipient"`
	Message    string            `json:"message"`
	Priority   int               `json:"priority"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	QuietHours bool              `json:"quiet_hours"`
	CreatedAt  time.Time         `json:"created_at"`
}

// WebhookNotificationSender delivers notifications by POSTing them to a
// configured webhook. Transient channel failures are retried with backoff;
// a circuit breaker stops hammering a channel that is down. Delivery is
// best-effort: callers treat a failed SendResult as a logged loss, never
// as a reason to roll back workflow state.
type WebhookNotificationSender struct {
	webhookURL string
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewWebhookNotificationSender creates a sender for the given webhook URL.
func NewWebhookNotificationSender(webhookURL string, logger *slog.Logger) *WebhookNotificationSender {
	if logger == nil {
		logger = slog.Default()
	}

	s := &WebhookNotificationSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retrier:    retry.NotificationRetrier(),
		logger:     logger,
	}
	s.breaker = circuitbreaker.NotificationBreaker(func(name string, from, to circuitbreaker.State) {
		logger.Warn("notification circuit state changed",
			"breaker", name,
			"from", from.String(),
			"to", to.String(),
		)
	})

	return s
}

// Send posts the notification to the webhook.
func (s *WebhookNotificationSender) Send(ctx context.Context, n *notification.Notification) notification.SendResult {
	now := time.Now().UTC()

	payload := webhookPayload{
		ID:         n.ID.String(),
		Type:       string(n.Type),
		Recipient:  n.RecipientID.String(),
		Message:    n.Message,
		Priority:   int(n.Priority),
		Metadata:   n.Metadata,
		QuietHours: !timeutil.IsSafeNotificationTime(now),
		CreatedAt:  n.CreatedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return notification.SendResult{Success: false, Error: err, SentAt: now}
	}

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.post(ctx, body)
		})
	})
	if err != nil {
		s.logger.Error("notification delivery failed",
			"notification_id", n.ID.String(),
			"type", string(n.Type),
			"recipient", n.RecipientID.String(),
			"error", err,
		)
		return notification.SendResult{Success: false, Error: err, SentAt: now}
	}

	return notification.SendResult{Success: true, SentAt: time.Now().UTC()}
}

// post performs a single webhook call, classifying failures for retry.
func (s *WebhookNotificationSender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// Network errors are worth retrying.
		return retry.Retryable(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	default:
		return retry.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG NOTIFICATION SENDER
// ══════════════════════════════════════════════════════════════════════════════

// LogNotificationSender writes notifications to the log instead of an
// external channel. Used in development and as a fallback when no webhook
// is configured.
type LogNotificationSender struct {
	logger *slog.Logger
}

// NewLogNotificationSender creates a log-backed sender.
func NewLogNotificationSender(logger *slog.Logger) *LogNotificationSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotificationSender{logger: logger}
}

// Send logs the notification and reports success.
func (s *LogNotificationSender) Send(ctx context.Context, n *notification.Notification) notification.SendResult {
	s.logger.Info("notification",
		"notification_id", n.ID.String(),
		"type", string(n.Type),
		"recipient", n.RecipientID.String(),
		"message", n.Message,
	)
	return notification.SendResult{Success: true, SentAt: time.Now().UTC()}
}
