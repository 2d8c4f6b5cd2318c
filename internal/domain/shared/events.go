// Package shared contains common domain types, errors, events, and the clock
// abstraction that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Submission events
	EventSubmissionApproved EventType = "submission.approved"
	EventSubmissionRejected EventType = "submission.rejected"
	EventTaskExhausted      EventType = "submission.attempts_exhausted"

	// Unlock events
	EventUnlockScheduled EventType = "unlock.scheduled"
	EventTaskUnlocked    EventType = "unlock.task_unlocked"

	// Enrollment events
	EventEnrollmentCompleted EventType = "enrollment.completed"

	// Payment events
	EventPaymentInitiated EventType = "payment.initiated"
	EventPaymentVerified  EventType = "payment.verified"
	EventPaymentRejected  EventType = "payment.rejected"

	// Certificate events
	EventCertificateIssued       EventType = "certificate.issued"
	EventCertValidationSubmitted EventType = "certificate.validation_submitted"
	EventCertValidationReviewed  EventType = "certificate.validation_reviewed"

	// System events
	EventUnlockSweepCompleted EventType = "system.unlock_sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a domain event. Implementations must be safe for
// concurrent use.
type EventHandler interface {
	Handle(event Event) error
	Name() string
}

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Submission Events
// ═══════════════════════════════════════════════════════════════════════════

// SubmissionApprovedEvent is emitted when a reviewer approves a submission.
type SubmissionApprovedEvent struct {
	BaseEvent
	EnrollmentID string  `json:"enrollment_id"`
	InternID     string  `json:"intern_id"`
	ProgramID    string  `json:"program_id"`
	TaskNumber   int     `json:"task_number"`
	Score        float64 `json:"score"`
	RunningScore float64 `json:"running_score"`
	// NextUnlockAt is zero when the approved task was the last one.
	NextUnlockAt time.Time `json:"next_unlock_at,omitempty"`
}

// Payload implements Event interface.
func (e SubmissionApprovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":  e.EnrollmentID,
		"intern_id":      e.InternID,
		"program_id":     e.ProgramID,
		"task_number":    e.TaskNumber,
		"score":          e.Score,
		"running_score":  e.RunningScore,
		"next_unlock_at": e.NextUnlockAt,
	}
}

// NewSubmissionApprovedEvent creates a new SubmissionApprovedEvent.
func NewSubmissionApprovedEvent(submissionID, enrollmentID, internID, programID string, taskNumber int, score, runningScore float64, nextUnlockAt time.Time) SubmissionApprovedEvent {
	return SubmissionApprovedEvent{
		BaseEvent:    NewBaseEvent(EventSubmissionApproved, submissionID),
		EnrollmentID: enrollmentID,
		InternID:     internID,
		ProgramID:    programID,
		TaskNumber:   taskNumber,
		Score:        score,
		RunningScore: runningScore,
		NextUnlockAt: nextUnlockAt,
	}
}

// SubmissionRejectedEvent is emitted when a reviewer rejects a submission.
type SubmissionRejectedEvent struct {
	BaseEvent
	EnrollmentID      string `json:"enrollment_id"`
	InternID          string `json:"intern_id"`
	TaskNumber        int    `json:"task_number"`
	Feedback          string `json:"feedback"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	Exhausted         bool   `json:"exhausted"`
}

// Payload implements Event interface.
func (e SubmissionRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":      e.EnrollmentID,
		"intern_id":          e.InternID,
		"task_number":        e.TaskNumber,
		"feedback":           e.Feedback,
		"attempts_remaining": e.AttemptsRemaining,
		"exhausted":          e.Exhausted,
	}
}

// NewSubmissionRejectedEvent creates a new SubmissionRejectedEvent.
func NewSubmissionRejectedEvent(submissionID, enrollmentID, internID string, taskNumber int, feedback string, attemptsRemaining int) SubmissionRejectedEvent {
	return SubmissionRejectedEvent{
		BaseEvent:         NewBaseEvent(EventSubmissionRejected, submissionID),
		EnrollmentID:      enrollmentID,
		InternID:          internID,
		TaskNumber:        taskNumber,
		Feedback:          feedback,
		AttemptsRemaining: attemptsRemaining,
		Exhausted:         attemptsRemaining <= 0,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Unlock Events
// ═══════════════════════════════════════════════════════════════════════════

// UnlockScheduledEvent is emitted when the next task gets a scheduled unlock time.
type UnlockScheduledEvent struct {
	BaseEvent
	EnrollmentID     string    `json:"enrollment_id"`
	InternID         string    `json:"intern_id"`
	TaskNumber       int       `json:"task_number"`
	UnlockEligibleAt time.Time `json:"unlock_eligible_at"`
}

// Payload implements Event interface.
func (e UnlockScheduledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":      e.EnrollmentID,
		"intern_id":          e.InternID,
		"task_number":        e.TaskNumber,
		"unlock_eligible_at": e.UnlockEligibleAt,
	}
}

// NewUnlockScheduledEvent creates a new UnlockScheduledEvent.
func NewUnlockScheduledEvent(unlockID, enrollmentID, internID string, taskNumber int, eligibleAt time.Time) UnlockScheduledEvent {
	return UnlockScheduledEvent{
		BaseEvent:        NewBaseEvent(EventUnlockScheduled, unlockID),
		EnrollmentID:     enrollmentID,
		InternID:         internID,
		TaskNumber:       taskNumber,
		UnlockEligibleAt: eligibleAt,
	}
}

// TaskUnlockedEvent is emitted when a scheduled task becomes submittable.
type TaskUnlockedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	InternID     string `json:"intern_id"`
	TaskNumber   int    `json:"task_number"`
}

// Payload implements Event interface.
func (e TaskUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id": e.EnrollmentID,
		"intern_id":     e.InternID,
		"task_number":   e.TaskNumber,
	}
}

// NewTaskUnlockedEvent creates a new TaskUnlockedEvent.
func NewTaskUnlockedEvent(unlockID, enrollmentID, internID string, taskNumber int) TaskUnlockedEvent {
	return TaskUnlockedEvent{
		BaseEvent:    NewBaseEvent(EventTaskUnlocked, unlockID),
		EnrollmentID: enrollmentID,
		InternID:     internID,
		TaskNumber:   taskNumber,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentCompletedEvent is emitted once when an enrollment is finalized.
type EnrollmentCompletedEvent struct {
	BaseEvent
	InternID   string  `json:"intern_id"`
	ProgramID  string  `json:"program_id"`
	FinalScore float64 `json:"final_score"`
	Eligible   bool    `json:"eligible"`
}

// Payload implements Event interface.
func (e EnrollmentCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"intern_id":   e.InternID,
		"program_id":  e.ProgramID,
		"final_score": e.FinalScore,
		"eligible":    e.Eligible,
	}
}

// NewEnrollmentCompletedEvent creates a new EnrollmentCompletedEvent.
func NewEnrollmentCompletedEvent(enrollmentID, internID, programID string, finalScore float64, eligible bool) EnrollmentCompletedEvent {
	return EnrollmentCompletedEvent{
		BaseEvent:  NewBaseEvent(EventEnrollmentCompleted, enrollmentID),
		InternID:   internID,
		ProgramID:  programID,
		FinalScore: finalScore,
		Eligible:   eligible,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Payment & Certificate Events
// ═══════════════════════════════════════════════════════════════════════════

// PaymentVerifiedEvent is emitted when an admin verifies a certificate-fee payment.
type PaymentVerifiedEvent struct {
	BaseEvent
	EnrollmentID       string    `json:"enrollment_id"`
	InternID           string    `json:"intern_id"`
	VerifierID         string    `json:"verifier_id"`
	ExpectedDeliveryAt time.Time `json:"expected_delivery_at"`
}

// Payload implements Event interface.
func (e PaymentVerifiedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":        e.EnrollmentID,
		"intern_id":            e.InternID,
		"verifier_id":          e.VerifierID,
		"expected_delivery_at": e.ExpectedDeliveryAt,
	}
}

// NewPaymentVerifiedEvent creates a new PaymentVerifiedEvent.
func NewPaymentVerifiedEvent(paymentID, enrollmentID, internID, verifierID string, expectedDeliveryAt time.Time) PaymentVerifiedEvent {
	return PaymentVerifiedEvent{
		BaseEvent:          NewBaseEvent(EventPaymentVerified, paymentID),
		EnrollmentID:       enrollmentID,
		InternID:           internID,
		VerifierID:         verifierID,
		ExpectedDeliveryAt: expectedDeliveryAt,
	}
}

// PaymentRejectedEvent is emitted when an admin rejects a payment proof.
type PaymentRejectedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	InternID     string `json:"intern_id"`
	Reason       string `json:"reason"`
}

// Payload implements Event interface.
func (e PaymentRejectedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id": e.EnrollmentID,
		"intern_id":     e.InternID,
		"reason":        e.Reason,
	}
}

// NewPaymentRejectedEvent creates a new PaymentRejectedEvent.
func NewPaymentRejectedEvent(paymentID, enrollmentID, internID, reason string) PaymentRejectedEvent {
	return PaymentRejectedEvent{
		BaseEvent:    NewBaseEvent(EventPaymentRejected, paymentID),
		EnrollmentID: enrollmentID,
		InternID:     internID,
		Reason:       reason,
	}
}

// CertificateIssuedEvent is emitted when the signed certificate is uploaded.
type CertificateIssuedEvent struct {
	BaseEvent
	EnrollmentID      string `json:"enrollment_id"`
	InternID          string `json:"intern_id"`
	CertificateNumber string `json:"certificate_number"`
	Late              bool   `json:"late"`
}

// Payload implements Event interface.
func (e CertificateIssuedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":      e.EnrollmentID,
		"intern_id":          e.InternID,
		"certificate_number": e.CertificateNumber,
		"late":               e.Late,
	}
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(sessionID, enrollmentID, internID, certificateNumber string, late bool) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:         NewBaseEvent(EventCertificateIssued, sessionID),
		EnrollmentID:      enrollmentID,
		InternID:          internID,
		CertificateNumber: certificateNumber,
		Late:              late,
	}
}

// CertValidationReviewedEvent is emitted when an admin reviews a certificate
// validation submitted for premium-task access.
type CertValidationReviewedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	InternID     string `json:"intern_id"`
	Approved     bool   `json:"approved"`
	Message      string `json:"message"`
}

// Payload implements Event interface.
func (e CertValidationReviewedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id": e.EnrollmentID,
		"intern_id":     e.InternID,
		"approved":      e.Approved,
		"message":       e.Message,
	}
}

// NewCertValidationReviewedEvent creates a new CertValidationReviewedEvent.
func NewCertValidationReviewedEvent(validationID, enrollmentID, internID string, approved bool, message string) CertValidationReviewedEvent {
	return CertValidationReviewedEvent{
		BaseEvent:    NewBaseEvent(EventCertValidationReviewed, validationID),
		EnrollmentID: enrollmentID,
		InternID:     internID,
		Approved:     approved,
		Message:      message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// UnlockSweepCompletedEvent is emitted after a background unlock sweep run.
type UnlockSweepCompletedEvent struct {
	BaseEvent
	Scanned int `json:"scanned"`
	Flipped int `json:"flipped"`
	Failed  int `json:"failed"`
}

// Payload implements Event interface.
func (e UnlockSweepCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"scanned": e.Scanned,
		"flipped": e.Flipped,
		"failed":  e.Failed,
	}
}

// NewUnlockSweepCompletedEvent creates a new UnlockSweepCompletedEvent.
func NewUnlockSweepCompletedEvent(scanned, flipped, failed int) UnlockSweepCompletedEvent {
	return UnlockSweepCompletedEvent{
		BaseEvent: NewBaseEvent(EventUnlockSweepCompleted, "unlock-sweep"),
		Scanned:   scanned,
		Flipped:   flipped,
		Failed:    failed,
	}
}
