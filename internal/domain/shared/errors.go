// Package shared contains common domain types, errors, events, and the clock
// abstraction that are used across all domain packages. This package has zero
// external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrConflict          = errors.New("conflicting state transition")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyProcessed  = errors.New("already processed")
	ErrPolicyViolation   = errors.New("business policy violation")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "enrollment", "submission", "payment"
	Op      string // Operation that failed, e.g., "Review", "Verify"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)

	// EntityID and State identify the record and its state at the moment
	// of failure so the API layer can render a precise user message.
	EntityID string
	State    string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithEntity attaches entity context (record ID and its current state) to the
// error and returns it. The receiver is a copy, so package-level error values
// are never mutated.
func (e DomainError) WithEntity(id, state string) *DomainError {
	e.EntityID = id
	e.State = state
	return &e
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Enrollment domain errors
var (
	ErrEnrollmentNotFound    = NewDomainError("enrollment", "Find", ErrNotFound, "enrollment not found")
	ErrEnrollmentExists      = NewDomainError("enrollment", "Create", ErrAlreadyExists, "enrollment already exists")
	ErrEnrollmentComplete    = NewDomainError("enrollment", "Mutate", ErrConflict, "enrollment already completed")
	ErrEnrollmentNotComplete = NewDomainError("enrollment", "Finalize", ErrPolicyViolation, "not all tasks have a terminal submission state")
	ErrEnrollmentNotEligible = NewDomainError("enrollment", "CheckEligibility", ErrPolicyViolation, "enrollment is not certificate-eligible")
	ErrProgramNotFound       = NewDomainError("program", "Find", ErrNotFound, "program not found")
)

// Submission domain errors
var (
	ErrSubmissionNotFound   = NewDomainError("submission", "Find", ErrNotFound, "submission not found")
	ErrSubmissionTerminal   = NewDomainError("submission", "Review", ErrInvalidTransition, "submission is already in a terminal state")
	ErrAttemptsExhausted    = NewDomainError("submission", "Resubmit", ErrPolicyViolation, "maximum attempts exhausted")
	ErrTaskNotUnlocked      = NewDomainError("submission", "Create", ErrPolicyViolation, "task is not unlocked yet")
	ErrOpenSubmissionExists = NewDomainError("submission", "Create", ErrConflict, "an open submission already exists for this task")
	ErrInvalidScore         = NewDomainError("submission", "Review", ErrValidation, "score must be within the task point range")
)

// Task unlock domain errors
var (
	ErrUnlockNotFound       = NewDomainError("unlock", "Find", ErrNotFound, "task unlock record not found")
	ErrUnlockAlreadyPlanned = NewDomainError("unlock", "Schedule", ErrConflict, "next task already has a submission, cannot reschedule")
	ErrTaskNotFound         = NewDomainError("unlock", "Schedule", ErrNotFound, "task not found in program")
)

// Payment domain errors
var (
	ErrPaymentNotFound     = NewDomainError("payment", "Find", ErrNotFound, "payment not found")
	ErrPaymentVerified     = NewDomainError("payment", "Verify", ErrConflict, "payment is already verified")
	ErrPaymentNotPending   = NewDomainError("payment", "Transition", ErrInvalidTransition, "payment is not in pending state")
	ErrPaymentNotRejected  = NewDomainError("payment", "Resubmit", ErrInvalidTransition, "only rejected payments can be resubmitted")
	ErrVerifiedPaymentOpen = NewDomainError("payment", "Initiate", ErrConflict, "a verified payment already exists for this enrollment")
)

// Certificate session domain errors
var (
	ErrSessionNotFound  = NewDomainError("certsession", "Find", ErrNotFound, "certificate session not found")
	ErrSessionCompleted = NewDomainError("certsession", "Upload", ErrInvalidTransition, "certificate already uploaded for this session")
	ErrNoCompletedCert  = NewDomainError("certsession", "Check", ErrPolicyViolation, "no completed certificate session for this enrollment")
)

// Certificate validation domain errors
var (
	ErrValidationNotFound   = NewDomainError("certvalidation", "Find", ErrNotFound, "certificate validation not found")
	ErrValidationApproved   = NewDomainError("certvalidation", "Review", ErrInvalidTransition, "validation already approved")
	ErrValidationNotPending = NewDomainError("certvalidation", "Review", ErrInvalidTransition, "validation is not pending review")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a duplicate/already-terminal transition.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrOptimisticLock)
}

// IsInvalidTransition checks if the action was attempted from a state that
// disallows it.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

// IsPolicyViolation checks if the error is a business-rule rejection.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPolicyViolation)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
