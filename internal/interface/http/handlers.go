// Package http implements the REST API for the internship hub.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/internforge/internship-hub/internal/application/command"
	"github.com/internforge/internship-hub/internal/application/query"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
	"github.com/internforge/internship-hub/pkg/logger"
)

// validate checks request DTOs before they are mapped to commands.
var validate = validator.New(validator.WithRequiredStructEnabled())

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

type artifactDTO struct {
	Kind    string `json:"kind" validate:"required,oneof=repo form file"`
	Locator string `json:"locator" validate:"required,max=2048"`
}

func (a artifactDTO) toDomain() submission.Artifact {
	return submission.Artifact{
		Kind:    submission.ArtifactKind(a.Kind),
		Locator: a.Locator,
	}
}

type enrollRequest struct {
	InternID  string `json:"intern_id" validate:"required,max=64"`
	ProgramID string `json:"program_id" validate:"required,max=64"`
}

type submitTaskRequest struct {
	TaskNumber int         `json:"task_number" validate:"required,min=1"`
	Artifact   artifactDTO `json:"artifact" validate:"required"`
}

type reviewSubmissionRequest struct {
	ReviewerID string   `json:"reviewer_id" validate:"required,max=64"`
	Decision   string   `json:"decision" validate:"required,oneof=approve reject"`
	Score      *float64 `json:"score" validate:"omitempty,min=0"`
	Feedback   string   `json:"feedback" validate:"max=4096"`
}

type finalizeRequest struct {
	Force bool `json:"force"`
}

type initiatePaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type paymentProofRequest struct {
	Proof       artifactDTO `json:"proof" validate:"required"`
	ExternalRef string      `json:"external_ref" validate:"max=256"`
}

type verifyPaymentRequest struct {
	VerifierID string `json:"verifier_id" validate:"required,max=64"`
}

type rejectPaymentRequest struct {
	VerifierID string `json:"verifier_id" validate:"required,max=64"`
	Reason     string `json:"reason" validate:"required,max=4096"`
}

type uploadCertificateRequest struct {
	UploaderID string      `json:"uploader_id" validate:"required,max=64"`
	Artifact   artifactDTO `json:"artifact" validate:"required"`
}

type submitValidationRequest struct {
	CertificateNumber string      `json:"certificate_number" validate:"required,max=64"`
	Artifact          artifactDTO `json:"artifact" validate:"required"`
}

type reviewValidationRequest struct {
	ReviewerID string `json:"reviewer_id" validate:"required,max=64"`
	Approve    bool   `json:"approve"`
	Message    string `json:"message" validate:"max=4096"`
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
// A false return means the error response has already been written.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Request validation failed", err.Error())
		return false
	}
	return true
}

// writeDomainError maps a domain error onto an HTTP status.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string

	switch {
	case shared.IsValidation(err):
		status, code = http.StatusBadRequest, "validation_failed"
	case shared.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case shared.IsConflict(err), shared.IsInvalidTransition(err):
		status, code = http.StatusConflict, "conflict"
	case shared.IsPolicyViolation(err):
		status, code = http.StatusUnprocessableEntity, "policy_violation"
	default:
		s.logger.Error("request failed",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		details := domainErr.EntityID
		if domainErr.State != "" {
			details += " (" + domainErr.State + ")"
		}
		writeJSONErrorWithDetails(w, status, code, domainErr.Message, details)
		return
	}

	writeJSONError(w, status, code, err.Error())
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Internship Hub API",
		"version":     "v1",
		"description": "REST API for internship program enrollment, scoring, and certification",
		"endpoints": map[string]string{
			"health":      "/health",
			"enrollments": "/api/v1/enrollments",
			"leaderboard": "/api/v1/leaderboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleEnrollIntern handles POST /api/v1/enrollments
func (s *Server) handleEnrollIntern(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.EnrollInternCommand{
		InternID:      req.InternID,
		ProgramID:     req.ProgramID,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.EnrollIntern.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleSubmitTask handles POST /api/v1/enrollments/{id}/submissions
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	enrollmentID := r.PathValue("id")

	var req submitTaskRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.SubmitTaskCommand{
		EnrollmentID:  enrollmentID,
		TaskNumber:    req.TaskNumber,
		Artifact:      req.Artifact.toDomain(),
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.SubmitTask.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleReviewSubmission handles POST /api/v1/submissions/{id}/review
func (s *Server) handleReviewSubmission(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("id")

	var req reviewSubmissionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	cmd := command.ReviewSubmissionCommand{
		SubmissionID:  submissionID,
		ReviewerID:    req.ReviewerID,
		Decision:      command.ReviewDecision(req.Decision),
		Score:         req.Score,
		Feedback:      req.Feedback,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.ReviewSubmission.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleFinalizeEnrollment handles POST /api/v1/enrollments/{id}/finalize
func (s *Server) handleFinalizeEnrollment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := r.PathValue("id")

	// Body is optional: an empty finalize is the common case.
	var req finalizeRequest
	if r.ContentLength > 0 {
		if !s.decodeAndValidate(w, r, &req) {
			return
		}
	}

	cmd := command.FinalizeEnrollmentCommand{
		EnrollmentID:  enrollmentID,
		Force:         req.Force,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.FinalizeEnrollment.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.handleLeaderboardInternal(w, r, "")
}

// handleGetLeaderboardByProgram handles GET /api/v1/leaderboard/{program}
func (s *Server) handleGetLeaderboardByProgram(w http.ResponseWriter, r *http.Request) {
	s.handleLeaderboardInternal(w, r, r.PathValue("program"))
}

// handleLeaderboardInternal is the internal implementation for leaderboard handlers.
func (s *Server) handleLeaderboardInternal(w http.ResponseWriter, r *http.Request, programID string) {
	q := query.GetLeaderboardQuery{
		ProgramID: programID,
		Limit:     getQueryParamInt(r, "limit", 20),
		Offset:    getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.GetLeaderboard.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{HasMore: result.HasMore})
}

// handleGetScoreBreakdown handles GET /api/v1/enrollments/{id}/score
func (s *Server) handleGetScoreBreakdown(w http.ResponseWriter, r *http.Request) {
	q := query.GetScoreBreakdownQuery{
		EnrollmentID: r.PathValue("id"),
	}

	result, err := s.deps.GetScoreBreakdown.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleIsTaskUnlocked handles GET /api/v1/enrollments/{id}/tasks/{number}/unlocked
func (s *Server) handleIsTaskUnlocked(w http.ResponseWriter, r *http.Request) {
	q := query.IsTaskUnlockedQuery{
		EnrollmentID: r.PathValue("id"),
		TaskNumber:   getPathInt(r, "number"),
	}

	result, err := s.deps.IsTaskUnlocked.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handlePremiumAccess handles GET /api/v1/enrollments/{id}/premium-access
func (s *Server) handlePremiumAccess(w http.ResponseWriter, r *http.Request) {
	enrollmentID := r.PathValue("id")

	granted, err := s.deps.CertificateFlow.HasPremiumAccess(r.Context(), enrollmentID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enrollment_id":  enrollmentID,
		"premium_access": granted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE WORKFLOW HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleInitiatePayment handles POST /api/v1/enrollments/{id}/certificate/payment
func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	enrollmentID := r.PathValue("id")

	var req initiatePaymentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := s.deps.CertificateFlow.InitiatePayment(r.Context(), enrollmentID, req.Amount)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, payment)
}

// handleSubmitPaymentProof handles POST /api/v1/payments/{id}/proof
func (s *Server) handleSubmitPaymentProof(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	var req paymentProofRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := s.deps.CertificateFlow.SubmitPaymentProof(r.Context(), paymentID, req.Proof.toDomain(), req.ExternalRef)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// handleVerifyPayment handles POST /api/v1/payments/{id}/verify
func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	var req verifyPaymentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := s.deps.CertificateFlow.VerifyPayment(r.Context(), paymentID, req.VerifierID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// handleRejectPayment handles POST /api/v1/payments/{id}/reject
func (s *Server) handleRejectPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := r.PathValue("id")

	var req rejectPaymentRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	payment, err := s.deps.CertificateFlow.RejectPayment(r.Context(), paymentID, req.VerifierID, req.Reason)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}

// handleUploadCertificate handles POST /api/v1/sessions/{id}/certificate
func (s *Server) handleUploadCertificate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	var req uploadCertificateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	session, err := s.deps.CertificateFlow.UploadCertificate(r.Context(), sessionID, req.Artifact.toDomain(), req.UploaderID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// handleSubmitValidation handles POST /api/v1/enrollments/{id}/certificate/validation
func (s *Server) handleSubmitValidation(w http.ResponseWriter, r *http.Request) {
	enrollmentID := r.PathValue("id")

	var req submitValidationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	v, err := s.deps.CertificateFlow.SubmitValidation(r.Context(), enrollmentID, req.CertificateNumber, req.Artifact.toDomain())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, v)
}

// handleReviewValidation handles POST /api/v1/validations/{id}/review
func (s *Server) handleReviewValidation(w http.ResponseWriter, r *http.Request) {
	validationID := r.PathValue("id")

	var req reviewValidationRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	v, err := s.deps.CertificateFlow.ReviewValidation(r.Context(), validationID, req.Approve, req.ReviewerID, req.Message)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// getPathInt extracts an integer path value, returning 0 when absent or
// malformed so the query's own validation reports the error.
func getPathInt(r *http.Request, key string) int {
	var n int
	if _, err := fmt.Sscanf(r.PathValue(key), "%d", &n); err != nil {
		return 0
	}
	return n
}
