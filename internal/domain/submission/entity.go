// Package submission содержит доменную модель сдачи задачи стажёром.
// Конечный автомат: SUBMITTED → {APPROVED, REJECTED};
// REJECTED → RESUBMITTED → {APPROVED, REJECTED} (ограничено лимитом попыток).
package submission

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ArtifactKind определяет тип сданного артефакта.
type ArtifactKind string

const (
	// ArtifactRepo - ссылка на репозиторий с кодом.
	ArtifactRepo ArtifactKind = "repo"
	// ArtifactForm - ссылка на заполненную форму.
	ArtifactForm ArtifactKind = "form"
	// ArtifactFile - загруженный файл (ссылка на файловое хранилище).
	ArtifactFile ArtifactKind = "file"
)

// IsValid проверяет, что тип артефакта корректен.
func (k ArtifactKind) IsValid() bool {
	switch k {
	case ArtifactRepo, ArtifactForm, ArtifactFile:
		return true
	default:
		return false
	}
}

// Artifact - tagged variant сданного артефакта: тип плюс локатор.
// Само файловое хранилище вне ядра, здесь хранится только ссылка.
type Artifact struct {
	Kind    ArtifactKind `json:"kind"`
	Locator string       `json:"locator"`
}

// IsValid проверяет корректность артефакта.
func (a Artifact) IsValid() bool {
	return a.Kind.IsValid() && a.Locator != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет текущее состояние сдачи.
type Status string

const (
	// StatusSubmitted - сдача ожидает ревью.
	StatusSubmitted Status = "submitted"
	// StatusResubmitted - повторная сдача после отклонения, ожидает ревью.
	StatusResubmitted Status = "resubmitted"
	// StatusApproved - сдача одобрена ревьюером. Терминальное состояние.
	StatusApproved Status = "approved"
	// StatusRejected - сдача отклонена. Терминально только при исчерпании
	// лимита попыток (тогда задача считается пропущенной при подсчёте).
	StatusRejected Status = "rejected"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusResubmitted, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsOpen возвращает true, если сдача ожидает ревью.
func (s Status) IsOpen() bool {
	return s == StatusSubmitted || s == StatusResubmitted
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SUBMISSION
// ══════════════════════════════════════════════════════════════════════════════

// Submission - одна попытка сдачи одной задачи стажёром.
type Submission struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// EnrollmentID - зачисление, в рамках которого сдана задача.
	EnrollmentID string

	// TaskID - задача программы.
	TaskID string

	// TaskNumber - порядковый номер задачи (денормализован для подсчёта).
	TaskNumber int

	// AttemptNumber - номер попытки (1..MaxAttempts).
	AttemptNumber int

	// Artifact - сданный артефакт (репозиторий / форма / файл).
	Artifact Artifact

	// SubmittedAt - время сдачи.
	SubmittedAt time.Time

	// DueAt - дедлайн задачи. nil, если дедлайн не назначен.
	DueAt *time.Time

	// Late - сдано после дедлайна.
	Late bool

	// LateBy - величина опоздания.
	LateBy time.Duration

	// Status - текущее состояние сдачи.
	Status Status

	// Exhausted - попытки исчерпаны после финального отклонения.
	// Такая задача считается пропущенной при подсчёте итогового балла.
	Exhausted bool

	// Score - балл, выставленный ревьюером. nil до ревью.
	Score *float64

	// Feedback - комментарий ревьюера.
	Feedback string

	// ReviewerID - кто провёл ревью.
	ReviewerID string

	// ReviewedAt - время ревью. nil до ревью.
	ReviewedAt *time.Time

	// Version - счётчик версий для оптимистической блокировки.
	Version int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidArtifact - невалидный артефакт.
	ErrInvalidArtifact = errors.New("invalid artifact: kind and locator are required")

	// ErrNotAwaitingReview - сдача не ожидает ревью.
	ErrNotAwaitingReview = errors.New("submission is not awaiting review")

	// ErrNegativeScore - отрицательный балл.
	ErrNegativeScore = errors.New("score cannot be negative")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewSubmissionParams содержит параметры для создания сдачи.
type NewSubmissionParams struct {
	ID            string
	EnrollmentID  string
	TaskID        string
	TaskNumber    int
	AttemptNumber int
	Artifact      Artifact
	DueAt         *time.Time
	SubmittedAt   time.Time
}

// NewSubmission создаёт новую сдачу с вычислением опоздания.
// Повторная попытка (AttemptNumber > 1) создаётся в статусе RESUBMITTED.
func NewSubmission(params NewSubmissionParams) (*Submission, error) {
	if params.ID == "" {
		return nil, errors.New("submission id is required")
	}
	if params.EnrollmentID == "" {
		return nil, errors.New("enrollment id is required")
	}
	if params.TaskID == "" {
		return nil, errors.New("task id is required")
	}
	if params.TaskNumber <= 0 {
		return nil, errors.New("task number must be positive")
	}
	if params.AttemptNumber <= 0 {
		return nil, errors.New("attempt number must be positive")
	}
	if !params.Artifact.IsValid() {
		return nil, ErrInvalidArtifact
	}

	status := StatusSubmitted
	if params.AttemptNumber > 1 {
		status = StatusResubmitted
	}

	s := &Submission{
		ID:            params.ID,
		EnrollmentID:  params.EnrollmentID,
		TaskID:        params.TaskID,
		TaskNumber:    params.TaskNumber,
		AttemptNumber: params.AttemptNumber,
		Artifact:      params.Artifact,
		SubmittedAt:   params.SubmittedAt,
		DueAt:         params.DueAt,
		Status:        status,
		Version:       1,
		CreatedAt:     params.SubmittedAt,
		UpdatedAt:     params.SubmittedAt,
	}

	if params.DueAt != nil && params.SubmittedAt.After(*params.DueAt) {
		s.Late = true
		s.LateBy = params.SubmittedAt.Sub(*params.DueAt)
	}

	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Approve одобряет сдачу с выставленным баллом.
// Допустимо только из состояний SUBMITTED/RESUBMITTED.
func (s *Submission) Approve(score float64, reviewerID, feedback string, now time.Time) error {
	if !s.Status.IsOpen() {
		return ErrNotAwaitingReview
	}
	if score < 0 {
		return ErrNegativeScore
	}

	s.Status = StatusApproved
	s.Score = &score
	s.ReviewerID = reviewerID
	s.Feedback = feedback
	s.ReviewedAt = &now
	s.UpdatedAt = now
	return nil
}

// Reject отклоняет сдачу с комментарием ревьюера.
// exhausted = true помечает задачу как пропущенную (лимит попыток исчерпан).
func (s *Submission) Reject(reviewerID, feedback string, exhausted bool, now time.Time) error {
	if !s.Status.IsOpen() {
		return ErrNotAwaitingReview
	}

	s.Status = StatusRejected
	s.Exhausted = exhausted
	s.ReviewerID = reviewerID
	s.Feedback = feedback
	s.ReviewedAt = &now
	s.UpdatedAt = now
	return nil
}

// IsTerminal возвращает true, если дальнейшие переходы невозможны:
// сдача одобрена либо отклонена с исчерпанием попыток.
func (s *Submission) IsTerminal() bool {
	return s.Status == StatusApproved || (s.Status == StatusRejected && s.Exhausted)
}

// CountsAsSkipped возвращает true, если задача считается пропущенной
// при подсчёте итогового балла.
func (s *Submission) CountsAsSkipped() bool {
	return s.Status == StatusRejected && s.Exhausted
}

// EarnedPoints возвращает заработанные баллы: балл одобренной сдачи,
// иначе 0. Отрицательный или отсутствующий балл трактуется как 0.
func (s *Submission) EarnedPoints() float64 {
	if s.Status != StatusApproved || s.Score == nil || *s.Score < 0 {
		return 0
	}
	return *s.Score
}

// String возвращает строковое представление для логирования.
func (s *Submission) String() string {
	return fmt.Sprintf("Submission{ID: %s, Task: %d, Attempt: %d, Status: %s}",
		s.ID, s.TaskNumber, s.AttemptNumber, s.Status)
}
