// Package enrollment содержит доменную модель зачисления стажёра на программу.
// Мутации принадлежат ProgressionController/CompletionEvaluator; воркфлоу
// сертификатов только читает.
package enrollment

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment - прохождение одним стажёром одной программы стажировки.
type Enrollment struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// InternID - идентификатор стажёра.
	InternID string

	// ProgramID - программа, на которую зачислен стажёр.
	ProgramID string

	// RunningScore - текущий балл для дашбордов и лидерборда.
	// Пересчитывается при каждом одобрении, не участвует в итоговом решении.
	RunningScore float64

	// FinalScore - финальный балл. nil до завершения программы.
	// Инвариант: устанавливается не более одного раза.
	FinalScore *float64

	// Completed - программа завершена (все задачи в терминальном состоянии).
	Completed bool

	// CompletedAt - время завершения. nil до завершения.
	CompletedAt *time.Time

	// CertificateEligible - право на сертификат по итоговой оценке.
	CertificateEligible bool

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
	// ErrAlreadyFinalized - финальный балл уже установлен.
	ErrAlreadyFinalized = errors.New("enrollment already finalized")

	// ErrNotFinalized - финальный балл ещё не установлен.
	ErrNotFinalized = errors.New("enrollment is not finalized yet")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewEnrollment создаёт новое зачисление.
func NewEnrollment(id, internID, programID string, now time.Time) (*Enrollment, error) {
	if id == "" {
		return nil, errors.New("enrollment id is required")
	}
	if internID == "" {
		return nil, errors.New("intern id is required")
	}
	if programID == "" {
		return nil, errors.New("program id is required")
	}

	return &Enrollment{
		ID:        id,
		InternID:  internID,
		ProgramID: programID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateRunningScore обновляет текущий балл для дашбордов.
func (e *Enrollment) UpdateRunningScore(score float64, now time.Time) {
	e.RunningScore = score
	e.UpdatedAt = now
}

// Finalize устанавливает финальный балл и право на сертификат.
// Возвращает ErrAlreadyFinalized при повторном вызове - финальный балл
// устанавливается не более одного раза.
func (e *Enrollment) Finalize(finalScore float64, eligible bool, now time.Time) error {
	if e.Completed || e.FinalScore != nil {
		return ErrAlreadyFinalized
	}

	e.FinalScore = &finalScore
	e.CertificateEligible = eligible
	e.Completed = true
	e.CompletedAt = &now
	e.UpdatedAt = now
	return nil
}

// FinalResult возвращает сохранённый финальный балл и право на сертификат.
func (e *Enrollment) FinalResult() (finalScore float64, eligible bool, err error) {
	if !e.Completed || e.FinalScore == nil {
		return 0, false, ErrNotFinalized
	}
	return *e.FinalScore, e.CertificateEligible, nil
}

// String возвращает строковое представление для логирования.
func (e *Enrollment) String() string {
	return fmt.Sprintf("Enrollment{ID: %s, Intern: %s, Program: %s, Completed: %v}",
		e.ID, e.InternID, e.ProgramID, e.Completed)
}

// Clone создаёт копию зачисления.
func (e *Enrollment) Clone() *Enrollment {
	if e == nil {
		return nil
	}
	clone := *e
	if e.FinalScore != nil {
		v := *e.FinalScore
		clone.FinalScore = &v
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}
