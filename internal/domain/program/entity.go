// Package program содержит доменную модель программы стажировки.
// Программа и её задачи неизменяемы после авторинга - ядро их только читает.
package program

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// TaskNumber представляет порядковый номер задачи в программе (1..N).
type TaskNumber int

// IsValid проверяет, что номер задачи положительный.
func (n TaskNumber) IsValid() bool {
	return n > 0
}

// Next возвращает номер следующей задачи.
func (n TaskNumber) Next() TaskNumber {
	return n + 1
}

// Points представляет максимальное количество баллов за задачу.
type Points int

// IsValid проверяет, что баллы неотрицательные.
func (p Points) IsValid() bool {
	return p >= 0
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK
// ══════════════════════════════════════════════════════════════════════════════

// Task - порядковая единица работы в программе стажировки.
// Неизменяема после авторинга программы; ядро ссылается на неё, но не мутирует.
type Task struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// ProgramID - программа, к которой принадлежит задача.
	ProgramID string

	// Number - порядковый номер задачи (1..N, уникален внутри программы).
	Number TaskNumber

	// Title - название задачи.
	Title string

	// Description - описание задачи.
	Description string

	// MaxPoints - максимальный балл за задачу.
	MaxPoints Points

	// WaitAfterApproval - обязательная пауза после одобрения предыдущей
	// задачи, прежде чем эта задача станет доступной.
	WaitAfterApproval time.Duration

	// SubmissionWindow - срок сдачи после открытия задачи.
	// 0 означает отсутствие дедлайна.
	SubmissionWindow time.Duration

	// Mandatory - обязательна ли задача для прохождения программы.
	Mandatory bool

	// Premium - платная задача, доступная только после подтверждения
	// сертификата (CertificateValidation APPROVED).
	Premium bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// IsFirst возвращает true, если это первая задача программы.
func (t *Task) IsFirst() bool {
	return t.Number == 1
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROGRAM
// ══════════════════════════════════════════════════════════════════════════════

// Program - программа стажировки: упорядоченный список задач с порогом
// прохождения. Одна запись Enrollment связывает стажёра с одной программой.
type Program struct {
	// ID - внутренний уникальный идентификатор.
	ID string

	// Name - название программы (например, "Backend Internship 2026").
	Name string

	// PassThreshold - минимальный финальный балл (в процентах) для
	// получения права на сертификат.
	PassThreshold float64

	// MaxAttempts - максимальное число попыток сдачи одной задачи.
	MaxAttempts int

	// CertificateFee - стоимость выпуска сертификата.
	CertificateFee float64

	// Tasks - упорядоченный список задач (по Number по возрастанию).
	Tasks []Task

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidName - невалидное название программы.
	ErrInvalidName = errors.New("invalid program name: must be 1-200 chars")

	// ErrInvalidThreshold - невалидный порог прохождения.
	ErrInvalidThreshold = errors.New("invalid pass threshold: must be between 0 and 100")

	// ErrInvalidMaxAttempts - невалидный лимит попыток.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be positive")

	// ErrDuplicateTaskNumber - номера задач должны быть уникальны.
	ErrDuplicateTaskNumber = errors.New("duplicate task number in program")

	// ErrTaskGap - номера задач должны образовывать 1..N без пропусков.
	ErrTaskGap = errors.New("task numbers must form a contiguous sequence starting at 1")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewProgramParams содержит параметры для создания программы.
type NewProgramParams struct {
	ID             string
	Name           string
	PassThreshold  float64
	MaxAttempts    int
	CertificateFee float64
	Tasks          []Task
}

// NewProgram создаёт программу с валидацией задач.
// Задачи сортируются по Number; номера должны образовывать 1..N без пропусков.
func NewProgram(params NewProgramParams) (*Program, error) {
	if params.ID == "" {
		return nil, errors.New("program id is required")
	}

	name := strings.TrimSpace(params.Name)
	if len(name) == 0 || len(name) > 200 {
		return nil, ErrInvalidName
	}

	if params.PassThreshold < 0 || params.PassThreshold > 100 {
		return nil, ErrInvalidThreshold
	}

	if params.MaxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}

	tasks := make([]Task, len(params.Tasks))
	copy(tasks, params.Tasks)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Number < tasks[j].Number })

	seen := make(map[TaskNumber]bool, len(tasks))
	for i, t := range tasks {
		if !t.Number.IsValid() {
			return nil, fmt.Errorf("task %q: number must be positive", t.Title)
		}
		if !t.MaxPoints.IsValid() {
			return nil, fmt.Errorf("task %q: points must be non-negative", t.Title)
		}
		if seen[t.Number] {
			return nil, ErrDuplicateTaskNumber
		}
		seen[t.Number] = true
		if int(t.Number) != i+1 {
			return nil, ErrTaskGap
		}
	}

	return &Program{
		ID:             params.ID,
		Name:           name,
		PassThreshold:  params.PassThreshold,
		MaxAttempts:    params.MaxAttempts,
		CertificateFee: params.CertificateFee,
		Tasks:          tasks,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// TaskCount возвращает число задач в программе.
func (p *Program) TaskCount() int {
	return len(p.Tasks)
}

// TaskByNumber возвращает задачу по порядковому номеру.
func (p *Program) TaskByNumber(n TaskNumber) (*Task, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].Number == n {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// NextTask возвращает задачу, следующую за указанным номером.
// Второе значение false означает, что указанная задача была последней.
func (p *Program) NextTask(after TaskNumber) (*Task, bool) {
	return p.TaskByNumber(after.Next())
}

// LastTask возвращает последнюю задачу программы.
func (p *Program) LastTask() (*Task, bool) {
	if len(p.Tasks) == 0 {
		return nil, false
	}
	return &p.Tasks[len(p.Tasks)-1], true
}

// TotalMaxPoints возвращает сумму баллов всех задач, включая пропущенные
// стажёром - пропуски всё равно учитываются в знаменателе оценки.
func (p *Program) TotalMaxPoints() int {
	total := 0
	for _, t := range p.Tasks {
		total += int(t.MaxPoints)
	}
	return total
}

// String возвращает строковое представление программы для логирования.
func (p *Program) String() string {
	return fmt.Sprintf("Program{ID: %s, Name: %s, Tasks: %d, Threshold: %.0f%%}",
		p.ID, p.Name, len(p.Tasks), p.PassThreshold)
}
