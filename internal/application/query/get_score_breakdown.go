package query

import (
	"context"
	"errors"
	"time"

	"github.com/internforge/internship-hub/internal/application/scoring"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SCORE BREAKDOWN QUERY
// Пересчитывает балл зачисления из полной истории подач и возвращает
// разбивку по компонентам плюс построчную детализацию по задачам.
// Для завершённого зачисления дополнительно отдаёт замороженный итог.
// ══════════════════════════════════════════════════════════════════════════════

// GetScoreBreakdownQuery содержит параметры запроса.
type GetScoreBreakdownQuery struct {
	// EnrollmentID - зачисление, по которому нужна разбивка.
	EnrollmentID string
}

// Validate проверяет корректность параметров запроса.
func (q *GetScoreBreakdownQuery) Validate() error {
	if q.EnrollmentID == "" {
		return errors.New("enrollment id is required")
	}
	return nil
}

// TaskScoreDTO - построчная детализация балла по задаче.
type TaskScoreDTO struct {
	// TaskNumber - порядковый номер задачи.
	TaskNumber int `json:"task_number"`

	// Title - название задачи.
	Title string `json:"title"`

	// MaxPoints - максимум баллов за задачу.
	MaxPoints float64 `json:"max_points"`

	// EarnedPoints - заработанные баллы (0 если нет одобренной подачи).
	EarnedPoints float64 `json:"earned_points"`

	// Status - статус задачи: "approved", "in_review", "rejected",
	// "exhausted" или "skipped" (не было ни одной попытки).
	Status string `json:"status"`

	// Attempts - число поданных попыток.
	Attempts int `json:"attempts"`

	// Late - была ли хоть одна подача после дедлайна.
	Late bool `json:"late"`
}

// GetScoreBreakdownResult содержит результат запроса.
type GetScoreBreakdownResult struct {
	// EnrollmentID - зачисление.
	EnrollmentID string `json:"enrollment_id"`

	// Breakdown - разбивка балла по компонентам.
	Breakdown scoring.Breakdown `json:"breakdown"`

	// Tasks - детализация по задачам программы.
	Tasks []TaskScoreDTO `json:"tasks"`

	// Completed - завершено ли зачисление.
	Completed bool `json:"completed"`

	// FrozenFinalScore - зафиксированный итоговый балл завершённого
	// зачисления. nil, пока зачисление активно.
	FrozenFinalScore *float64 `json:"frozen_final_score,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetScoreBreakdownHandler обрабатывает запросы разбивки балла.
type GetScoreBreakdownHandler struct {
	enrollmentRepo enrollment.Repository
	programRepo    program.Repository
	submissionRepo submission.Repository
	engine         scoring.Engine
	clock          shared.Clock
}

// NewGetScoreBreakdownHandler создаёт новый обработчик.
func NewGetScoreBreakdownHandler(
	enrollmentRepo enrollment.Repository,
	programRepo program.Repository,
	submissionRepo submission.Repository,
	engine scoring.Engine,
	clock shared.Clock,
) *GetScoreBreakdownHandler {
	return &GetScoreBreakdownHandler{
		enrollmentRepo: enrollmentRepo,
		programRepo:    programRepo,
		submissionRepo: submissionRepo,
		engine:         engine,
		clock:          clock,
	}
}

// Handle выполняет запрос разбивки балла.
func (h *GetScoreBreakdownHandler) Handle(ctx context.Context, query GetScoreBreakdownQuery) (*GetScoreBreakdownResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetScoreBreakdown", shared.ErrValidation, err.Error(), err)
	}

	enr, err := h.enrollmentRepo.GetByID(ctx, query.EnrollmentID)
	if err != nil {
		return nil, err
	}

	prog, err := h.programRepo.GetByID(ctx, enr.ProgramID)
	if err != nil {
		return nil, err
	}

	history, err := h.submissionRepo.GetByEnrollment(ctx, enr.ID)
	if err != nil {
		return nil, err
	}

	breakdown := h.engine.Compute(prog, history)

	return &GetScoreBreakdownResult{
		EnrollmentID:     enr.ID,
		Breakdown:        breakdown,
		Tasks:            h.taskRows(prog, history),
		Completed:        enr.Completed,
		FrozenFinalScore: enr.FinalScore,
		GeneratedAt:      h.clock.Now(),
	}, nil
}

// taskRows собирает построчную детализацию по каждой задаче программы.
func (h *GetScoreBreakdownHandler) taskRows(prog *program.Program, history []*submission.Submission) []TaskScoreDTO {
	// Группируем историю по номеру задачи. История отсортирована по
	// времени подачи, поэтому последний элемент группы - последняя попытка.
	byTask := make(map[int][]*submission.Submission)
	for _, sub := range history {
		byTask[sub.TaskNumber] = append(byTask[sub.TaskNumber], sub)
	}

	rows := make([]TaskScoreDTO, 0, prog.TaskCount())
	for _, task := range prog.Tasks {
		n := int(task.Number)
		attempts := byTask[n]

		row := TaskScoreDTO{
			TaskNumber: n,
			Title:      task.Title,
			MaxPoints:  float64(task.MaxPoints),
			Attempts:   len(attempts),
			Status:     "skipped",
		}

		for _, sub := range attempts {
			if sub.Late {
				row.Late = true
			}
		}

		if len(attempts) > 0 {
			last := attempts[len(attempts)-1]
			switch {
			case last.Status == submission.StatusApproved:
				row.Status = "approved"
				row.EarnedPoints = last.EarnedPoints()
			case last.CountsAsSkipped():
				row.Status = "exhausted"
			case last.Status.IsOpen():
				row.Status = "in_review"
			default:
				row.Status = "rejected"
			}
		}

		rows = append(rows, row)
	}

	return rows
}
