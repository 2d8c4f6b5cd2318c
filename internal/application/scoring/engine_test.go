package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fiveTaskProgram(t *testing.T) *program.Program {
	t.Helper()

	tasks := make([]program.Task, 0, 5)
	for i := 1; i <= 5; i++ {
		tasks = append(tasks, program.Task{
			ID:        fmt.Sprintf("task-%d", i),
			ProgramID: "prog-1",
			Number:    program.TaskNumber(i),
			Title:     fmt.Sprintf("Task %d", i),
			MaxPoints: 20,
			Mandatory: true,
		})
	}

	prog, err := program.NewProgram(program.NewProgramParams{
		ID:            "prog-1",
		Name:          "Backend Internship",
		PassThreshold: 75,
		MaxAttempts:   3,
		Tasks:         tasks,
	})
	require.NoError(t, err)
	return prog
}

func approved(taskNumber int, score float64, submittedAt time.Time) *submission.Submission {
	s, err := submission.NewSubmission(submission.NewSubmissionParams{
		ID:            fmt.Sprintf("sub-%d", taskNumber),
		EnrollmentID:  "enr-1",
		TaskID:        fmt.Sprintf("task-%d", taskNumber),
		TaskNumber:    taskNumber,
		AttemptNumber: 1,
		Artifact:      submission.Artifact{Kind: submission.ArtifactRepo, Locator: "https://git.example/r"},
		SubmittedAt:   submittedAt,
	})
	if err != nil {
		panic(err)
	}
	if err := s.Approve(score, "reviewer-1", "ok", submittedAt.Add(time.Hour)); err != nil {
		panic(err)
	}
	return s
}

func TestCompute_FullApprovalWithPerfectCadence(t *testing.T) {
	// Five tasks worth 20 points each, approved with [20,18,20,16,20],
	// submissions spaced exactly 3 days apart so sigma is zero.
	prog := fiveTaskProgram(t)

	scores := []float64{20, 18, 20, 16, 20}
	history := make([]*submission.Submission, 0, 5)
	for i, score := range scores {
		history = append(history, approved(i+1, score, baseTime.AddDate(0, 0, i*3)))
	}

	b := DefaultEngine().Compute(prog, history)

	assert.Equal(t, 94.0, b.BaseScore)
	assert.Equal(t, 0.0, b.SkippedPenalty)
	assert.Equal(t, 0.0, b.LatePenalty)
	assert.Equal(t, 5.0, b.ConsistencyBonus)
	assert.Equal(t, 99.0, b.FinalScore)
	assert.True(t, b.Eligible)
	assert.Equal(t, 5, b.SubmittedTasks)
}

func TestCompute_PartialProgramIsNeverEligible(t *testing.T) {
	// Tasks 1-3 approved, 4-5 never attempted. Two skips, and the
	// enrollment must not be eligible regardless of score.
	prog := fiveTaskProgram(t)

	history := []*submission.Submission{
		approved(1, 20, baseTime),
		approved(2, 20, baseTime.AddDate(0, 0, 3)),
		approved(3, 20, baseTime.AddDate(0, 0, 6)),
	}

	b := DefaultEngine().Compute(prog, history)

	assert.Equal(t, 2, b.SkippedTasks)
	assert.Equal(t, 10.0, b.SkippedPenalty)
	assert.Equal(t, 3, b.SubmittedTasks)
	assert.Equal(t, 5, b.TotalTasks)
	assert.False(t, b.Eligible)
}

func TestCompute_ExhaustedTaskCountsAsSkipped(t *testing.T) {
	prog := fiveTaskProgram(t)

	rejected, err := submission.NewSubmission(submission.NewSubmissionParams{
		ID:            "sub-4",
		EnrollmentID:  "enr-1",
		TaskID:        "task-4",
		TaskNumber:    4,
		AttemptNumber: 3,
		Artifact:      submission.Artifact{Kind: submission.ArtifactFile, Locator: "s3://bucket/key"},
		SubmittedAt:   baseTime.AddDate(0, 0, 9),
	})
	require.NoError(t, err)
	require.NoError(t, rejected.Reject("reviewer-1", "still failing", true, baseTime.AddDate(0, 0, 10)))

	history := []*submission.Submission{
		approved(1, 20, baseTime),
		approved(2, 20, baseTime.AddDate(0, 0, 3)),
		approved(3, 20, baseTime.AddDate(0, 0, 6)),
		rejected,
	}

	b := DefaultEngine().Compute(prog, history)

	assert.Equal(t, 3, b.SubmittedTasks)
	assert.Equal(t, 2, b.SkippedTasks)
	assert.False(t, b.Eligible)
}

func TestCompute_FinalScoreStaysInRange(t *testing.T) {
	prog := fiveTaskProgram(t)

	t.Run("pathological penalties clamp at zero", func(t *testing.T) {
		// Every submission late plus two skips push the raw score far
		// below zero.
		due := baseTime.AddDate(0, 0, -30)
		history := make([]*submission.Submission, 0, 3)
		for i := 1; i <= 3; i++ {
			s, err := submission.NewSubmission(submission.NewSubmissionParams{
				ID:            fmt.Sprintf("sub-%d", i),
				EnrollmentID:  "enr-1",
				TaskID:        fmt.Sprintf("task-%d", i),
				TaskNumber:    i,
				AttemptNumber: 1,
				Artifact:      submission.Artifact{Kind: submission.ArtifactForm, Locator: "https://forms.example/f"},
				DueAt:         &due,
				SubmittedAt:   baseTime.AddDate(0, 0, i),
			})
			require.NoError(t, err)
			require.NoError(t, s.Approve(5, "reviewer-1", "", baseTime.AddDate(0, 0, i+1)))
			history = append(history, s)
		}

		b := DefaultEngine().Compute(prog, history)
		assert.GreaterOrEqual(t, b.FinalScore, 0.0)
		assert.Equal(t, 0.0, b.FinalScore)
	})

	t.Run("bonus never pushes above 100", func(t *testing.T) {
		history := make([]*submission.Submission, 0, 5)
		for i := 1; i <= 5; i++ {
			history = append(history, approved(i, 20, baseTime.AddDate(0, 0, (i-1)*3)))
		}

		b := DefaultEngine().Compute(prog, history)
		assert.LessOrEqual(t, b.FinalScore, 100.0)
		assert.Equal(t, 100.0, b.FinalScore)
	})
}

func TestCompute_ZeroTaskProgramNeverEligible(t *testing.T) {
	prog, err := program.NewProgram(program.NewProgramParams{
		ID:            "prog-empty",
		Name:          "Empty",
		PassThreshold: 0,
		MaxAttempts:   3,
	})
	require.NoError(t, err)

	b := DefaultEngine().Compute(prog, nil)
	assert.Equal(t, 0.0, b.FinalScore)
	assert.False(t, b.Eligible)
}

func TestCompute_NegativeScoreEarnsZeroButCountsAsSubmitted(t *testing.T) {
	prog := fiveTaskProgram(t)

	history := make([]*submission.Submission, 0, 5)
	for i := 1; i <= 4; i++ {
		history = append(history, approved(i, 20, baseTime.AddDate(0, 0, (i-1)*3)))
	}
	// Fifth approved with nil score (reviewer entered nothing).
	s, err := submission.NewSubmission(submission.NewSubmissionParams{
		ID:            "sub-5",
		EnrollmentID:  "enr-1",
		TaskID:        "task-5",
		TaskNumber:    5,
		AttemptNumber: 1,
		Artifact:      submission.Artifact{Kind: submission.ArtifactRepo, Locator: "https://git.example/r5"},
		SubmittedAt:   baseTime.AddDate(0, 0, 12),
	})
	require.NoError(t, err)
	s.Status = submission.StatusApproved
	history = append(history, s)

	b := DefaultEngine().Compute(prog, history)

	assert.Equal(t, 5, b.SubmittedTasks)
	assert.Equal(t, 0, b.SkippedTasks)
	assert.Equal(t, 80.0, b.BaseScore)
}

func TestConsistencyBonus_RequiresThreeApprovals(t *testing.T) {
	prog := fiveTaskProgram(t)

	history := []*submission.Submission{
		approved(1, 20, baseTime),
		approved(2, 20, baseTime.AddDate(0, 0, 3)),
	}

	b := DefaultEngine().Compute(prog, history)
	assert.Equal(t, 0.0, b.ConsistencyBonus)
}

func TestConsistencyBonus_DecreasesWithVariance(t *testing.T) {
	engine := DefaultEngine()

	// Cadences with increasing spread between submissions, same count.
	cadences := [][]int{
		{0, 3, 6, 9, 12},  // sigma = 0
		{0, 2, 6, 8, 14},  // moderate spread
		{0, 1, 9, 10, 28}, // wild spread
	}

	prog := fiveTaskProgram(t)
	var previous float64 = 6 // above the max, so the first comparison holds
	for _, days := range cadences {
		history := make([]*submission.Submission, 0, len(days))
		for i, d := range days {
			history = append(history, approved(i+1, 20, baseTime.AddDate(0, 0, d)))
		}

		b := engine.Compute(prog, history)
		assert.Less(t, b.ConsistencyBonus, previous,
			"bonus must strictly decrease as interval deviation grows")
		previous = b.ConsistencyBonus
	}
}

func TestPopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, populationStdDev(nil))
	assert.Equal(t, 0.0, populationStdDev([]float64{3, 3, 3}))
	assert.InDelta(t, 2.0, populationStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}
