package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

func TestEnrollIntern(t *testing.T) {
	t.Run("creates enrollment with task 1 pre-unlocked", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))

		res, err := f.enroll.Handle(context.Background(), EnrollInternCommand{
			InternID:  "intern-1",
			ProgramID: "prog-1",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.EnrollmentID)
		assert.Equal(t, "task-1", res.FirstTaskID)

		rec, err := f.unlocks.Get(context.Background(), res.EnrollmentID, 1)
		require.NoError(t, err)
		assert.True(t, rec.Unlocked)
		assert.True(t, rec.Notified)
	})

	t.Run("rejects duplicate enrollment", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		f.mustEnroll(t, "prog-1")

		_, err := f.enroll.Handle(context.Background(), EnrollInternCommand{
			InternID:  "intern-1",
			ProgramID: "prog-1",
		})
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("rejects unknown program", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))

		_, err := f.enroll.Handle(context.Background(), EnrollInternCommand{
			InternID:  "intern-1",
			ProgramID: "prog-missing",
		})
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})
}

func TestSubmitTaskAdmission(t *testing.T) {
	t.Run("task 1 accepts the first attempt immediately", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")

		res, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   1,
			Artifact:     repoArtifact(),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.AttemptNumber)
		assert.False(t, res.Late)
	})

	t.Run("locked task rejects submission", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")

		_, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   2,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))
	})

	t.Run("open submission blocks a second one for the same task", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		f.mustSubmit(t, enrID, 1)

		_, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   1,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("unlock gate opens only after the wait elapses", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		// Scheduled for baseTime+1h; still closed.
		_, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   2,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))

		f.clock.Advance(time.Hour)
		f.mustSubmit(t, enrID, 2)

		// The lazy read must have persisted the flip.
		rec, err := f.unlocks.Get(context.Background(), enrID, 2)
		require.NoError(t, err)
		assert.True(t, rec.Unlocked)
		require.NotNil(t, rec.UnlockedAt)
	})

	t.Run("approved task takes no more submissions", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		_, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   1,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})
}

func TestReviewSubmission(t *testing.T) {
	t.Run("approval refreshes running score and schedules the next gate", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)

		res := f.mustApprove(t, subID, 10)
		assert.Equal(t, submission.StatusApproved, res.Status)
		// 10/30 earned = 33.33 base, minus two skipped tasks at 5 each.
		assert.InDelta(t, 23.33, res.RunningScore, 0.01)
		assert.Equal(t, baseTime.Add(time.Hour), res.NextUnlockAt)
		assert.False(t, res.Completed)

		enr, err := f.enrollments.GetByID(context.Background(), enrID)
		require.NoError(t, err)
		assert.InDelta(t, 23.33, enr.RunningScore, 0.01)

		assert.Len(t, f.publisher.byType(shared.EventSubmissionApproved), 1)
		assert.Len(t, f.publisher.byType(shared.EventUnlockScheduled), 1)
	})

	t.Run("score above the task maximum is rejected", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)

		score := 11.0
		_, err := f.review.Handle(context.Background(), ReviewSubmissionCommand{
			SubmissionID: subID,
			ReviewerID:   "reviewer-1",
			Decision:     DecisionApprove,
			Score:        &score,
		})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("rejection leaves attempts and does not schedule", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)

		res, err := f.review.Handle(context.Background(), ReviewSubmissionCommand{
			SubmissionID: subID,
			ReviewerID:   "reviewer-1",
			Decision:     DecisionReject,
			Feedback:     "tests are missing",
		})
		require.NoError(t, err)
		assert.Equal(t, submission.StatusRejected, res.Status)
		assert.Equal(t, 2, res.AttemptsRemaining)
		assert.False(t, res.Exhausted)
		assert.True(t, res.NextUnlockAt.IsZero())

		// The intern can retry: next attempt is number 2, resubmitted.
		resubmit, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   1,
			Artifact:     repoArtifact(),
		})
		require.NoError(t, err)
		assert.Equal(t, 2, resubmit.AttemptNumber)

		assert.Len(t, f.publisher.byType(shared.EventSubmissionRejected), 1)
	})

	t.Run("last rejection exhausts the task and blocks resubmission", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")

		var res *ReviewSubmissionResult
		for attempt := 1; attempt <= 3; attempt++ {
			subID := f.mustSubmit(t, enrID, 1)
			var err error
			res, err = f.review.Handle(context.Background(), ReviewSubmissionCommand{
				SubmissionID: subID,
				ReviewerID:   "reviewer-1",
				Decision:     DecisionReject,
				Feedback:     "not good enough",
			})
			require.NoError(t, err)
		}
		assert.True(t, res.Exhausted)
		assert.Equal(t, 0, res.AttemptsRemaining)

		_, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   1,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))
	})

	t.Run("review of a terminal submission is a conflict", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		score := 8.0
		_, err := f.review.Handle(context.Background(), ReviewSubmissionCommand{
			SubmissionID: subID,
			ReviewerID:   "reviewer-2",
			Decision:     DecisionApprove,
			Score:        &score,
		})
		require.Error(t, err)
		assert.True(t, shared.IsInvalidTransition(err))
	})

	t.Run("approving the last task finalizes the enrollment", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")

		scores := []float64{10, 9, 8}
		var last *ReviewSubmissionResult
		for i, score := range scores {
			taskNumber := i + 1
			subID := f.mustSubmit(t, enrID, taskNumber)
			last = f.mustApprove(t, subID, score)
			f.clock.Advance(time.Hour)
		}

		require.True(t, last.Completed)
		// 27/30 earned = 90 base, equal cadence yields the full +5 bonus.
		assert.InDelta(t, 95, last.FinalScore, 0.01)
		assert.True(t, last.Eligible)

		enr, err := f.enrollments.GetByID(context.Background(), enrID)
		require.NoError(t, err)
		assert.True(t, enr.Completed)
		assert.True(t, enr.CertificateEligible)
		require.NotNil(t, enr.FinalScore)
		assert.InDelta(t, 95, *enr.FinalScore, 0.01)

		assert.Len(t, f.publisher.byType(shared.EventEnrollmentCompleted), 1)
	})
}

func TestFinalizeEnrollment(t *testing.T) {
	t.Run("refuses while a task has no terminal disposition", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		_, err := f.finalize.Handle(context.Background(), FinalizeEnrollmentCommand{
			EnrollmentID: enrID,
		})
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))
	})

	t.Run("force counts unattempted tasks as skipped", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		res, err := f.finalize.Handle(context.Background(), FinalizeEnrollmentCommand{
			EnrollmentID: enrID,
			Force:        true,
		})
		require.NoError(t, err)
		assert.False(t, res.AlreadyFinalized)
		assert.InDelta(t, 23.33, res.FinalScore, 0.01)
		assert.False(t, res.Eligible)
		require.NotNil(t, res.Breakdown)
		assert.Equal(t, 2, res.Breakdown.SkippedTasks)
	})

	t.Run("second finalization returns the stored result", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		first, err := f.finalize.Handle(context.Background(), FinalizeEnrollmentCommand{
			EnrollmentID: enrID,
			Force:        true,
		})
		require.NoError(t, err)

		// A later data change must not leak into the stored result.
		f.clock.Advance(48 * time.Hour)
		second, err := f.finalize.Handle(context.Background(), FinalizeEnrollmentCommand{
			EnrollmentID: enrID,
			Force:        true,
		})
		require.NoError(t, err)
		assert.True(t, second.AlreadyFinalized)
		assert.Equal(t, first.FinalScore, second.FinalScore)
		assert.Equal(t, first.Eligible, second.Eligible)
		assert.Nil(t, second.Breakdown)
	})

	t.Run("completed enrollment rejects further submissions", func(t *testing.T) {
		f := newFixture(t, threeTaskProgram(t))
		enrID := f.mustEnroll(t, "prog-1")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)

		_, err := f.finalize.Handle(context.Background(), FinalizeEnrollmentCommand{
			EnrollmentID: enrID,
			Force:        true,
		})
		require.NoError(t, err)

		f.clock.Advance(2 * time.Hour)
		_, err = f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   2,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
	})
}

func TestPremiumTaskGate(t *testing.T) {
	setup := func(t *testing.T) (*fixture, string) {
		t.Helper()
		f := newFixture(t, premiumProgram(t))
		enrID := f.mustEnroll(t, "prog-premium")
		subID := f.mustSubmit(t, enrID, 1)
		f.mustApprove(t, subID, 10)
		f.clock.Advance(time.Hour)
		return f, enrID
	}

	t.Run("premium task is closed without an approved validation", func(t *testing.T) {
		f, enrID := setup(t)

		_, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   2,
			Artifact:     repoArtifact(),
		})
		require.Error(t, err)
		assert.True(t, shared.IsPolicyViolation(err))
	})

	t.Run("approved validation opens the premium task", func(t *testing.T) {
		f, enrID := setup(t)
		f.validations.approved[enrID] = true

		res, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
			EnrollmentID: enrID,
			TaskNumber:   2,
			Artifact:     repoArtifact(),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.AttemptNumber)
	})
}
