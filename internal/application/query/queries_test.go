package query

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/application/command"
	"github.com/internforge/internship-hub/internal/application/scoring"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

var baseTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeEnrollmentRepo struct {
	items map[string]*enrollment.Enrollment
	rows  []enrollment.LeaderboardRow
}

func (r *fakeEnrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	r.items[e.ID] = e
	return nil
}

func (r *fakeEnrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	e, ok := r.items[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound.WithEntity(id, "")
	}
	return e.Clone(), nil
}

func (r *fakeEnrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	r.items[e.ID] = e.Clone()
	return nil
}

func (r *fakeEnrollmentRepo) GetByProgram(_ context.Context, _ string, _ enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	return nil, nil
}

func (r *fakeEnrollmentRepo) TopByRunningScore(_ context.Context, programID string, limit int) ([]enrollment.LeaderboardRow, error) {
	var out []enrollment.LeaderboardRow
	for _, row := range r.rows {
		if programID != "" && row.ProgramID != programID {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeLeaderboardCache struct {
	mu     sync.Mutex
	stored map[string][]enrollment.LeaderboardRow
	writes int
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{stored: make(map[string][]enrollment.LeaderboardRow)}
}

func (c *fakeLeaderboardCache) GetCachedTop(_ context.Context, programID string, limit int) ([]enrollment.LeaderboardRow, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := c.stored[programID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (c *fakeLeaderboardCache) CacheTop(_ context.Context, programID string, rows []enrollment.LeaderboardRow, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stored[programID] = rows
	c.writes++
	return nil
}

func (c *fakeLeaderboardCache) UpdateScore(_ context.Context, _, _ string, _ float64) error {
	return nil
}

func (c *fakeLeaderboardCache) Invalidate(_ context.Context, programID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stored, programID)
	return nil
}

type fakeProgramRepo struct {
	items map[string]*program.Program
}

func (r *fakeProgramRepo) GetByID(_ context.Context, id string) (*program.Program, error) {
	p, ok := r.items[id]
	if !ok {
		return nil, shared.ErrProgramNotFound.WithEntity(id, "")
	}
	return p, nil
}

func (r *fakeProgramRepo) List(_ context.Context) ([]*program.Program, error) {
	out := make([]*program.Program, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	items []*submission.Submission
}

func (r *fakeSubmissionRepo) Create(_ context.Context, s *submission.Submission) error {
	r.items = append(r.items, s)
	return nil
}

func (r *fakeSubmissionRepo) GetByID(_ context.Context, id string) (*submission.Submission, error) {
	for _, s := range r.items {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, shared.ErrSubmissionNotFound.WithEntity(id, "")
}

func (r *fakeSubmissionRepo) Update(_ context.Context, _ *submission.Submission) error {
	return nil
}

func (r *fakeSubmissionRepo) GetByEnrollment(_ context.Context, enrollmentID string) ([]*submission.Submission, error) {
	var out []*submission.Submission
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) GetByEnrollmentAndTask(_ context.Context, enrollmentID string, taskNumber int) ([]*submission.Submission, error) {
	var out []*submission.Submission
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID && s.TaskNumber == taskNumber {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) GetLatestAttempt(_ context.Context, enrollmentID string, taskNumber int) (*submission.Submission, error) {
	var latest *submission.Submission
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID && s.TaskNumber == taskNumber {
			if latest == nil || s.AttemptNumber > latest.AttemptNumber {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, shared.ErrSubmissionNotFound.WithEntity(enrollmentID, "")
	}
	return latest, nil
}

func (r *fakeSubmissionRepo) HasOpenSubmission(_ context.Context, enrollmentID string, taskNumber int) (bool, error) {
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID && s.TaskNumber == taskNumber && s.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubmissionRepo) CountByEnrollment(_ context.Context, enrollmentID string) (int, error) {
	n := 0
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID {
			n++
		}
	}
	return n, nil
}

type fakeUnlockRepo struct {
	items map[string]*unlock.TaskUnlock
	saves int
}

func unlockKey(enrollmentID string, taskNumber int) string {
	return fmt.Sprintf("%s/%d", enrollmentID, taskNumber)
}

func (r *fakeUnlockRepo) Upsert(_ context.Context, u *unlock.TaskUnlock) error {
	r.items[unlockKey(u.EnrollmentID, u.TaskNumber)] = u
	return nil
}

func (r *fakeUnlockRepo) Get(_ context.Context, enrollmentID string, taskNumber int) (*unlock.TaskUnlock, error) {
	u, ok := r.items[unlockKey(enrollmentID, taskNumber)]
	if !ok {
		return nil, shared.ErrUnlockNotFound.WithEntity(unlockKey(enrollmentID, taskNumber), "")
	}
	return u, nil
}

func (r *fakeUnlockRepo) Save(_ context.Context, u *unlock.TaskUnlock) error {
	key := unlockKey(u.EnrollmentID, u.TaskNumber)
	if _, ok := r.items[key]; !ok {
		return shared.ErrUnlockNotFound.WithEntity(key, "")
	}
	r.items[key] = u
	r.saves++
	return nil
}

func (r *fakeUnlockRepo) FindDue(_ context.Context, now time.Time, limit int) ([]*unlock.TaskUnlock, error) {
	var out []*unlock.TaskUnlock
	for _, u := range r.items {
		if !u.Unlocked && u.IsDue(now) {
			out = append(out, u)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *fakeUnlockRepo) GetByEnrollment(_ context.Context, enrollmentID string) ([]*unlock.TaskUnlock, error) {
	var out []*unlock.TaskUnlock
	for _, u := range r.items {
		if u.EnrollmentID == enrollmentID {
			out = append(out, u)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Builders
// ─────────────────────────────────────────────────────────────────────────────

func threeTaskProgram(t *testing.T) *program.Program {
	t.Helper()

	prog, err := program.NewProgram(program.NewProgramParams{
		ID:            "prog-1",
		Name:          "Backend Internship",
		PassThreshold: 60,
		MaxAttempts:   3,
		Tasks: []program.Task{
			{ID: "task-1", ProgramID: "prog-1", Number: 1, Title: "CLI tool", MaxPoints: 10, Mandatory: true},
			{ID: "task-2", ProgramID: "prog-1", Number: 2, Title: "REST API", MaxPoints: 10, WaitAfterApproval: time.Hour, Mandatory: true},
			{ID: "task-3", ProgramID: "prog-1", Number: 3, Title: "Worker", MaxPoints: 10, WaitAfterApproval: time.Hour, Mandatory: true},
		},
	})
	require.NoError(t, err)
	return prog
}

func seedEnrollment(t *testing.T, repo *fakeEnrollmentRepo, id string) *enrollment.Enrollment {
	t.Helper()

	enr, err := enrollment.NewEnrollment(id, "intern-"+id, "prog-1", baseTime)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), enr))
	return enr
}

func approvedSubmission(t *testing.T, enrollmentID string, taskNumber int, score float64, at time.Time) *submission.Submission {
	t.Helper()

	sub, err := submission.NewSubmission(submission.NewSubmissionParams{
		ID:            fmt.Sprintf("sub-%s-%d", enrollmentID, taskNumber),
		EnrollmentID:  enrollmentID,
		TaskID:        fmt.Sprintf("task-%d", taskNumber),
		TaskNumber:    taskNumber,
		AttemptNumber: 1,
		Artifact:      submission.Artifact{Kind: submission.ArtifactRepo, Locator: "https://git.example/solution"},
		SubmittedAt:   at,
	})
	require.NoError(t, err)
	require.NoError(t, sub.Approve(score, "reviewer-1", "ok", at.Add(10*time.Minute)))
	return sub
}

func rejectedSubmission(t *testing.T, enrollmentID string, taskNumber int, at time.Time) *submission.Submission {
	t.Helper()

	sub, err := submission.NewSubmission(submission.NewSubmissionParams{
		ID:            fmt.Sprintf("sub-%s-%d-rej", enrollmentID, taskNumber),
		EnrollmentID:  enrollmentID,
		TaskID:        fmt.Sprintf("task-%d", taskNumber),
		TaskNumber:    taskNumber,
		AttemptNumber: 1,
		Artifact:      submission.Artifact{Kind: submission.ArtifactRepo, Locator: "https://git.example/solution"},
		SubmittedAt:   at,
	})
	require.NoError(t, err)
	require.NoError(t, sub.Reject("reviewer-1", "needs work", false, at.Add(10*time.Minute)))
	return sub
}

// ─────────────────────────────────────────────────────────────────────────────
// GetLeaderboard
// ─────────────────────────────────────────────────────────────────────────────

func TestGetLeaderboard(t *testing.T) {
	rows := []enrollment.LeaderboardRow{
		{EnrollmentID: "enr-1", InternID: "intern-1", ProgramID: "prog-1", Score: 91.5},
		{EnrollmentID: "enr-2", InternID: "intern-2", ProgramID: "prog-1", Score: 77.0, Completed: true},
		{EnrollmentID: "enr-3", InternID: "intern-3", ProgramID: "prog-1", Score: 60.0},
	}

	t.Run("cache miss reads the store and warms the cache", func(t *testing.T) {
		repo := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment), rows: rows}
		cache := newFakeLeaderboardCache()
		handler := NewGetLeaderboardHandler(repo, cache, shared.NewFixedClock(baseTime))

		result, err := handler.Handle(context.Background(), GetLeaderboardQuery{ProgramID: "prog-1"})
		require.NoError(t, err)

		assert.False(t, result.FromCache)
		assert.False(t, result.HasMore)
		require.Len(t, result.Entries, 3)
		assert.Equal(t, 1, result.Entries[0].Rank)
		assert.Equal(t, "enr-1", result.Entries[0].EnrollmentID)
		assert.Equal(t, 91.5, result.Entries[0].Score)
		assert.Equal(t, 1, cache.writes)

		// Second read is served from the warmed cache.
		result, err = handler.Handle(context.Background(), GetLeaderboardQuery{ProgramID: "prog-1"})
		require.NoError(t, err)
		assert.True(t, result.FromCache)
		assert.Len(t, result.Entries, 3)
		assert.Equal(t, 1, cache.writes)
	})

	t.Run("works without a cache", func(t *testing.T) {
		repo := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment), rows: rows}
		handler := NewGetLeaderboardHandler(repo, nil, shared.NewFixedClock(baseTime))

		result, err := handler.Handle(context.Background(), GetLeaderboardQuery{ProgramID: "prog-1"})
		require.NoError(t, err)
		assert.False(t, result.FromCache)
		assert.Len(t, result.Entries, 3)
	})

	t.Run("paginates with continued ranks", func(t *testing.T) {
		repo := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment), rows: rows}
		handler := NewGetLeaderboardHandler(repo, nil, shared.NewFixedClock(baseTime))

		result, err := handler.Handle(context.Background(), GetLeaderboardQuery{ProgramID: "prog-1", Limit: 2})
		require.NoError(t, err)
		assert.True(t, result.HasMore)
		require.Len(t, result.Entries, 2)

		result, err = handler.Handle(context.Background(), GetLeaderboardQuery{ProgramID: "prog-1", Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.False(t, result.HasMore)
		require.Len(t, result.Entries, 1)
		assert.Equal(t, 3, result.Entries[0].Rank)
		assert.Equal(t, "enr-3", result.Entries[0].EnrollmentID)
	})

	t.Run("rejects negative pagination", func(t *testing.T) {
		repo := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)}
		handler := NewGetLeaderboardHandler(repo, nil, shared.NewFixedClock(baseTime))

		_, err := handler.Handle(context.Background(), GetLeaderboardQuery{Offset: -1})
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// GetScoreBreakdown
// ─────────────────────────────────────────────────────────────────────────────

func TestGetScoreBreakdown(t *testing.T) {
	newHandler := func(enrollments *fakeEnrollmentRepo, submissions *fakeSubmissionRepo) *GetScoreBreakdownHandler {
		programs := &fakeProgramRepo{items: map[string]*program.Program{"prog-1": threeTaskProgram(t)}}
		return NewGetScoreBreakdownHandler(enrollments, programs, submissions, scoring.DefaultEngine(), shared.NewFixedClock(baseTime))
	}

	t.Run("recomputes from history with per-task rows", func(t *testing.T) {
		enrollments := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)}
		seedEnrollment(t, enrollments, "enr-1")
		submissions := &fakeSubmissionRepo{items: []*submission.Submission{
			approvedSubmission(t, "enr-1", 1, 10, baseTime),
			rejectedSubmission(t, "enr-1", 2, baseTime.Add(time.Hour)),
		}}
		handler := newHandler(enrollments, submissions)

		result, err := handler.Handle(context.Background(), GetScoreBreakdownQuery{EnrollmentID: "enr-1"})
		require.NoError(t, err)

		assert.InDelta(t, 33.33, result.Breakdown.BaseScore, 0.01)
		assert.InDelta(t, 10, result.Breakdown.SkippedPenalty, 0.01)
		assert.InDelta(t, 23.33, result.Breakdown.FinalScore, 0.01)
		assert.Zero(t, result.Breakdown.ConsistencyBonus)
		assert.Equal(t, 3, result.Breakdown.TotalTasks)
		assert.Equal(t, 1, result.Breakdown.SubmittedTasks)
		assert.Equal(t, 2, result.Breakdown.SkippedTasks)
		assert.False(t, result.Breakdown.Eligible)
		assert.False(t, result.Completed)
		assert.Nil(t, result.FrozenFinalScore)

		require.Len(t, result.Tasks, 3)
		assert.Equal(t, "approved", result.Tasks[0].Status)
		assert.Equal(t, 10.0, result.Tasks[0].EarnedPoints)
		assert.Equal(t, "rejected", result.Tasks[1].Status)
		assert.Equal(t, 1, result.Tasks[1].Attempts)
		assert.Equal(t, "skipped", result.Tasks[2].Status)
		assert.Zero(t, result.Tasks[2].Attempts)
	})

	t.Run("exposes the frozen score of a completed enrollment", func(t *testing.T) {
		enrollments := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)}
		enr := seedEnrollment(t, enrollments, "enr-1")
		require.NoError(t, enr.Finalize(85.5, true, baseTime.Add(24*time.Hour)))
		require.NoError(t, enrollments.Update(context.Background(), enr))
		handler := newHandler(enrollments, &fakeSubmissionRepo{})

		result, err := handler.Handle(context.Background(), GetScoreBreakdownQuery{EnrollmentID: "enr-1"})
		require.NoError(t, err)
		assert.True(t, result.Completed)
		require.NotNil(t, result.FrozenFinalScore)
		assert.Equal(t, 85.5, *result.FrozenFinalScore)
	})

	t.Run("unknown enrollment is not found", func(t *testing.T) {
		enrollments := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)}
		handler := newHandler(enrollments, &fakeSubmissionRepo{})

		_, err := handler.Handle(context.Background(), GetScoreBreakdownQuery{EnrollmentID: "ghost"})
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// IsTaskUnlocked
// ─────────────────────────────────────────────────────────────────────────────

func TestIsTaskUnlocked(t *testing.T) {
	setup := func(t *testing.T) (*fakeEnrollmentRepo, *fakeUnlockRepo, *shared.FixedClock, *IsTaskUnlockedHandler) {
		t.Helper()
		enrollments := &fakeEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)}
		seedEnrollment(t, enrollments, "enr-1")
		unlocks := &fakeUnlockRepo{items: make(map[string]*unlock.TaskUnlock)}
		clock := shared.NewFixedClock(baseTime)
		scheduler := command.NewUnlockScheduler(unlocks, &fakeSubmissionRepo{}, clock)
		return enrollments, unlocks, clock, NewIsTaskUnlockedHandler(enrollments, unlocks, scheduler)
	}

	t.Run("first task needs no unlock record", func(t *testing.T) {
		_, _, _, handler := setup(t)

		result, err := handler.Handle(context.Background(), IsTaskUnlockedQuery{EnrollmentID: "enr-1", TaskNumber: 1})
		require.NoError(t, err)
		assert.True(t, result.Unlocked)
		assert.Nil(t, result.UnlockEligibleAt)
	})

	t.Run("later task without a schedule stays locked", func(t *testing.T) {
		_, _, _, handler := setup(t)

		result, err := handler.Handle(context.Background(), IsTaskUnlockedQuery{EnrollmentID: "enr-1", TaskNumber: 2})
		require.NoError(t, err)
		assert.False(t, result.Unlocked)
		assert.Nil(t, result.UnlockEligibleAt)
	})

	t.Run("flips a due record on read", func(t *testing.T) {
		_, unlocks, clock, handler := setup(t)

		rec, err := unlock.NewScheduled("unl-1", "enr-1", "task-2", 2, baseTime.Add(time.Hour), baseTime)
		require.NoError(t, err)
		require.NoError(t, unlocks.Upsert(context.Background(), rec))

		result, err := handler.Handle(context.Background(), IsTaskUnlockedQuery{EnrollmentID: "enr-1", TaskNumber: 2})
		require.NoError(t, err)
		assert.False(t, result.Unlocked)
		require.NotNil(t, result.UnlockEligibleAt)
		assert.Equal(t, baseTime.Add(time.Hour), *result.UnlockEligibleAt)
		assert.Nil(t, result.UnlockedAt)

		clock.Advance(time.Hour)
		result, err = handler.Handle(context.Background(), IsTaskUnlockedQuery{EnrollmentID: "enr-1", TaskNumber: 2})
		require.NoError(t, err)
		assert.True(t, result.Unlocked)
		require.NotNil(t, result.UnlockedAt)
		assert.Equal(t, 1, unlocks.saves)

		// Repeated reads stay unlocked without another write.
		result, err = handler.Handle(context.Background(), IsTaskUnlockedQuery{EnrollmentID: "enr-1", TaskNumber: 2})
		require.NoError(t, err)
		assert.True(t, result.Unlocked)
		assert.Equal(t, 1, unlocks.saves)
	})

	t.Run("unknown enrollment is not found", func(t *testing.T) {
		_, _, _, handler := setup(t)

		_, err := handler.Handle(context.Background(), IsTaskUnlockedQuery{EnrollmentID: "ghost", TaskNumber: 1})
		require.Error(t, err)
		assert.True(t, shared.IsNotFound(err))
	})
}
