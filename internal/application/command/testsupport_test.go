package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/application/scoring"
	"github.com/internforge/internship-hub/internal/domain/certificate"
	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/shared"
	"github.com/internforge/internship-hub/internal/domain/submission"
	"github.com/internforge/internship-hub/internal/domain/unlock"
)

var baseTime = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory repositories
// ─────────────────────────────────────────────────────────────────────────────

type memEnrollmentRepo struct {
	mu    sync.Mutex
	items map[string]*enrollment.Enrollment
}

func newMemEnrollmentRepo() *memEnrollmentRepo {
	return &memEnrollmentRepo{items: make(map[string]*enrollment.Enrollment)}
}

func (r *memEnrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.InternID == e.InternID && existing.ProgramID == e.ProgramID {
			return shared.ErrEnrollmentExists.WithEntity(existing.ID, "duplicate")
		}
	}
	r.items[e.ID] = e.Clone()
	return nil
}

func (r *memEnrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound.WithEntity(id, "")
	}
	return e.Clone(), nil
}

func (r *memEnrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[e.ID]; !ok {
		return shared.ErrEnrollmentNotFound.WithEntity(e.ID, "")
	}
	e.Version++
	r.items[e.ID] = e.Clone()
	return nil
}

func (r *memEnrollmentRepo) GetByProgram(_ context.Context, programID string, _ enrollment.ListOptions) ([]*enrollment.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*enrollment.Enrollment
	for _, e := range r.items {
		if e.ProgramID == programID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (r *memEnrollmentRepo) TopByRunningScore(_ context.Context, programID string, limit int) ([]enrollment.LeaderboardRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []enrollment.LeaderboardRow
	for _, e := range r.items {
		if programID != "" && e.ProgramID != programID {
			continue
		}
		rows = append(rows, enrollment.LeaderboardRow{
			EnrollmentID: e.ID,
			InternID:     e.InternID,
			ProgramID:    e.ProgramID,
			Score:        e.RunningScore,
			Completed:    e.Completed,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type memProgramRepo struct {
	items map[string]*program.Program
}

func newMemProgramRepo(progs ...*program.Program) *memProgramRepo {
	r := &memProgramRepo{items: make(map[string]*program.Program)}
	for _, p := range progs {
		r.items[p.ID] = p
	}
	return r
}

func (r *memProgramRepo) GetByID(_ context.Context, id string) (*program.Program, error) {
	p, ok := r.items[id]
	if !ok {
		return nil, shared.ErrProgramNotFound.WithEntity(id, "")
	}
	return p, nil
}

func (r *memProgramRepo) List(_ context.Context) ([]*program.Program, error) {
	out := make([]*program.Program, 0, len(r.items))
	for _, p := range r.items {
		out = append(out, p)
	}
	return out, nil
}

type memSubmissionRepo struct {
	mu    sync.Mutex
	items map[string]*submission.Submission
}

func newMemSubmissionRepo() *memSubmissionRepo {
	return &memSubmissionRepo{items: make(map[string]*submission.Submission)}
}

func (r *memSubmissionRepo) Create(_ context.Context, s *submission.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.items[s.ID] = &clone
	return nil
}

func (r *memSubmissionRepo) GetByID(_ context.Context, id string) (*submission.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, shared.ErrSubmissionNotFound.WithEntity(id, "")
	}
	clone := *s
	return &clone, nil
}

func (r *memSubmissionRepo) Update(_ context.Context, s *submission.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return shared.ErrSubmissionNotFound.WithEntity(s.ID, "")
	}
	s.Version++
	clone := *s
	r.items[s.ID] = &clone
	return nil
}

func (r *memSubmissionRepo) GetByEnrollment(_ context.Context, enrollmentID string) ([]*submission.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*submission.Submission
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (r *memSubmissionRepo) GetByEnrollmentAndTask(_ context.Context, enrollmentID string, taskNumber int) ([]*submission.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*submission.Submission
	for _, s := range r.items {
		if s.EnrollmentID == enrollmentID && s.TaskNumber == taskNumber {
			clone := *s
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (r *memSubmissionRepo) GetLatestAttempt(ctx context.Context, enrollmentID string, taskNumber int) (*submission.Submission, error) {
	attempts, err := r.GetByEnrollmentAndTask(ctx, enrollmentID, taskNumber)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, shared.ErrSubmissionNotFound.WithEntity(enrollmentID, fmt.Sprintf("task %d", taskNumber))
	}
	return attempts[len(attempts)-1], nil
}

func (r *memSubmissionRepo) HasOpenSubmission(ctx context.Context, enrollmentID string, taskNumber int) (bool, error) {
	attempts, err := r.GetByEnrollmentAndTask(ctx, enrollmentID, taskNumber)
	if err != nil {
		return false, err
	}
	for _, s := range attempts {
		if s.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSubmissionRepo) CountByEnrollment(ctx context.Context, enrollmentID string) (int, error) {
	all, err := r.GetByEnrollment(ctx, enrollmentID)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

type memUnlockRepo struct {
	mu    sync.Mutex
	items map[string]*unlock.TaskUnlock // key: enrollmentID/taskNumber
}

func newMemUnlockRepo() *memUnlockRepo {
	return &memUnlockRepo{items: make(map[string]*unlock.TaskUnlock)}
}

func unlockKey(enrollmentID string, taskNumber int) string {
	return fmt.Sprintf("%s/%d", enrollmentID, taskNumber)
}

func (r *memUnlockRepo) Upsert(_ context.Context, u *unlock.TaskUnlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.items[unlockKey(u.EnrollmentID, u.TaskNumber)] = &clone
	return nil
}

func (r *memUnlockRepo) Get(_ context.Context, enrollmentID string, taskNumber int) (*unlock.TaskUnlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.items[unlockKey(enrollmentID, taskNumber)]
	if !ok {
		return nil, shared.ErrUnlockNotFound.WithEntity(enrollmentID, fmt.Sprintf("task %d", taskNumber))
	}
	clone := *u
	return &clone, nil
}

func (r *memUnlockRepo) Save(_ context.Context, u *unlock.TaskUnlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := unlockKey(u.EnrollmentID, u.TaskNumber)
	if _, ok := r.items[key]; !ok {
		return shared.ErrUnlockNotFound.WithEntity(u.EnrollmentID, fmt.Sprintf("task %d", u.TaskNumber))
	}
	clone := *u
	r.items[key] = &clone
	return nil
}

func (r *memUnlockRepo) FindDue(_ context.Context, now time.Time, limit int) ([]*unlock.TaskUnlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*unlock.TaskUnlock
	for _, u := range r.items {
		if !u.Unlocked && u.IsDue(now) {
			clone := *u
			out = append(out, &clone)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memUnlockRepo) GetByEnrollment(_ context.Context, enrollmentID string) ([]*unlock.TaskUnlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*unlock.TaskUnlock
	for _, u := range r.items {
		if u.EnrollmentID == enrollmentID {
			clone := *u
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskNumber < out[j].TaskNumber })
	return out, nil
}

// memValidationRepo covers only what the submit handler needs: the
// premium-access lookup.
type memValidationRepo struct {
	approved map[string]bool
}

func newMemValidationRepo() *memValidationRepo {
	return &memValidationRepo{approved: make(map[string]bool)}
}

func (r *memValidationRepo) Upsert(_ context.Context, _ *certificate.Validation) error { return nil }

func (r *memValidationRepo) GetByID(_ context.Context, id string) (*certificate.Validation, error) {
	return nil, shared.ErrValidationNotFound.WithEntity(id, "")
}

func (r *memValidationRepo) GetByEnrollment(_ context.Context, enrollmentID string) (*certificate.Validation, error) {
	return nil, shared.ErrValidationNotFound.WithEntity(enrollmentID, "")
}

func (r *memValidationRepo) Update(_ context.Context, _ *certificate.Validation) error { return nil }

func (r *memValidationRepo) HasApproved(_ context.Context, enrollmentID string) (bool, error) {
	return r.approved[enrollmentID], nil
}

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

type fixture struct {
	enrollments *memEnrollmentRepo
	programs    *memProgramRepo
	submissions *memSubmissionRepo
	unlocks     *memUnlockRepo
	validations *memValidationRepo
	publisher   *capturingPublisher
	clock       *shared.FixedClock

	scheduler *UnlockScheduler
	enroll    *EnrollInternHandler
	submit    *SubmitTaskHandler
	review    *ReviewSubmissionHandler
	finalize  *FinalizeEnrollmentHandler
}

func newFixture(t *testing.T, prog *program.Program) *fixture {
	t.Helper()

	f := &fixture{
		enrollments: newMemEnrollmentRepo(),
		programs:    newMemProgramRepo(prog),
		submissions: newMemSubmissionRepo(),
		unlocks:     newMemUnlockRepo(),
		validations: newMemValidationRepo(),
		publisher:   &capturingPublisher{},
		clock:       shared.NewFixedClock(baseTime),
	}

	engine := scoring.DefaultEngine()
	f.scheduler = NewUnlockScheduler(f.unlocks, f.submissions, f.clock)
	f.enroll = NewEnrollInternHandler(f.enrollments, f.programs, f.scheduler, f.clock)
	f.finalize = NewFinalizeEnrollmentHandler(
		f.enrollments, f.programs, f.submissions, engine, f.publisher, f.clock)
	f.review = NewReviewSubmissionHandler(
		f.submissions, f.enrollments, f.programs, f.scheduler, f.finalize, engine, f.publisher, f.clock)
	f.submit = NewSubmitTaskHandler(
		f.submissions, f.enrollments, f.programs, f.validations, f.scheduler, f.clock)

	return f
}

// mustEnroll enrolls intern-1 and returns the enrollment ID.
func (f *fixture) mustEnroll(t *testing.T, programID string) string {
	t.Helper()
	res, err := f.enroll.Handle(context.Background(), EnrollInternCommand{
		InternID:  "intern-1",
		ProgramID: programID,
	})
	require.NoError(t, err)
	return res.EnrollmentID
}

// mustSubmit submits the task and returns the submission ID.
func (f *fixture) mustSubmit(t *testing.T, enrollmentID string, taskNumber int) string {
	t.Helper()
	res, err := f.submit.Handle(context.Background(), SubmitTaskCommand{
		EnrollmentID: enrollmentID,
		TaskNumber:   taskNumber,
		Artifact:     repoArtifact(),
	})
	require.NoError(t, err)
	return res.SubmissionID
}

// mustApprove reviews the submission with an approval.
func (f *fixture) mustApprove(t *testing.T, submissionID string, score float64) *ReviewSubmissionResult {
	t.Helper()
	res, err := f.review.Handle(context.Background(), ReviewSubmissionCommand{
		SubmissionID: submissionID,
		ReviewerID:   "reviewer-1",
		Decision:     DecisionApprove,
		Score:        &score,
	})
	require.NoError(t, err)
	return res
}

func repoArtifact() submission.Artifact {
	return submission.Artifact{Kind: submission.ArtifactRepo, Locator: "https://git.example/solution"}
}

// threeTaskProgram builds a program with three mandatory 10-point tasks,
// a one-hour unlock wait, three attempts, and a 60% pass threshold.
func threeTaskProgram(t *testing.T) *program.Program {
	t.Helper()

	tasks := make([]program.Task, 0, 3)
	for i := 1; i <= 3; i++ {
		tasks = append(tasks, program.Task{
			ID:                fmt.Sprintf("task-%d", i),
			ProgramID:         "prog-1",
			Number:            program.TaskNumber(i),
			Title:             fmt.Sprintf("Task %d", i),
			MaxPoints:         10,
			WaitAfterApproval: time.Hour,
			Mandatory:         true,
		})
	}

	prog, err := program.NewProgram(program.NewProgramParams{
		ID:            "prog-1",
		Name:          "Backend Internship",
		PassThreshold: 60,
		MaxAttempts:   3,
		Tasks:         tasks,
	})
	require.NoError(t, err)
	return prog
}

// premiumProgram builds a two-task program whose second task is premium.
func premiumProgram(t *testing.T) *program.Program {
	t.Helper()

	prog, err := program.NewProgram(program.NewProgramParams{
		ID:            "prog-premium",
		Name:          "Premium Track",
		PassThreshold: 50,
		MaxAttempts:   2,
		Tasks: []program.Task{
			{
				ID:        "ptask-1",
				ProgramID: "prog-premium",
				Number:    1,
				Title:     "Warmup",
				MaxPoints: 10,
				Mandatory: true,
			},
			{
				ID:                "ptask-2",
				ProgramID:         "prog-premium",
				Number:            2,
				Title:             "Premium Capstone",
				MaxPoints:         20,
				WaitAfterApproval: time.Hour,
				Mandatory:         false,
				Premium:           true,
			},
		},
	})
	require.NoError(t, err)
	return prog
}
