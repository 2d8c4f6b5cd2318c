// Package scoring implements the score engine: a pure computation that turns
// an enrollment's submission history and the program's task list into a final
// percentage score, a penalty/bonus breakdown, and a pass/fail eligibility
// decision. No side effects, no I/O.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/internforge/internship-hub/internal/domain/program"
	"github.com/internforge/internship-hub/internal/domain/submission"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Engine holds the scoring policy knobs. The zero value is not usable;
// construct with NewEngine or DefaultEngine.
type Engine struct {
	// SkipPenalty is subtracted per skipped task, in percentage points.
	SkipPenalty float64

	// LatePenalty is subtracted per late submission, in percentage points.
	LatePenalty float64

	// ConsistencyMaxBonus is the cap of the consistency bonus.
	ConsistencyMaxBonus float64

	// ConsistencySigmaDays is the interval standard deviation (in days)
	// at which the consistency bonus reaches zero.
	ConsistencySigmaDays float64

	// MinApprovedForBonus is the minimum number of approved submissions
	// required before cadence carries any signal. Below it the bonus is 0:
	// insufficient data, not zero consistency.
	MinApprovedForBonus int
}

// DefaultEngine returns the engine with the standard grading policy:
// 5 points per skip, 10 per late submission, up to +5 consistency bonus
// vanishing at a 7-day interval deviation, 3 approvals minimum.
func DefaultEngine() Engine {
	return Engine{
		SkipPenalty:          5,
		LatePenalty:          10,
		ConsistencyMaxBonus:  5,
		ConsistencySigmaDays: 7,
		MinApprovedForBonus:  3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BREAKDOWN
// ══════════════════════════════════════════════════════════════════════════════

// Breakdown is the full result of a score computation.
type Breakdown struct {
	// BaseScore = 100 * earned / totalMaxPoints, before adjustments.
	BaseScore float64 `json:"base_score"`

	// SkippedPenalty = SkipPenalty * skipped tasks.
	SkippedPenalty float64 `json:"skipped_penalty"`

	// LatePenalty = LatePenalty * late submissions.
	LatePenalty float64 `json:"late_penalty"`

	// ConsistencyBonus rewards low variance in submission cadence.
	ConsistencyBonus float64 `json:"consistency_bonus"`

	// FinalScore = clamp(base - penalties + bonus, 0, 100), 2 decimals.
	FinalScore float64 `json:"final_score"`

	// Eligible is true when the final score meets the program threshold
	// AND every task has a terminal disposition. A partially-attempted
	// program is never eligible regardless of score.
	Eligible bool `json:"eligible"`

	// Counters behind the numbers, surfaced for dashboards.
	TotalTasks     int `json:"total_tasks"`
	SubmittedTasks int `json:"submitted_tasks"`
	SkippedTasks   int `json:"skipped_tasks"`
	LateCount      int `json:"late_count"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTATION
// ══════════════════════════════════════════════════════════════════════════════

// Compute runs the full scoring formula over the submission history.
//
// A task counts as submitted when it has an approved submission; a task whose
// attempts were exhausted, or which was never attempted, counts as skipped.
// Skipped tasks still count against the denominator. Negative or missing
// scores earn 0 points but do not move a task into the skipped bucket.
//
// The eligibility flag is meaningful only once every task is terminal;
// intermediate callers (running score, leaderboard) read FinalScore and
// ignore Eligible.
func (e Engine) Compute(prog *program.Program, history []*submission.Submission) Breakdown {
	b := Breakdown{TotalTasks: prog.TaskCount()}

	// A program with zero tasks produces a zero score and is never
	// eligible - guard against a 0/0 silently passing the threshold.
	if b.TotalTasks == 0 {
		return b
	}

	approvedByTask := make(map[int]*submission.Submission, len(history))
	var approvedTimes []time.Time

	for _, s := range history {
		if s.Late {
			b.LateCount++
		}
		if s.Status == submission.StatusApproved {
			approvedByTask[s.TaskNumber] = s
			approvedTimes = append(approvedTimes, s.SubmittedAt)
		}
	}

	var earned float64
	for _, s := range approvedByTask {
		earned += s.EarnedPoints()
	}

	b.SubmittedTasks = len(approvedByTask)
	b.SkippedTasks = b.TotalTasks - b.SubmittedTasks

	totalMax := prog.TotalMaxPoints()
	if totalMax > 0 {
		b.BaseScore = 100 * earned / float64(totalMax)
	}

	b.SkippedPenalty = e.SkipPenalty * float64(b.SkippedTasks)
	b.LatePenalty = e.LatePenalty * float64(b.LateCount)
	b.ConsistencyBonus = e.consistencyBonus(approvedTimes)

	final := b.BaseScore - b.SkippedPenalty - b.LatePenalty + b.ConsistencyBonus
	b.FinalScore = round2(clamp(final, 0, 100))
	b.BaseScore = round2(b.BaseScore)
	b.SkippedPenalty = round2(b.SkippedPenalty)
	b.LatePenalty = round2(b.LatePenalty)
	b.ConsistencyBonus = round2(b.ConsistencyBonus)

	b.Eligible = b.SubmittedTasks == b.TotalTasks &&
		b.FinalScore >= prog.PassThreshold

	return b
}

// consistencyBonus computes the cadence bonus from approved submission
// timestamps: the population standard deviation of inter-submission
// intervals, in days, mapped onto [0, max] via max(0, 1 - sigma/days)*max.
func (e Engine) consistencyBonus(times []time.Time) float64 {
	if len(times) < e.MinApprovedForBonus {
		return 0
	}

	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	intervals := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i].Sub(sorted[i-1]).Hours()/24)
	}

	sigma := populationStdDev(intervals)
	score := math.Max(0, 1-sigma/e.ConsistencySigmaDays)
	return score * e.ConsistencyMaxBonus
}

// populationStdDev computes the population (not sample) standard deviation.
func populationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
