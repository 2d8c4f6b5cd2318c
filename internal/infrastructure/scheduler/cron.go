package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// CronSchedule adapts a standard 5-field cron expression
// (minute hour day-of-month month day-of-week) to Schedule, so cron-timed
// jobs register on the same Scheduler as interval-timed ones.
type CronSchedule struct {
	raw  string
	spec cron.Schedule
}

// ParseCronExpression parses a 5-field cron expression. Firing times are
// evaluated in the location of the time passed to Next, which the Scheduler
// sets from its configured timezone.
func ParseCronExpression(expr string) (*CronSchedule, error) {
	spec, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &CronSchedule{raw: expr, spec: spec}, nil
}

// MustParseCronExpression parses or panics. For literal expressions only.
func MustParseCronExpression(expr string) *CronSchedule {
	s, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Next returns the next firing time strictly after t.
func (s *CronSchedule) Next(t time.Time) time.Time {
	return s.spec.Next(t)
}

func (s *CronSchedule) String() string {
	return s.raw
}
