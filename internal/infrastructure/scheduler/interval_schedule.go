package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires a job at a fixed cadence. Runs are aligned to
// interval boundaries (for a 1m interval the job fires at :00 of every
// minute), so consecutive worker restarts do not drift the sweep times.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a schedule with the given cadence.
// Intervals below one second are rounded up to one second.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

// Next returns the next boundary-aligned firing time strictly after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Truncate(s.Interval).Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
