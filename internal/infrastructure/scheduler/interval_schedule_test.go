package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalScheduleNext(t *testing.T) {
	t.Run("aligns mid-interval times to the next boundary", func(t *testing.T) {
		s := NewIntervalSchedule(time.Minute)

		at := time.Date(2026, 7, 1, 10, 0, 30, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 7, 1, 10, 1, 0, 0, time.UTC), s.Next(at))

		at = time.Date(2026, 7, 1, 10, 0, 59, 999_999_999, time.UTC)
		assert.Equal(t, time.Date(2026, 7, 1, 10, 1, 0, 0, time.UTC), s.Next(at))
	})

	t.Run("is strictly after an exact boundary", func(t *testing.T) {
		s := NewIntervalSchedule(time.Minute)

		boundary := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
		next := s.Next(boundary)

		assert.True(t, next.After(boundary))
		assert.Equal(t, boundary.Add(time.Minute), next)
	})

	t.Run("larger intervals align to their own multiples", func(t *testing.T) {
		s := NewIntervalSchedule(15 * time.Minute)

		at := time.Date(2026, 7, 1, 10, 7, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 7, 1, 10, 15, 0, 0, time.UTC), s.Next(at))
	})

	t.Run("successive runs do not drift", func(t *testing.T) {
		s := NewIntervalSchedule(30 * time.Second)

		at := time.Date(2026, 7, 1, 10, 0, 11, 0, time.UTC)
		first := s.Next(at)
		second := s.Next(first)

		assert.Equal(t, time.Date(2026, 7, 1, 10, 0, 30, 0, time.UTC), first)
		assert.Equal(t, time.Date(2026, 7, 1, 10, 1, 0, 0, time.UTC), second)
	})
}

func TestNewIntervalScheduleClampsSubSecond(t *testing.T) {
	assert.Equal(t, time.Second, NewIntervalSchedule(50*time.Millisecond).Interval)
	assert.Equal(t, time.Second, NewIntervalSchedule(0).Interval)
	assert.Equal(t, 5*time.Second, NewIntervalSchedule(5*time.Second).Interval)
}

func TestCronScheduleNext(t *testing.T) {
	s, err := ParseCronExpression("0 9 * * *")
	require.NoError(t, err)

	at := time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC)
	next := s.Next(at)

	assert.Equal(t, time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC), next)
	assert.Equal(t, "0 9 * * *", s.String())
}

func TestParseCronExpressionRejectsGarbage(t *testing.T) {
	_, err := ParseCronExpression("not a cron line")
	require.Error(t, err)
}
