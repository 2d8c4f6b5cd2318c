package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
	"github.com/internforge/internship-hub/internal/domain/shared"
)

var baseTime = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type scoreUpdate struct {
	programID    string
	enrollmentID string
	score        float64
}

// recordingCache записывает вызовы UpdateScore по лидербордам.
type recordingCache struct {
	updates []scoreUpdate
}

func (c *recordingCache) GetCachedTop(_ context.Context, _ string, _ int) ([]enrollment.LeaderboardRow, error) {
	return nil, nil
}

func (c *recordingCache) CacheTop(_ context.Context, _ string, _ []enrollment.LeaderboardRow, _ time.Duration) error {
	return nil
}

func (c *recordingCache) UpdateScore(_ context.Context, programID, enrollmentID string, score float64) error {
	c.updates = append(c.updates, scoreUpdate{programID, enrollmentID, score})
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

func TestSubmissionApprovedUpdatesBothLeaderboardScopes(t *testing.T) {
	cache := &recordingCache{}
	handler := NewSubmissionReviewedHandler(cache, nil, shared.NewFixedClock(baseTime), nil)

	event := shared.NewSubmissionApprovedEvent(
		"sub-1", "enr-1", "intern-1", "prog-1", 2, 10, 47.5, time.Time{},
	)

	require.NoError(t, handler.Handle(event))

	require.Len(t, cache.updates, 2)
	assert.Equal(t, scoreUpdate{"", "enr-1", 47.5}, cache.updates[0])
	assert.Equal(t, scoreUpdate{"prog-1", "enr-1", 47.5}, cache.updates[1])
}

func TestSubmissionApprovedWithoutProgramUpdatesGlobalOnly(t *testing.T) {
	cache := &recordingCache{}
	handler := NewSubmissionReviewedHandler(cache, nil, shared.NewFixedClock(baseTime), nil)

	event := shared.NewSubmissionApprovedEvent(
		"sub-1", "enr-1", "intern-1", "", 2, 10, 47.5, time.Time{},
	)

	require.NoError(t, handler.Handle(event))

	require.Len(t, cache.updates, 1)
	assert.Equal(t, scoreUpdate{"", "enr-1", 47.5}, cache.updates[0])
}

func TestSubmissionReviewedWithoutCacheDoesNotPanic(t *testing.T) {
	handler := NewSubmissionReviewedHandler(nil, nil, shared.NewFixedClock(baseTime), nil)

	event := shared.NewSubmissionApprovedEvent(
		"sub-1", "enr-1", "intern-1", "prog-1", 1, 10, 10, time.Time{},
	)

	require.NoError(t, handler.Handle(event))
}
