package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
)

func newTestCache(t *testing.T) (*LeaderboardCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewLeaderboardCache(NewCacheFromClient(client)), mr
}

func sampleRows() []enrollment.LeaderboardRow {
	return []enrollment.LeaderboardRow{
		{EnrollmentID: "enr-1", InternID: "int-1", ProgramID: "prog-1", Score: 92.5, Completed: true},
		{EnrollmentID: "enr-2", InternID: "int-2", ProgramID: "prog-1", Score: 80, Completed: false},
		{EnrollmentID: "enr-3", InternID: "int-3", ProgramID: "prog-1", Score: 61.25, Completed: false},
	}
}

func TestLeaderboardCache_MissReturnsEmpty(t *testing.T) {
	cache, _ := newTestCache(t)

	rows, err := cache.GetCachedTop(context.Background(), "prog-1", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLeaderboardCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheTop(ctx, "prog-1", sampleRows(), time.Minute))

	rows, err := cache.GetCachedTop(ctx, "prog-1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Ordered by score descending.
	assert.Equal(t, "enr-1", rows[0].EnrollmentID)
	assert.Equal(t, "enr-2", rows[1].EnrollmentID)
	assert.Equal(t, "enr-3", rows[2].EnrollmentID)

	assert.Equal(t, 92.5, rows[0].Score)
	assert.True(t, rows[0].Completed)
	assert.Equal(t, "int-2", rows[1].InternID)
}

func TestLeaderboardCache_LimitTruncates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheTop(ctx, "prog-1", sampleRows(), time.Minute))

	rows, err := cache.GetCachedTop(ctx, "prog-1", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "enr-1", rows[0].EnrollmentID)
	assert.Equal(t, "enr-2", rows[1].EnrollmentID)
}

func TestLeaderboardCache_ScopesAreIsolated(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheTop(ctx, "prog-1", sampleRows(), time.Minute))

	rows, err := cache.GetCachedTop(ctx, "prog-2", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = cache.GetCachedTop(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, rows, "global scope is cached separately from program scopes")
}

func TestLeaderboardCache_UpdateScoreReorders(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheTop(ctx, "prog-1", sampleRows(), time.Minute))
	require.NoError(t, cache.UpdateScore(ctx, "prog-1", "enr-3", 99))

	rows, err := cache.GetCachedTop(ctx, "prog-1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "enr-3", rows[0].EnrollmentID)
	assert.Equal(t, float64(99), rows[0].Score)
}

func TestLeaderboardCache_UpdateScoreOnColdCacheIsNoop(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	// No CacheTop beforehand: the update must not create a partial
	// leaderboard out of a single member.
	require.NoError(t, cache.UpdateScore(ctx, "prog-1", "enr-1", 50))

	rows, err := cache.GetCachedTop(ctx, "prog-1", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLeaderboardCache_Invalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheTop(ctx, "prog-1", sampleRows(), time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "prog-1"))

	rows, err := cache.GetCachedTop(ctx, "prog-1", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestLeaderboardCache_TTLExpires(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.CacheTop(ctx, "prog-1", sampleRows(), 30*time.Second))

	mr.FastForward(31 * time.Second)

	rows, err := cache.GetCachedTop(ctx, "prog-1", 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
