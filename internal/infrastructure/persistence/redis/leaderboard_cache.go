// Package redis implements Redis caching for the internship hub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/internforge/internship-hub/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Key patterns for leaderboard cache. The empty program ID maps to the
// global leaderboard across all programs.
const (
	// keyLeaderboardScore is the sorted set for score rankings.
	keyLeaderboardScore = "leaderboard:score:"

	// keyLeaderboardInfo is the hash for row details.
	keyLeaderboardInfo = "leaderboard:info:"

	// globalScope is used when no program ID is specified.
	globalScope = "all"
)

// LeaderboardCache provides high-performance leaderboard reads using Redis
// Sorted Sets.
//
// Architecture:
//   - Sorted Set "leaderboard:score:{program}" stores enrollmentID -> score
//   - Hash "leaderboard:info:{program}" stores enrollmentID -> row JSON
//
// This design allows O(log N + M) range queries for top-M rankings.
// PostgreSQL remains the source of truth: the cache is warmed on read
// misses and expires after a short TTL.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// cachedRow is the JSON shape stored in the info hash.
type cachedRow struct {
	EnrollmentID string  `json:"enrollment_id"`
	InternID     string  `json:"intern_id"`
	ProgramID    string  `json:"program_id"`
	Score        float64 `json:"score"`
	Completed    bool    `json:"completed"`
}

func scope(programID string) string {
	if programID == "" {
		return globalScope
	}
	return programID
}

// GetCachedTop returns the cached top-N rows ordered by score descending.
// An empty result means cache miss: the caller should fall back to the
// repository and warm the cache with CacheTop.
func (l *LeaderboardCache) GetCachedTop(ctx context.Context, programID string, limit int) ([]enrollment.LeaderboardRow, error) {
	if limit <= 0 {
		return []enrollment.LeaderboardRow{}, nil
	}

	sc := scope(programID)
	scoreKey := keyLeaderboardScore + sc
	infoKey := keyLeaderboardInfo + sc

	ids, err := l.cache.Client().ZRevRange(ctx, scoreKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return []enrollment.LeaderboardRow{}, nil
	}

	data, err := l.cache.Client().HMGet(ctx, infoKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard hmget: %w", err)
	}

	rows := make([]enrollment.LeaderboardRow, 0, len(ids))
	for _, v := range data {
		str, ok := v.(string)
		if !ok {
			// Info hash out of sync with the sorted set. Treat the whole
			// read as a miss so the caller rebuilds from PostgreSQL.
			return []enrollment.LeaderboardRow{}, nil
		}

		var row cachedRow
		if err := json.Unmarshal([]byte(str), &row); err != nil {
			return []enrollment.LeaderboardRow{}, nil
		}

		rows = append(rows, enrollment.LeaderboardRow{
			EnrollmentID: row.EnrollmentID,
			InternID:     row.InternID,
			ProgramID:    row.ProgramID,
			Score:        row.Score,
			Completed:    row.Completed,
		})
	}

	return rows, nil
}

// CacheTop replaces the cached leaderboard with the given rows.
func (l *LeaderboardCache) CacheTop(ctx context.Context, programID string, rows []enrollment.LeaderboardRow, ttl time.Duration) error {
	sc := scope(programID)
	scoreKey := keyLeaderboardScore + sc
	infoKey := keyLeaderboardInfo + sc

	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, scoreKey, infoKey)

	if len(rows) == 0 {
		_, err := pipe.Exec(ctx)
		return err
	}

	zMembers := make([]redis.Z, 0, len(rows))
	hashData := make(map[string]interface{}, len(rows))

	for _, row := range rows {
		if row.EnrollmentID == "" {
			continue
		}

		zMembers = append(zMembers, redis.Z{
			Score:  row.Score,
			Member: row.EnrollmentID,
		})

		data, err := json.Marshal(cachedRow{
			EnrollmentID: row.EnrollmentID,
			InternID:     row.InternID,
			ProgramID:    row.ProgramID,
			Score:        row.Score,
			Completed:    row.Completed,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		hashData[row.EnrollmentID] = data
	}

	if len(zMembers) > 0 {
		pipe.ZAdd(ctx, scoreKey, zMembers...)
	}
	if len(hashData) > 0 {
		pipe.HSet(ctx, infoKey, hashData)
	}

	if ttl > 0 {
		pipe.Expire(ctx, scoreKey, ttl)
		pipe.Expire(ctx, infoKey, ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// UpdateScore updates a single enrollment's score in an already-warm
// cache. A cold cache is left untouched: the next read rebuilds it from
// PostgreSQL, so only existing members are updated (ZAdd XX).
func (l *LeaderboardCache) UpdateScore(ctx context.Context, programID, enrollmentID string, score float64) error {
	if enrollmentID == "" {
		return ErrCacheKeyEmpty
	}

	sc := scope(programID)
	scoreKey := keyLeaderboardScore + sc
	infoKey := keyLeaderboardInfo + sc

	if err := l.cache.Client().ZAddXX(ctx, scoreKey, redis.Z{
		Score:  score,
		Member: enrollmentID,
	}).Err(); err != nil {
		return fmt.Errorf("leaderboard zadd: %w", err)
	}

	// Keep the info hash in sync for members that are cached.
	str, err := l.cache.Client().HGet(ctx, infoKey, enrollmentID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("leaderboard hget: %w", err)
	}

	var row cachedRow
	if err := json.Unmarshal([]byte(str), &row); err != nil {
		// Corrupt entry, drop it so the next read rebuilds.
		return l.cache.Client().HDel(ctx, infoKey, enrollmentID).Err()
	}

	row.Score = score
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	return l.cache.Client().HSet(ctx, infoKey, enrollmentID, data).Err()
}

// Invalidate removes all cached data for a program scope.
func (l *LeaderboardCache) Invalidate(ctx context.Context, programID string) error {
	sc := scope(programID)
	return l.cache.Client().Del(ctx, keyLeaderboardScore+sc, keyLeaderboardInfo+sc).Err()
}
