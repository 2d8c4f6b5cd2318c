package enrollment

import (
	"context"
	"time"
)

// LeaderboardCache кеширует топ лидерборда. Реализация - Redis sorted set,
// находится в infrastructure/persistence/redis.
type LeaderboardCache interface {
	// GetCachedTop возвращает закешированный топ-N. Пустой срез без ошибки
	// означает промах кеша.
	GetCachedTop(ctx context.Context, programID string, limit int) ([]LeaderboardRow, error)

	// CacheTop перезаписывает кеш лидерборда программы.
	CacheTop(ctx context.Context, programID string, rows []LeaderboardRow, ttl time.Duration) error

	// UpdateScore обновляет балл одного зачисления в кеше.
	// Промах кеша не считается ошибкой.
	UpdateScore(ctx context.Context, programID, enrollmentID string, score float64) error

	// Invalidate сбрасывает кеш программы.
	Invalidate(ctx context.Context, programID string) error
}
