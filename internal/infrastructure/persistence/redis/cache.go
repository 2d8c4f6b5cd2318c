// Package redis implements Redis caching for the internship hub.
// Its main consumer is the leaderboard cache: hot top-N rankings are
// served from sorted sets so that leaderboard reads do not hit PostgreSQL
// on every request.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheConnection is returned when the initial Redis handshake fails.
var ErrCacheConnection = errors.New("cache: connection failed")

// ErrCacheSerialization is returned when serialization/deserialization fails.
var ErrCacheSerialization = errors.New("cache: serialization failed")

// ErrCacheKeyEmpty is returned when an empty key is provided.
var ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

// Config holds Redis connection settings.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int
	MaxRetries   int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig targets a local unauthenticated Redis.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr renders the host:port dial address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Cache owns the Redis client shared by the cache adapters in this package.
type Cache struct {
	client *redis.Client
}

// NewCache dials Redis and verifies the connection with a ping. The caller
// treats an error as "run without cache", not as a startup failure.
func NewCache(cfg Config) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &Cache{client: client}, nil
}

// NewCacheFromClient wraps an existing client. Used in tests where the
// client points at an in-process Redis.
func NewCacheFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Client exposes the underlying client for sorted-set and hash commands.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Ping checks reachability. Used by the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
