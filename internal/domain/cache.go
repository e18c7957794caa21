package domain

import (
	"context"
	"time"
)

// Cache defines the interface for explanation and verdict caching.
// Standalone deployments use a local LRU; clusters layer Redis behind it
// so the explain endpoint serves recent traces without a database read.
type Cache interface {
	// Get retrieves a raw value. Returns nil, nil on miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a raw value with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// GetExplanation retrieves a cached evaluation trace.
	// Returns nil, nil on miss.
	GetExplanation(ctx context.Context, evaluationID string) (*Explanation, error)

	// SetExplanation caches an evaluation trace.
	SetExplanation(ctx context.Context, exp *Explanation, ttl time.Duration) error

	// IncrementCounter atomically increments a windowed counter and
	// returns the new value.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU settings (standalone profile, or L1 when two-phase)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (cluster profile)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase checks the local LRU before Redis.
	EnableTwoPhase bool
}
