package domain

import (
	"context"
	"time"
)

// Cache defines the caching capability used by the API layer to avoid
// recomputing regional benchmarks on every request, and by the worker to
// throttle alert storms. The analytics core itself never caches.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetBenchmark retrieves a cached regional benchmark.
	// Returns nil, nil on a miss.
	GetBenchmark(ctx context.Context, key string) (*RegionalBenchmark, error)

	// SetBenchmark caches a regional benchmark.
	SetBenchmark(ctx context.Context, key string, b *RegionalBenchmark, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the new
	// value. Used to cap the alert rate per (SKU, region) window.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// BenchmarkCacheKey builds the cache key for a (region, category) benchmark.
func BenchmarkCacheKey(region, category string) string {
	if region == "" {
		region = "all"
	}
	if category == "" {
		category = "all"
	}
	return "benchmark:" + region + ":" + category
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `toml:"type"`

	// Local (in-process) settings
	LocalMaxSize int           `toml:"local_max_size"`
	LocalTTL     time.Duration `toml:"local_ttl"`

	// Redis settings
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// EnableTwoPhase layers the local LRU in front of Redis.
	EnableTwoPhase bool `toml:"enable_two_phase"`

	// BenchmarkTTL bounds staleness of cached benchmarks.
	BenchmarkTTL time.Duration `toml:"benchmark_ttl"`
}
