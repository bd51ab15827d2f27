// internal/core/ports/cache.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/salesflow-be/internal/core/domain"
)

// CacheRepository defines the interface for cache operations
type CacheRepository interface {
	// Basic operations
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, keys ...string) (bool, error)

	// GetOrSet loads dest from cache, calling fetch and storing its
	// result on a miss.
	GetOrSet(ctx context.Context, key string, dest interface{},
		fetch func() (interface{}, error), ttl time.Duration) error

	// Conditional operations
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	// Utility operations
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

// JobStore tracks background import jobs for status polling
type JobStore interface {
	Save(ctx context.Context, job *domain.ImportJob) error
	Get(ctx context.Context, id string) (*domain.ImportJob, error)
}

// CacheInvalidator drops cached views derived from sales
type CacheInvalidator interface {
	InvalidateSales(ctx context.Context)
}
