// internal/adapters/redis_adapter/lock.go
package redis_a

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/internal/core/ports"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockManager takes one redis key per product with SET NX PX. Keys are
// acquired in ascending id order; the TTL bounds how long a crashed holder
// can block others.
type LockManager struct {
	client  redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
	retry   time.Duration
	logger  *slog.Logger
}

var _ ports.LockManager = (*LockManager)(nil)

// LockConfig tunes the distributed lock
type LockConfig struct {
	TTL        time.Duration
	Timeout    time.Duration
	RetryDelay time.Duration
}

// NewLockManager creates a distributed lock manager
func NewLockManager(client redis.UniversalClient, cfg LockConfig, logger *slog.Logger) *LockManager {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Millisecond
	}
	return &LockManager{
		client:  client,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		retry:   cfg.RetryDelay,
		logger:  logger.With(slog.String("component", "redis_lock")),
	}
}

func lockKey(productID int64) string {
	return BuildKey(PrefixLock, "product", strconv.FormatInt(productID, 10))
}

// Acquire locks every product or none. It gives up with
// domain.ErrLockTimeout once the configured wait has passed.
func (l *LockManager) Acquire(ctx context.Context, productIDs []int64) (func(), error) {
	ids := sortedUnique(productIDs)
	token := uuid.NewString()

	waitCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	held := make([]string, 0, len(ids))
	for _, id := range ids {
		key := lockKey(id)
		if err := l.acquireOne(waitCtx, key, token); err != nil {
			l.releaseKeys(context.WithoutCancel(ctx), held, token)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("product %d: %w", id, domain.ErrLockTimeout)
			}
			return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.releaseKeys(context.WithoutCancel(ctx), held, token) })
	}, nil
}

// acquireOne retries SET NX with a capped backoff until ctx is done
func (l *LockManager) acquireOne(ctx context.Context, key, token string) error {
	delay := l.retry
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay < 200*time.Millisecond {
			delay *= 2
		}
	}
}

func (l *LockManager) releaseKeys(ctx context.Context, keys []string, token string) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Err(); err != nil && err != redis.Nil {
			l.logger.WarnContext(ctx, "failed to release product lock",
				slog.String("key", keys[i]),
				slog.String("error", err.Error()))
		}
	}
}

func sortedUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
