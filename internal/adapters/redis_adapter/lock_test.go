// internal/adapters/redis_adapter/lock_test.go
package redis_a_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/salesflow-be/internal/adapters/redis_adapter"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/test/helpers"
)

func newLockManager(t *testing.T, timeout time.Duration) (*redis_a.LockManager, *helpers.TestRedis) {
	t.Helper()
	r := helpers.SetupTestRedis(t)
	lm := redis_a.NewLockManager(r.Client, redis_a.LockConfig{
		TTL:        time.Minute,
		Timeout:    timeout,
		RetryDelay: 2 * time.Millisecond,
	}, helpers.TestLogger())
	return lm, r
}

func TestLockManager_AcquireAndRelease(t *testing.T) {
	lm, r := newLockManager(t, time.Second)
	ctx := context.Background()

	release, err := lm.Acquire(ctx, []int64{9, 3, 3})
	require.NoError(t, err)
	assert.True(t, r.Server.Exists("lock:product:3"))
	assert.True(t, r.Server.Exists("lock:product:9"))

	release()
	release()
	assert.False(t, r.Server.Exists("lock:product:3"))
	assert.False(t, r.Server.Exists("lock:product:9"))
}

func TestLockManager_TimesOutAndReleasesPartialLocks(t *testing.T) {
	lm, r := newLockManager(t, 30*time.Millisecond)
	ctx := context.Background()

	// Another process holds product 5.
	require.NoError(t, r.Server.Set("lock:product:5", "someone-else"))

	_, err := lm.Acquire(ctx, []int64{5, 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	// Product 1 came first in id order and must have been released.
	assert.False(t, r.Server.Exists("lock:product:1"))
	got, _ := r.Server.Get("lock:product:5")
	assert.Equal(t, "someone-else", got)
}

func TestLockManager_ReleaseDoesNotDeleteForeignToken(t *testing.T) {
	lm, r := newLockManager(t, time.Second)
	ctx := context.Background()

	release, err := lm.Acquire(ctx, []int64{4})
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	r.Server.Del("lock:product:4")
	require.NoError(t, r.Server.Set("lock:product:4", "new-holder"))

	release()
	got, _ := r.Server.Get("lock:product:4")
	assert.Equal(t, "new-holder", got)
}

func TestLockManager_ContextCancelled(t *testing.T) {
	lm, r := newLockManager(t, 0)
	require.NoError(t, r.Server.Set("lock:product:2", "busy"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := lm.Acquire(ctx, []int64{2})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockManager_SerializesHolders(t *testing.T) {
	lm, _ := newLockManager(t, 5*time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		overlap bool
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := lm.Acquire(ctx, []int64{1, 2})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > 1 {
				overlap = true
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
}
