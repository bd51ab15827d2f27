// internal/adapters/redis_adapter/job_store_test.go
package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/salesflow-be/internal/adapters/redis_adapter"
	"github.com/ammerola/salesflow-be/internal/core/domain"
	"github.com/ammerola/salesflow-be/test/helpers"
)

func TestJobStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewJobStore(redis_a.NewCache(r.Client, time.Minute, helpers.TestLogger()), time.Hour)

	job := &domain.ImportJob{ID: "job-1", Status: domain.JobPending, FileName: "sales.csv", Actor: "clerk"}
	require.NoError(t, store.Save(ctx, job))
	assert.False(t, job.CreatedAt.IsZero())

	job.Status = domain.JobCompleted
	job.RowErrors = []domain.RowError{{Row: 3, Message: "quantity must be positive"}}
	require.NoError(t, store.Save(ctx, job))

	got, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, got.Status)
	assert.True(t, got.Finished())
	assert.Equal(t, job.RowErrors, got.RowErrors)

	ttl := r.Server.TTL("job:job-1")
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 1)
}

func TestJobStore_GetUnknownIsNotFound(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	store := redis_a.NewJobStore(redis_a.NewCache(r.Client, time.Minute, helpers.TestLogger()), 0)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
