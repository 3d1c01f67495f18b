package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/api/job/jobtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Repository(t *testing.T) {
	jobtest.Run(t, func(t *testing.T) job.Repository {
		return job.NewMemoryStore(100, 0)
	})
}

func TestMemoryStore_MaxSize(t *testing.T) {
	ctx := context.Background()
	store := job.NewMemoryStore(2, 0)

	require.NoError(t, store.Save(ctx, jobtest.NewJob("job-1", 0)))
	require.NoError(t, store.Save(ctx, jobtest.NewJob("job-2", 1)))
	require.NoError(t, store.Save(ctx, jobtest.NewJob("job-3", 2))) // Should evict job-1

	_, err := store.Get(ctx, "job-1")
	assert.Error(t, err, "expected job-1 to be evicted")

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := job.NewMemoryStore(10, time.Hour)

	old := jobtest.NewJob("old", 0)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	fresh := jobtest.NewJob("fresh", 0)
	fresh.CreatedAt = time.Now()

	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, fresh))

	_, err := store.Get(ctx, "old")
	assert.Error(t, err)

	jobs, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "fresh", jobs[0].ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	store := job.NewMemoryStore(10, 0)
	assert.Error(t, store.Save(context.Background(), &job.Job{}))
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := job.NewMemoryStore(50, 0)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			for k := 0; k < 20; k++ {
				j := jobtest.NewJob("job", k)
				j.ID = j.ID + string(rune('a'+i)) + string(rune('a'+k))
				_ = store.Save(ctx, j)
				_, _ = store.List(ctx, 5)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}
