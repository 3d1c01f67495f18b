// Package jobtest holds a behavioural suite shared by job.Repository
// implementations.
package jobtest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/backtest"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 15, 12, 34, 56, 0, time.UTC)

// NewJob builds a completed job created at base plus offset seconds.
func NewJob(id string, offset int) *job.Job {
	created := base.Add(time.Duration(offset) * time.Second)
	return &job.Job{
		ID:       id,
		Symbol:   "AAPL",
		Strategy: "ma_crossover",
		Params:   strategy.Params{"fast": 10, "slow": 30},
		Start:    "2020-01-01",
		End:      "2023-12-31",
		Status:   job.StatusCompleted,
		Result: &backtest.Result{
			JobID:          id,
			Strategy:       "ma_crossover",
			Status:         backtest.StatusCompleted,
			SharpeRatio:    1.23,
			MaxDrawdown:    -0.18,
			TotalReturn:    0.45,
			EquityCurve:    core.EquityCurve{10000, 10200, 10500},
			RuntimeSeconds: 0.01,
			CreatedAt:      created,
		},
		CreatedAt:  created,
		StartedAt:  created.Add(-time.Second),
		FinishedAt: created,
	}
}

// Run exercises Save, Get, List and Count against a fresh repository
// returned by newRepo for each subtest.
func Run(t *testing.T, newRepo func(t *testing.T) job.Repository) {
	ctx := context.Background()

	t.Run("save and get", func(t *testing.T) {
		repo := newRepo(t)
		want := NewJob("manual-20250115-123456", 0)
		require.NoError(t, repo.Save(ctx, want))

		got, err := repo.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, "AAPL", got.Symbol)
		assert.Equal(t, job.StatusCompleted, got.Status)
		assert.Equal(t, "2023-12-31", got.End)
		require.NotNil(t, got.Result)
		assert.Equal(t, want.Result.EquityCurve, got.Result.EquityCurve)
		assert.Equal(t, want.Result.SharpeRatio, got.Result.SharpeRatio)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

		fast, err := got.Params.Int("fast", 0)
		require.NoError(t, err)
		assert.Equal(t, 10, fast)
	})

	t.Run("not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "nonexistent")
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrJobNotFound))
	})

	t.Run("save replaces", func(t *testing.T) {
		repo := newRepo(t)
		j := NewJob("job-1", 0)
		require.NoError(t, repo.Save(ctx, j))

		j.Status = job.StatusFailed
		j.Result = nil
		j.Error = "boom"
		require.NoError(t, repo.Save(ctx, j))

		got, err := repo.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, job.StatusFailed, got.Status)
		assert.Equal(t, "boom", got.Error)
		assert.Nil(t, got.Result)

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := newRepo(t)
		for i, offset := range []int{10, 30, 20} {
			require.NoError(t, repo.Save(ctx, NewJob(fmt.Sprintf("job-%d", i), offset)))
		}

		jobs, err := repo.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, []string{"job-1", "job-2", "job-0"}, ids(jobs))

		limited, err := repo.List(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"job-1", "job-2"}, ids(limited))
	})

	t.Run("returned jobs are copies", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, NewJob("job-1", 0)))

		got, err := repo.Get(ctx, "job-1")
		require.NoError(t, err)
		got.Result.EquityCurve[0] = -1
		got.Params["fast"] = 99

		again, err := repo.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, 10000.0, again.Result.EquityCurve[0])
		fast, _ := again.Params.Int("fast", 0)
		assert.Equal(t, 10, fast)
	})
}

func ids(jobs []job.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
