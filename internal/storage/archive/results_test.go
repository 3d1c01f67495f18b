package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/backgrid/internal/backtest"
	"github.com/newthinker/backgrid/internal/config"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultKey(t *testing.T) {
	at := time.Date(2025, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	assert.Equal(t, "results/2025/03/manual-20250309-213000.json", ResultKey("manual-20250309-213000", at))
}

func sampleResult(id string, created time.Time) *backtest.Result {
	return &backtest.Result{
		JobID:       id,
		Strategy:    "ma_crossover",
		Status:      backtest.StatusCompleted,
		SharpeRatio: 1.1,
		MaxDrawdown: -0.05,
		TotalReturn: 0.2,
		EquityCurve: []float64{10000, 10100, 12000},
		CreatedAt:   created,
	}
}

func TestResultArchive_SaveLoad(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	a := NewResultArchive(fs, nil)
	ctx := context.Background()

	created := time.Date(2025, 1, 15, 12, 34, 56, 0, time.UTC)
	key, err := a.Save(ctx, sampleResult("manual-20250115-123456", created))
	require.NoError(t, err)
	assert.Equal(t, "results/2025/01/manual-20250115-123456.json", key)

	got, err := a.Load(ctx, "manual-20250115-123456", created)
	require.NoError(t, err)
	assert.Equal(t, []float64{10000, 10100, 12000}, []float64(got.EquityCurve))
	assert.Equal(t, -0.05, got.MaxDrawdown)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestResultArchive_LoadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	a := NewResultArchive(fs, nil)

	_, err := a.Load(context.Background(), "nope", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrJobNotFound))
}

func TestResultArchive_SaveRequiresJobID(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	a := NewResultArchive(fs, nil)

	_, err := a.Save(context.Background(), &backtest.Result{})
	assert.Error(t, err)
}

func TestResultArchive_ListMonth(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	a := NewResultArchive(fs, nil)
	ctx := context.Background()

	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	for _, r := range []*backtest.Result{
		sampleResult("job-b", jan),
		sampleResult("job-a", jan),
		sampleResult("job-c", feb),
	} {
		_, err := a.Save(ctx, r)
		require.NoError(t, err)
	}

	ids, err := a.ListMonth(ctx, 2025, time.January)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-a", "job-b"}, ids)
}

func TestNew(t *testing.T) {
	none, err := New(config.ArchiveConfig{Type: "none"})
	require.NoError(t, err)
	assert.Nil(t, none)

	local, err := New(config.ArchiveConfig{Type: "localfs", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, local)

	remote, err := New(config.ArchiveConfig{Type: "s3", S3: config.S3Config{Bucket: "b"}})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, remote)

	_, err = New(config.ArchiveConfig{Type: "ftp"})
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}
