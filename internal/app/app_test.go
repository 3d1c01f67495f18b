package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/config"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/metrics"
	"github.com/newthinker/backgrid/internal/storage/archive"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	closes []float64
	err    error
	calls  int
	symbol string
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) (core.PriceSeries, error) {
	m.calls++
	m.symbol = symbol
	if m.err != nil {
		return nil, m.err
	}
	series := make(core.PriceSeries, len(m.closes))
	for i, c := range m.closes {
		series[i] = core.OHLCV{Symbol: symbol, Interval: interval, Close: c, Time: start.AddDate(0, 0, i)}
	}
	return series, nil
}

func uptrend(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 0.5*float64(i)
	}
	return closes
}

var today = time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, p *mockProvider, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithProvider(p), WithClock(func() time.Time { return today })}, opts...)
	a, err := New(context.Background(), config.Defaults(), nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_SubmitCompletes(t *testing.T) {
	p := &mockProvider{closes: uptrend(100)}
	a := newTestApp(t, p)
	ctx := context.Background()

	j, err := a.Submit(ctx, job.Request{
		Symbol:   " aapl ",
		Strategy: "ma_crossover",
		Params:   map[string]any{"fast": 5, "slow": 20},
		Start:    "2023-01-01",
		End:      "2023-12-31",
	})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", p.symbol)
	assert.Equal(t, "AAPL", j.Symbol)
	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Regexp(t, `^manual-\d{8}-\d{6}$`, j.ID)
	require.NotNil(t, j.Result)
	assert.Len(t, j.Result.EquityCurve, 100)
	assert.Greater(t, j.Result.TotalReturn, 0.0)
	assert.LessOrEqual(t, j.Result.MaxDrawdown, 0.0)

	stored, err := a.Job(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.Result.SharpeRatio, stored.Result.SharpeRatio)

	jobs, err := a.Jobs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestApp_SubmitDefaults(t *testing.T) {
	p := &mockProvider{closes: uptrend(40)}
	a := newTestApp(t, p)

	j, err := a.Submit(context.Background(), job.Request{
		Symbol:   "MSFT",
		Strategy: "ma_crossover",
		Start:    "2024-01-01",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-01", j.End)
	fast, _ := j.Params.Int("fast", 0)
	slow, _ := j.Params.Int("slow", 0)
	assert.Equal(t, 10, fast)
	assert.Equal(t, 30, slow)
	assert.Equal(t, 10000.0, j.Result.EquityCurve[0])
}

func TestApp_SubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		closes  []float64
		fetch   error
		req     job.Request
		wantErr *core.Error
	}{
		{
			name:    "bad symbol",
			req:     job.Request{Symbol: "AA$PL", Strategy: "ma_crossover", Start: "2023-01-01"},
			wantErr: core.ErrInvalidRequest,
		},
		{
			name:    "missing strategy",
			req:     job.Request{Symbol: "AAPL", Start: "2023-01-01"},
			wantErr: core.ErrInvalidRequest,
		},
		{
			name:    "unknown strategy",
			req:     job.Request{Symbol: "AAPL", Strategy: "rsi", Start: "2023-01-01"},
			wantErr: core.ErrUnknownStrategy,
		},
		{
			name:    "end before start",
			req:     job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-06-01", End: "2023-01-01"},
			wantErr: core.ErrInvalidRequest,
		},
		{
			name:    "fetch failure",
			fetch:   errors.New("connection refused"),
			req:     job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-01-01"},
			wantErr: core.ErrDataFetch,
		},
		{
			name:    "too few bars for provider",
			closes:  []float64{100},
			req:     job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-01-01"},
			wantErr: core.ErrNoData,
		},
		{
			name:    "fast not below slow",
			closes:  uptrend(50),
			req:     job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Params: map[string]any{"fast": 30, "slow": 10}, Start: "2023-01-01"},
			wantErr: core.ErrInvalidParameter,
		},
		{
			name:    "insufficient data for slow window",
			closes:  uptrend(10),
			req:     job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-01-01"},
			wantErr: core.ErrInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, &mockProvider{closes: tt.closes, err: tt.fetch})

			_, err := a.Submit(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)

			jobs, _ := a.Jobs(context.Background(), 0)
			assert.Empty(t, jobs)
		})
	}
}

func TestApp_RecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	a := newTestApp(t, &mockProvider{closes: uptrend(60)}, WithMetrics(reg))

	_, err := a.Submit(context.Background(), job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-01-01"})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "backgrid_backtests_total", "backgrid_market_data_fetch_total", "backgrid_jobs_stored")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestApp_ArchivesResults(t *testing.T) {
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	a := newTestApp(t, &mockProvider{closes: uptrend(60)}, WithArchive(fs))
	ctx := context.Background()

	j, err := a.Submit(ctx, job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-01-01"})
	require.NoError(t, err)

	ok, err := fs.Exists(ctx, archive.ResultKey(j.ID, j.Result.CreatedAt))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApp_SQLiteBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "jobs.db")

	p := &mockProvider{closes: uptrend(60)}
	a, err := New(context.Background(), cfg, nil, WithProvider(p), WithClock(func() time.Time { return today }))
	require.NoError(t, err)
	defer a.Close()

	j, err := a.Submit(context.Background(), job.Request{Symbol: "AAPL", Strategy: "ma_crossover", Start: "2023-01-01"})
	require.NoError(t, err)

	got, err := a.Job(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.Result.EquityCurve, got.Result.EquityCurve)
}

func TestApp_UnknownProvider(t *testing.T) {
	cfg := config.Defaults()
	cfg.Data.Provider = "csv"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestApp_Strategies(t *testing.T) {
	a := newTestApp(t, &mockProvider{})

	infos := a.Strategies()
	require.Len(t, infos, 1)
	assert.Equal(t, "ma_crossover", infos[0].Name)
}
