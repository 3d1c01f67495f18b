package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NotNil(t, reg)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	// Should have go runtime metrics at minimum
	assert.NotEmpty(t, mfs)
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/api/v1/jobs", tt.status, 0.01)

			got := testutil.ToFloat64(reg.httpRequestsTotal.WithLabelValues("GET", "/api/v1/jobs", tt.expected))
			assert.Equal(t, 1.0, got)
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.httpRequestsInFlight))
}

func TestRegistry_DurationHistogram(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("POST", "/api/v1/jobs", 200, 0.123)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_request_duration_seconds" {
			found = true
			hist := mf.GetMetric()[0].GetHistogram()
			assert.Equal(t, uint64(1), hist.GetSampleCount())
			assert.InDelta(t, 0.123, hist.GetSampleSum(), 1e-9)
		}
	}
	assert.True(t, found, "expected http_request_duration_seconds metric")
}

func TestRegistry_RecordBacktest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordBacktest("ma_crossover", "completed", 0.002)
	reg.RecordBacktest("ma_crossover", "completed", 0.003)
	reg.RecordBacktest("ma_crossover", "failed", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.backtestsTotal.WithLabelValues("ma_crossover", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.backtestsTotal.WithLabelValues("ma_crossover", "failed")))
	// failures are counted but not timed
	assert.Equal(t, 1, testutil.CollectAndCount(reg.backtestDuration))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "backgrid_backtest_duration_seconds" {
			assert.Equal(t, uint64(2), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
}

func TestRegistry_JobsAndFetches(t *testing.T) {
	reg := NewRegistry()

	reg.SetJobsStored(7)
	reg.RecordFetch("yahoo", nil)
	reg.RecordFetch("yahoo", errors.New("timeout"))
	reg.RecordFetch("yahoo", nil)

	assert.Equal(t, 7.0, testutil.ToFloat64(reg.jobsStored))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.fetchesTotal.WithLabelValues("yahoo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.fetchesTotal.WithLabelValues("yahoo", "error")))
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	var _ prometheus.Gatherer = NewRegistry()
}
