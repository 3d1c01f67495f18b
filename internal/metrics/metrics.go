package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Backtest metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	jobsStored       prometheus.Gauge
	fetchesTotal     *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backgrid_backtests_total",
				Help: "Total number of backtests by strategy and outcome",
			},
			[]string{"strategy", "status"},
		),

		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "backgrid_backtest_duration_seconds",
				Help:    "Engine run time in seconds, excluding data fetch",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),

		jobsStored: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "backgrid_jobs_stored",
				Help: "Number of jobs held by the job store",
			},
		),

		fetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backgrid_market_data_fetch_total",
				Help: "Market data fetches by provider and outcome",
			},
			[]string{"provider", "status"},
		),
	}

	reg.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestsInFlight,
		r.backtestsTotal,
		r.backtestDuration,
		r.jobsStored,
		r.fetchesTotal,
	)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBacktest records a backtest outcome. Duration is only observed for
// completed runs.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	if status == "completed" {
		r.backtestDuration.Observe(duration)
	}
}

// SetJobsStored sets the number of stored jobs.
func (r *Registry) SetJobsStored(count int) {
	r.jobsStored.Set(float64(count))
}

// RecordFetch records a market data fetch.
func (r *Registry) RecordFetch(provider string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.fetchesTotal.WithLabelValues(provider, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
