package backtest

import (
	"time"

	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/strategy"
)

// Config tunes the statistics and identifiers of a Backtester.
type Config struct {
	RiskFreeRate   float64 // annual
	PeriodsPerYear int
	InitialCapital float64
	IDs            IDGenerator
}

// DefaultConfig returns risk-free 0, 252 periods per year, 10000 capital and "manual" IDs.
func DefaultConfig() Config {
	return Config{
		PeriodsPerYear: DefaultPeriodsPerYear,
		InitialCapital: DefaultInitialCapital,
		IDs:            IDGenerator{Prefix: DefaultIDPrefix},
	}
}

// Backtester runs a named strategy over a price series.
// It holds no per-run state and is safe for concurrent use.
type Backtester struct {
	strategies *strategy.Registry
	cfg        Config
	now        func() time.Time
}

// New creates a Backtester resolving strategies from reg.
func New(reg *strategy.Registry, cfg Config) *Backtester {
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultPeriodsPerYear
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = DefaultInitialCapital
	}
	return &Backtester{
		strategies: reg,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Strategies exposes the registry used to resolve names.
func (b *Backtester) Strategies() *strategy.Registry {
	return b.strategies
}

// Run generates signals, simulates the equity curve and derives statistics.
// Strategy and parameter errors are returned unchanged.
func (b *Backtester) Run(prices core.PriceSeries, req Request) (*Result, error) {
	start := b.now()

	capital := req.InitialCapital
	if capital == 0 {
		capital = b.cfg.InitialCapital
	}

	strat, err := b.strategies.Build(req.Strategy, req.Params)
	if err != nil {
		return nil, err
	}

	signals, err := strat.Signals(prices)
	if err != nil {
		return nil, err
	}

	equity, err := Simulate(prices, signals, capital)
	if err != nil {
		return nil, err
	}

	stats := Analyze(equity, b.cfg.RiskFreeRate, b.cfg.PeriodsPerYear)

	end := b.now()
	createdAt := end.UTC()
	return &Result{
		JobID:          b.cfg.IDs.NewID(createdAt),
		Strategy:       strat.Name(),
		Status:         StatusCompleted,
		SharpeRatio:    round(stats.SharpeRatio, 4),
		MaxDrawdown:    round(stats.MaxDrawdown, 4),
		TotalReturn:    round(stats.TotalReturn, 4),
		EquityCurve:    equity,
		RuntimeSeconds: round(end.Sub(start).Seconds(), 2),
		CreatedAt:      createdAt,
	}, nil
}
