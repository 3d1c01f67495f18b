// Package app wires configuration into the backtest service used by the
// HTTP API and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/backtest"
	"github.com/newthinker/backgrid/internal/collector"
	"github.com/newthinker/backgrid/internal/collector/csvfile"
	"github.com/newthinker/backgrid/internal/collector/yahoo"
	"github.com/newthinker/backgrid/internal/config"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/metrics"
	"github.com/newthinker/backgrid/internal/storage/archive"
	"github.com/newthinker/backgrid/internal/storage/sqlite"
	"github.com/newthinker/backgrid/internal/strategy"
	"github.com/newthinker/backgrid/internal/strategy/builtins"
	"github.com/newthinker/backgrid/internal/strategy/ma_crossover"
	"go.uber.org/zap"
)

// App is the main application orchestrator
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	providers  *collector.Registry
	provider   collector.OHLCVProvider
	strategies *strategy.Registry
	backtester *backtest.Backtester
	jobs       job.Repository
	archive    *archive.ResultArchive
	metrics    *metrics.Registry
	closers    []func() error
	now        func() time.Time
}

// Option overrides a component New would otherwise build from config.
type Option func(*App)

// WithProvider uses p for market data instead of the configured provider.
func WithProvider(p collector.OHLCVProvider) Option {
	return func(a *App) { a.provider = p }
}

// WithRepository uses r as the job store.
func WithRepository(r job.Repository) Option {
	return func(a *App) { a.jobs = r }
}

// WithArchive archives completed results to s.
func WithArchive(s archive.Storage) Option {
	return func(a *App) { a.archive = archive.NewResultArchive(s, a.logger) }
}

// WithMetrics records into reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(a *App) { a.metrics = reg }
}

// WithClock sets the clock used to resolve an omitted end date.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// New creates a new App instance
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		providers: collector.NewRegistry(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.setupProviders(); err != nil {
		return nil, err
	}

	a.strategies = builtins.NewRegistry(builtins.Options{
		MACrossover: ma_crossover.Config{Fast: cfg.Backtest.DefaultFast, Slow: cfg.Backtest.DefaultSlow},
	})
	a.backtester = backtest.New(a.strategies, backtest.Config{
		RiskFreeRate:   cfg.Backtest.RiskFreeRate,
		PeriodsPerYear: cfg.Backtest.PeriodsPerYear,
		InitialCapital: cfg.Backtest.InitialCapital,
		IDs: backtest.IDGenerator{
			Prefix:       cfg.Backtest.IDPrefix,
			UniqueSuffix: cfg.Backtest.UniqueIDs,
		},
	})

	if err := a.setupStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if a.metrics == nil {
		a.metrics = metrics.NewRegistry()
	}
	a.refreshJobGauge(ctx)

	a.logger.Info("backgrid ready",
		zap.String("provider", a.provider.Name()),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("archive", cfg.Archive.Type),
		zap.Strings("strategies", a.strategyNames()),
	)
	return a, nil
}

func (a *App) setupProviders() error {
	a.providers.Register(yahoo.New(yahoo.Options{
		Timeout:         a.cfg.Data.Timeout,
		RequestsPerSec:  a.cfg.Data.RequestsPerSecond,
		MaxRetryElapsed: a.cfg.Data.MaxRetryElapsed,
	}))
	if a.cfg.Data.CSVDir != "" {
		a.providers.Register(csvfile.New(a.cfg.Data.CSVDir))
	}

	if a.provider != nil {
		a.providers.Register(a.provider)
		return nil
	}

	p, ok := a.providers.Get(a.cfg.Data.Provider)
	if !ok {
		return core.Errorf(core.ErrConfigInvalid, "data provider %q is not available (have %v)",
			a.cfg.Data.Provider, a.providers.Names())
	}
	a.provider = p
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	if a.jobs == nil {
		switch a.cfg.Storage.Backend {
		case "sqlite":
			store, err := sqlite.Open(ctx, a.cfg.Storage.SQLitePath, a.logger)
			if err != nil {
				return fmt.Errorf("opening job database: %w", err)
			}
			a.jobs = store
			a.closers = append(a.closers, store.Close)
		default:
			ttl := time.Duration(a.cfg.Server.JobTTLHours) * time.Hour
			a.jobs = job.NewMemoryStore(a.cfg.Server.MaxJobs, ttl)
		}
	}

	if a.archive == nil {
		store, err := archive.New(a.cfg.Archive)
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		if store != nil {
			a.archive = archive.NewResultArchive(store, a.logger)
		}
	}
	return nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Metrics returns the registry the app records into.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Strategies lists the registered strategies.
func (a *App) Strategies() []strategy.Info {
	return a.strategies.List()
}

func (a *App) strategyNames() []string {
	infos := a.strategies.List()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// Submit validates req, fetches its price history, runs the backtest and
// stores the completed job. Execution is synchronous.
func (a *App) Submit(ctx context.Context, req job.Request) (*job.Job, error) {
	symbol, err := collector.NormalizeSymbol(req.Symbol)
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidRequest, err)
	}
	if req.Strategy == "" {
		return nil, core.Errorf(core.ErrInvalidRequest, "strategy is required")
	}
	info, ok := a.strategies.Lookup(req.Strategy)
	if !ok {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%q is not registered (available: %v)",
			req.Strategy, a.strategyNames())
	}
	if req.InitialCapital < 0 {
		return nil, core.Errorf(core.ErrInvalidRequest, "initial_capital cannot be negative")
	}

	startDate, endDate, err := collector.ParseDateRange(req.Start, req.End, a.now())
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidRequest, err)
	}

	params := req.Params
	if params == nil {
		params = info.Defaults.Clone()
	}

	log := a.logger.With(
		zap.String("symbol", symbol),
		zap.String("strategy", req.Strategy),
		zap.Stringer("params", params),
	)
	log.Info("received backtest job")

	startedAt := time.Now().UTC()

	fetchCtx := ctx
	if a.cfg.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.cfg.Server.RequestTimeout)
		defer cancel()
	}
	series, err := collector.Fetch(fetchCtx, a.provider, symbol, startDate, endDate)
	a.metrics.RecordFetch(a.provider.Name(), err)
	if err != nil {
		log.Error("data fetch failed", zap.Error(err))
		return nil, err
	}
	log.Info("fetched price history", zap.Int("bars", len(series)))

	runStart := time.Now()
	result, err := a.backtester.Run(series, backtest.Request{
		Strategy:       req.Strategy,
		Params:         params,
		InitialCapital: req.InitialCapital,
	})
	if err != nil {
		a.metrics.RecordBacktest(req.Strategy, string(job.StatusFailed), 0)
		log.Error("backtest failed", zap.Error(err))
		return nil, err
	}
	a.metrics.RecordBacktest(req.Strategy, string(result.Status), time.Since(runStart).Seconds())

	j := &job.Job{
		ID:         result.JobID,
		Symbol:     symbol,
		Strategy:   req.Strategy,
		Params:     params,
		Start:      startDate.Format(collector.DateLayout),
		End:        endDate.Format(collector.DateLayout),
		Status:     job.StatusCompleted,
		Result:     result,
		CreatedAt:  result.CreatedAt,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if err := a.jobs.Save(ctx, j); err != nil {
		log.Error("saving job failed", zap.String("job_id", j.ID), zap.Error(err))
		return nil, err
	}
	a.refreshJobGauge(ctx)

	if a.archive != nil {
		// the job is already stored, so an archive failure is not fatal
		if _, err := a.archive.Save(ctx, result); err != nil {
			log.Warn("archiving result failed", zap.String("job_id", j.ID), zap.Error(err))
		}
	}

	log.Info("backtest completed",
		zap.String("job_id", j.ID),
		zap.Float64("sharpe", result.SharpeRatio),
		zap.Float64("total_return", result.TotalReturn),
	)
	return j, nil
}

// Job returns a stored job.
func (a *App) Job(ctx context.Context, id string) (*job.Job, error) {
	return a.jobs.Get(ctx, id)
}

// Jobs lists stored jobs newest first.
func (a *App) Jobs(ctx context.Context, limit int) ([]job.Job, error) {
	return a.jobs.List(ctx, limit)
}

func (a *App) refreshJobGauge(ctx context.Context) {
	n, err := a.jobs.Count(ctx)
	if err != nil {
		a.logger.Warn("counting jobs failed", zap.Error(err))
		return
	}
	a.metrics.SetJobsStored(n)
}
