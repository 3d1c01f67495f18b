package ma_crossover

import (
	"fmt"

	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/indicator"
	"github.com/newthinker/backgrid/internal/strategy"
)

// Name is the registry key of the moving-average crossover strategy.
const Name = "ma_crossover"

const (
	// MinPeriod is the smallest accepted moving-average window.
	MinPeriod = 2

	DefaultFast = 10
	DefaultSlow = 30
)

// Config is the typed parameter set of the strategy.
type Config struct {
	Fast int `json:"fast"`
	Slow int `json:"slow"`
}

// DefaultConfig returns fast=10, slow=30.
func DefaultConfig() Config {
	return Config{Fast: DefaultFast, Slow: DefaultSlow}
}

// ConfigFromParams decodes fast and slow from params, keeping defaults for missing keys.
func ConfigFromParams(params strategy.Params, defaults Config) (Config, error) {
	fast, err := params.Int("fast", defaults.Fast)
	if err != nil {
		return Config{}, err
	}
	slow, err := params.Int("slow", defaults.Slow)
	if err != nil {
		return Config{}, err
	}
	return Config{Fast: fast, Slow: slow}, nil
}

// Validate checks ordering and window size.
func (c Config) Validate() error {
	if c.Fast >= c.Slow {
		return core.Errorf(core.ErrInvalidParameter,
			"fast period (%d) must be less than slow period (%d)", c.Fast, c.Slow)
	}
	if c.Fast < MinPeriod || c.Slow < MinPeriod {
		return core.Errorf(core.ErrInvalidParameter, "MA periods must be at least %d", MinPeriod)
	}
	return nil
}

// MACrossover is long while the fast SMA is strictly above the slow SMA.
type MACrossover struct {
	cfg Config
}

// New creates a new MA Crossover strategy
func New(cfg Config) (*MACrossover, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MACrossover{cfg: cfg}, nil
}

// Factory returns a strategy.Factory that fills missing params from defaults.
func Factory(defaults Config) strategy.Factory {
	return func(params strategy.Params) (strategy.Strategy, error) {
		cfg, err := ConfigFromParams(params, defaults)
		if err != nil {
			return nil, err
		}
		return New(cfg)
	}
}

// Register adds the strategy to reg.
func Register(reg *strategy.Registry, defaults Config) {
	reg.Register(strategy.Info{
		Name:        Name,
		Description: "Moving average crossover: long while SMA(fast) > SMA(slow), flat otherwise",
		Defaults:    strategy.Params{"fast": defaults.Fast, "slow": defaults.Slow},
	}, Factory(defaults))
}

func (m *MACrossover) Name() string {
	return Name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.cfg.Fast, m.cfg.Slow)
}

// Config returns the validated parameters.
func (m *MACrossover) Config() Config {
	return m.cfg
}

func (m *MACrossover) Signals(prices core.PriceSeries) (core.SignalSeries, error) {
	if len(prices) < m.cfg.Slow {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"insufficient data: need at least %d data points, but only have %d", m.cfg.Slow, len(prices))
	}

	closes := prices.Closes()
	fastMA := indicator.AlignedSMA(closes, m.cfg.Fast)
	slowMA := indicator.AlignedSMA(closes, m.cfg.Slow)

	signals := make(core.SignalSeries, len(prices))
	// Warm-up bars stay Flat; comparisons against NaN are false.
	for i := m.cfg.Slow - 1; i < len(signals); i++ {
		if fastMA[i] > slowMA[i] {
			signals[i] = core.Long
		}
	}
	return signals, nil
}
