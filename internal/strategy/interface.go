package strategy

import (
	"github.com/newthinker/backgrid/internal/core"
)

// Params is the wire-level parameter mapping for a strategy.
// Factories decode it into their own typed configuration.
type Params map[string]any

// Strategy defines the interface for trading strategies
type Strategy interface {
	Name() string
	Description() string
	// Signals returns one position per bar. Implementations must not look
	// at bars after i when deciding position i.
	Signals(prices core.PriceSeries) (core.SignalSeries, error)
}

// Factory validates params and builds a configured Strategy.
type Factory func(params Params) (Strategy, error)
