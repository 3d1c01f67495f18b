// Package builtins wires the strategies that ship with backgrid into a registry.
package builtins

import (
	"github.com/newthinker/backgrid/internal/strategy"
	"github.com/newthinker/backgrid/internal/strategy/ma_crossover"
)

// Options carries per-strategy defaults used when request params omit a key.
type Options struct {
	MACrossover ma_crossover.Config
}

// DefaultOptions returns the defaults of every built-in strategy.
func DefaultOptions() Options {
	return Options{MACrossover: ma_crossover.DefaultConfig()}
}

// NewRegistry returns a registry holding all built-in strategies.
func NewRegistry(opts Options) *strategy.Registry {
	reg := strategy.NewRegistry()
	ma_crossover.Register(reg, opts.MACrossover)
	return reg
}
