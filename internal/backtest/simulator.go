package backtest

import (
	"github.com/newthinker/backgrid/internal/core"
)

// Simulate turns signals into an equity curve. The position decided at bar
// i-1 earns the price return of bar i, so signals[i] never affects equity[i].
func Simulate(prices core.PriceSeries, signals core.SignalSeries, initialCapital float64) (core.EquityCurve, error) {
	if len(signals) != len(prices) {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"signal series length %d does not match price series length %d", len(signals), len(prices))
	}
	if initialCapital <= 0 {
		return nil, core.Errorf(core.ErrInvalidParameter,
			"initial capital must be positive, got %v", initialCapital)
	}

	equity := make(core.EquityCurve, len(prices))
	if len(prices) == 0 {
		return equity, nil
	}

	equity[0] = initialCapital
	growth := 1.0
	for i := 1; i < len(prices); i++ {
		r := prices[i].Close/prices[i-1].Close - 1
		growth *= 1 + float64(signals[i-1])*r
		equity[i] = initialCapital * growth
	}
	return equity, nil
}
