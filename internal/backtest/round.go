package backtest

import (
	"math"

	"github.com/shopspring/decimal"
)

// round rounds v half away from zero to places decimals using its shortest
// decimal representation, so 0.12345 becomes 0.1235 rather than 0.1234.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
