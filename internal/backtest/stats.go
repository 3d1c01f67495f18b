package backtest

import (
	"math"
)

// DefaultPeriodsPerYear is the number of daily bars in a trading year.
const DefaultPeriodsPerYear = 252

// Analyze computes all statistics of curve.
func Analyze(curve []float64, riskFreeRate float64, periodsPerYear int) Stats {
	return Stats{
		SharpeRatio: SharpeRatio(curve, riskFreeRate, periodsPerYear),
		MaxDrawdown: MaxDrawdown(curve),
		TotalReturn: TotalReturn(curve),
	}
}

// periodReturns returns the period-over-period change of curve, skipping
// periods whose starting value is zero.
func periodReturns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		returns = append(returns, curve[i]/curve[i-1]-1)
	}
	return returns
}

// SharpeRatio computes the annualized mean excess return over its sample
// standard deviation. riskFreeRate is annual; periodsPerYear <= 0 means 252.
func SharpeRatio(curve []float64, riskFreeRate float64, periodsPerYear int) float64 {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	returns := periodReturns(curve)
	if len(returns) < 2 {
		return 0
	}

	perPeriodRF := riskFreeRate / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	constant := true
	for i, r := range returns {
		excess[i] = r - perPeriodRF
		if excess[i] != excess[0] {
			constant = false
		}
	}
	if constant {
		return 0
	}

	var sum float64
	for _, r := range excess {
		sum += r
	}
	mean := sum / float64(len(excess))

	var variance float64
	for _, r := range excess {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(excess)-1))

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(float64(periodsPerYear))
}

// MaxDrawdown returns the most negative (value - peak) / peak across curve.
// The result is <= 0.
func MaxDrawdown(curve []float64) float64 {
	if len(curve) < 2 {
		return 0
	}

	var maxDD float64
	peak := curve[0]
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v - peak) / peak; dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// TotalReturn returns (last - first) / first.
func TotalReturn(curve []float64) float64 {
	if len(curve) < 2 || curve[0] == 0 {
		return 0
	}
	return (curve[len(curve)-1] - curve[0]) / curve[0]
}
