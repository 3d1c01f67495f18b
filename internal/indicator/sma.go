package indicator

import "math"

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// AlignedSMA is SMA indexed like prices: element i averages prices[i-period+1..i].
// Indices without a full look-back window hold NaN.
func AlignedSMA(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		out[i] = math.NaN()
	}

	sma := SMA(prices, period)
	if len(sma) == 0 {
		return out
	}
	copy(out[period-1:], sma)
	return out
}
