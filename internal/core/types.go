package core

import "time"

// OHLCV represents a candlestick/bar
type OHLCV struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"` // "1d", "1h"
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   int64     `json:"volume"`
	Time     time.Time `json:"time"`
}

// PriceSeries is an ordered run of bars, strictly increasing in time.
// The engine only reads the closing price and never mutates the series.
type PriceSeries []OHLCV

// Closes returns the closing prices in series order.
func (p PriceSeries) Closes() []float64 {
	closes := make([]float64, len(p))
	for i, bar := range p {
		closes[i] = bar.Close
	}
	return closes
}

// Position is the discrete exposure decided at a bar.
type Position int8

const (
	Flat Position = 0
	Long Position = 1
)

// SignalSeries holds one Position per bar of the PriceSeries it was derived from.
type SignalSeries []Position

// EquityCurve holds portfolio value per bar.
type EquityCurve []float64
