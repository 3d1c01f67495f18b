package collector

import (
	"context"
	"time"

	"github.com/newthinker/backgrid/internal/core"
)

// OHLCVProvider defines the interface for fetching historical OHLCV data.
// Returned series are validated with Validate before they reach the engine.
type OHLCVProvider interface {
	Name() string
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) (core.PriceSeries, error)
}
