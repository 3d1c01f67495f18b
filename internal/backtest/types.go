package backtest

import (
	"time"

	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/strategy"
)

// DefaultInitialCapital is used when a Request leaves InitialCapital at zero.
const DefaultInitialCapital = 10000.0

// Status of a backtest result.
type Status string

const (
	StatusCompleted Status = "completed"
)

// Request names the strategy to run and its wire-level parameters.
type Request struct {
	Strategy       string
	Params         strategy.Params
	InitialCapital float64 // zero means DefaultInitialCapital
}

// Result holds the complete backtest output
type Result struct {
	JobID          string           `json:"job_id"`
	Strategy       string           `json:"strategy"`
	Status         Status           `json:"status"`
	SharpeRatio    float64          `json:"sharpe"`
	MaxDrawdown    float64          `json:"max_drawdown"` // <= 0
	TotalReturn    float64          `json:"total_return"`
	EquityCurve    core.EquityCurve `json:"equity_curve"`
	RuntimeSeconds float64          `json:"runtime_seconds"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Stats holds performance statistics derived from an equity curve
type Stats struct {
	SharpeRatio float64 `json:"sharpe"`
	MaxDrawdown float64 `json:"max_drawdown"`
	TotalReturn float64 `json:"total_return"`
}
