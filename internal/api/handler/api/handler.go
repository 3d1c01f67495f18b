// Package api holds the JSON handlers of the /api/v1 surface.
package api

import (
	"context"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/strategy"
)

// Service is the backtest service the handlers front.
type Service interface {
	Submit(ctx context.Context, req job.Request) (*job.Job, error)
	Job(ctx context.Context, id string) (*job.Job, error)
	Jobs(ctx context.Context, limit int) ([]job.Job, error)
	Strategies() []strategy.Info
}
