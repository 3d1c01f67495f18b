// Package job stores backtest jobs and their results.
package job

import (
	"context"
	"time"

	"github.com/newthinker/backgrid/internal/backtest"
	"github.com/newthinker/backgrid/internal/strategy"
)

// Status represents job status.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one submitted backtest with its outcome.
type Job struct {
	ID         string           `json:"job_id"`
	Symbol     string           `json:"symbol"`
	Strategy   string           `json:"strategy"`
	Params     strategy.Params  `json:"params"`
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Status     Status           `json:"status"`
	Result     *backtest.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// Repository persists jobs keyed by ID. List returns newest first; a
// non-positive limit means no limit.
type Repository interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	List(ctx context.Context, limit int) ([]Job, error)
	Count(ctx context.Context) (int, error)
}

// clone copies j deeply enough that callers cannot mutate stored state.
func clone(j *Job) *Job {
	c := *j
	c.Params = j.Params.Clone()
	if j.Result != nil {
		r := *j.Result
		r.EquityCurve = append(r.EquityCurve[:0:0], j.Result.EquityCurve...)
		c.Result = &r
	}
	return &c
}

// Request is a backtest submission as received on the wire.
type Request struct {
	Symbol         string          `json:"symbol"`
	Strategy       string          `json:"strategy"`
	Params         strategy.Params `json:"params,omitempty"`
	Start          string          `json:"start"`
	End            string          `json:"end,omitempty"`
	InitialCapital float64         `json:"initial_capital,omitempty"`
}
