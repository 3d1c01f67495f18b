// Package sqlite persists jobs and results in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/backtest"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/logger"
	"github.com/newthinker/backgrid/internal/strategy"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ job.Repository = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	params      TEXT,
	start_date  TEXT NOT NULL,
	end_date    TEXT,
	status      TEXT NOT NULL DEFAULT 'queued',
	created_at  INTEGER NOT NULL,
	started_at  INTEGER,
	finished_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_jobs_symbol ON jobs(symbol);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);

CREATE TABLE IF NOT EXISTS results (
	job_id          TEXT PRIMARY KEY REFERENCES jobs(job_id) ON DELETE CASCADE,
	sharpe          REAL,
	max_drawdown    REAL,
	total_return    REAL,
	runtime_seconds REAL,
	equity_curve    TEXT,
	error           TEXT,
	created_at      INTEGER NOT NULL
);`

// Store implements job.Repository on SQLite.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	// A single connection keeps :memory: databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("initializing schema: %w", err))
		}
	}

	s := &Store{db: db, log: logger.Component(log, "sqlite")}
	s.log.Info("job database ready", zap.String("path", path))
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts the job row and replaces its result row.
func (s *Store) Save(ctx context.Context, j *job.Job) error {
	if j == nil || j.ID == "" {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("job id is required"))
	}

	params, err := json.Marshal(j.Params)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding params: %w", err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (job_id, symbol, strategy, params, start_date, end_date, status, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			symbol = excluded.symbol,
			strategy = excluded.strategy,
			params = excluded.params,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		j.ID, j.Symbol, j.Strategy, string(params), j.Start, nullString(j.End), string(j.Status),
		j.CreatedAt.UnixNano(), nullTime(j.StartedAt), nullTime(j.FinishedAt))
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving job %s: %w", j.ID, err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE job_id = ?`, j.ID); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}

	if j.Result != nil || j.Error != "" {
		var (
			r     backtest.Result
			curve []byte
		)
		created := j.CreatedAt
		if j.Result != nil {
			r = *j.Result
			created = r.CreatedAt
			if curve, err = json.Marshal(r.EquityCurve); err != nil {
				return core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding equity curve: %w", err))
			}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO results (job_id, sharpe, max_drawdown, total_return, runtime_seconds, equity_curve, error, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			j.ID, r.SharpeRatio, r.MaxDrawdown, r.TotalReturn, r.RuntimeSeconds,
			nullString(string(curve)), nullString(j.Error), created.UnixNano())
		if err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving result %s: %w", j.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	s.log.Debug("job saved", zap.String("job_id", j.ID), zap.String("status", string(j.Status)))
	return nil
}

const selectJobs = `
	SELECT j.job_id, j.symbol, j.strategy, j.params, j.start_date, j.end_date, j.status,
	       j.created_at, j.started_at, j.finished_at,
	       r.job_id, r.sharpe, r.max_drawdown, r.total_return, r.runtime_seconds,
	       r.equity_curve, r.error, r.created_at
	FROM jobs j LEFT JOIN results r ON r.job_id = j.job_id`

// Get retrieves a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, selectJobs+` WHERE j.job_id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errorf(core.ErrJobNotFound, "job not found: %s", id)
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return j, nil
}

// List returns jobs newest first.
func (s *Store) List(ctx context.Context, limit int) ([]job.Job, error) {
	query := selectJobs + ` ORDER BY j.created_at DESC, j.job_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var jobs []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return jobs, nil
}

// Count returns the number of stored jobs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*job.Job, error) {
	var (
		j                      job.Job
		params, end, status    sql.NullString
		created                int64
		started, finished      sql.NullInt64
		resultID, curve, rErr  sql.NullString
		sharpe, mdd, ret, secs sql.NullFloat64
		resultCreated          sql.NullInt64
	)
	err := row.Scan(&j.ID, &j.Symbol, &j.Strategy, &params, &j.Start, &end, &status,
		&created, &started, &finished,
		&resultID, &sharpe, &mdd, &ret, &secs, &curve, &rErr, &resultCreated)
	if err != nil {
		return nil, err
	}

	j.End = end.String
	j.Status = job.Status(status.String)
	j.CreatedAt = fromNanos(created)
	j.StartedAt = fromNull(started)
	j.FinishedAt = fromNull(finished)

	if params.Valid && params.String != "" && params.String != "null" {
		j.Params = strategy.Params{}
		if err := json.Unmarshal([]byte(params.String), &j.Params); err != nil {
			return nil, fmt.Errorf("decoding params for %s: %w", j.ID, err)
		}
	}

	if !resultID.Valid {
		return &j, nil
	}
	j.Error = rErr.String
	if !curve.Valid {
		return &j, nil
	}

	r := &backtest.Result{
		JobID:          j.ID,
		Strategy:       j.Strategy,
		Status:         backtest.StatusCompleted,
		SharpeRatio:    sharpe.Float64,
		MaxDrawdown:    mdd.Float64,
		TotalReturn:    ret.Float64,
		RuntimeSeconds: secs.Float64,
		CreatedAt:      fromNull(resultCreated),
	}
	if err := json.Unmarshal([]byte(curve.String), &r.EquityCurve); err != nil {
		return nil, fmt.Errorf("decoding equity curve for %s: %w", j.ID, err)
	}
	j.Result = r
	return &j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNull(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromNanos(n.Int64)
}
