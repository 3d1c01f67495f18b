package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/newthinker/backgrid/internal/backtest"
	"github.com/newthinker/backgrid/internal/config"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/logger"
	"go.uber.org/zap"
)

const resultsRoot = "results"

// ResultKey returns results/<YYYY>/<MM>/<job_id>.json for a result created at t.
func ResultKey(jobID string, t time.Time) string {
	t = t.UTC()
	return path.Join(resultsRoot, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), jobID+".json")
}

// ResultArchive writes completed backtest results to cold storage.
type ResultArchive struct {
	store Storage
	log   *zap.Logger
}

// NewResultArchive wraps store.
func NewResultArchive(store Storage, log *zap.Logger) *ResultArchive {
	return &ResultArchive{store: store, log: logger.Component(log, "archive")}
}

// Save archives r and returns its key.
func (a *ResultArchive) Save(ctx context.Context, r *backtest.Result) (string, error) {
	if r == nil || r.JobID == "" {
		return "", core.Errorf(core.ErrStorageFailed, "result has no job id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, err)
	}

	key := ResultKey(r.JobID, r.CreatedAt)
	if err := a.store.Write(ctx, key, data); err != nil {
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("archiving %s: %w", r.JobID, err))
	}
	a.log.Debug("result archived", zap.String("job_id", r.JobID), zap.String("key", key))
	return key, nil
}

// Load reads back the result archived for jobID at createdAt.
func (a *ResultArchive) Load(ctx context.Context, jobID string, createdAt time.Time) (*backtest.Result, error) {
	key := ResultKey(jobID, createdAt)
	ok, err := a.store.Exists(ctx, key)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if !ok {
		return nil, core.Errorf(core.ErrJobNotFound, "no archived result for %s", jobID)
	}

	data, err := a.store.Read(ctx, key)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	var r backtest.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", key, err))
	}
	return &r, nil
}

// ListMonth returns the job IDs archived in the given month.
func (a *ResultArchive) ListMonth(ctx context.Context, year int, month time.Month) ([]string, error) {
	prefix := path.Join(resultsRoot, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", int(month)))
	keys, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, ".json") {
			ids = append(ids, strings.TrimSuffix(path.Base(key), ".json"))
		}
	}
	return ids, nil
}

// New builds the Storage selected by cfg. Type "none" (or empty) yields a
// nil Storage.
func New(cfg config.ArchiveConfig) (Storage, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "localfs":
		fs, err := NewLocalFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "s3":
		s3, err := NewS3(S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, core.Errorf(core.ErrConfigInvalid, "unknown archive type %q", cfg.Type)
	}
}
