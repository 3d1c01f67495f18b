package backtest

import (
	"time"

	"github.com/google/uuid"
)

// DefaultIDPrefix marks results produced by an on-demand run.
const DefaultIDPrefix = "manual"

const idTimeLayout = "20060102-150405"

// IDGenerator builds "<prefix>-<UTC YYYYMMDD-HHMMSS>" identifiers, which sort
// by creation time. Two IDs generated in the same second collide unless
// UniqueSuffix is set, in which case 32 random bits are appended.
type IDGenerator struct {
	Prefix       string
	UniqueSuffix bool
}

// NewID returns the identifier for a result created at t.
func (g IDGenerator) NewID(t time.Time) string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	id := prefix + "-" + t.UTC().Format(idTimeLayout)
	if g.UniqueSuffix {
		id += "-" + uuid.NewString()[:8]
	}
	return id
}
