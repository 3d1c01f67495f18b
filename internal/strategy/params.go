package strategy

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/newthinker/backgrid/internal/core"
)

// Int returns params[key] as an int, or def when the key is absent.
// Integral floats (10.0, as a float64 or a json.Number) are accepted;
// anything else, including values outside the int32 range, is an
// ErrInvalidParameter.
func (p Params) Int(key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}

	switch v := raw.(type) {
	case int:
		return integral(key, float64(v))
	case int32:
		return int(v), nil
	case int64:
		return integral(key, float64(v))
	case float64:
		return integral(key, v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return integral(key, float64(n))
		}
		f, err := v.Float64()
		if err != nil {
			return 0, core.Errorf(core.ErrInvalidParameter, "%s must be an integer, got %s", key, v)
		}
		return integral(key, f)
	default:
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be an integer, got %T", key, raw)
	}
}

func integral(key string, v float64) (int, error) {
	if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be an integer, got %v", key, v)
	}
	if math.Abs(v) > math.MaxInt32 {
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be an integer in range, got %v", key, v)
	}
	return int(v), nil
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String renders params for log fields.
func (p Params) String() string {
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(p))
	}
	return string(b)
}
