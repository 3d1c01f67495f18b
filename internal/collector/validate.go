package collector

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/backgrid/internal/core"
)

// DateLayout is the request date format.
const DateLayout = "2006-01-02"

// MinBars is the shortest series worth backtesting.
const MinBars = 2

const maxSymbolLen = 10

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// NormalizeSymbol upper-cases and trims symbol, then checks it is 1-10
// characters of letters, digits, dots and hyphens.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("symbol cannot be empty")
	}
	if len(s) > maxSymbolLen {
		return "", fmt.Errorf("symbol too long: %s", s)
	}
	if !symbolPattern.MatchString(s) || strings.Trim(s, ".-") == "" {
		return "", fmt.Errorf("symbol must be alphanumeric (dots and hyphens allowed): %s", s)
	}
	return s, nil
}

// ParseDateRange parses YYYY-MM-DD bounds. An empty end means today (now's
// date); end must be after start.
func ParseDateRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	from, err := time.Parse(DateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date format: %s. Expected YYYY-MM-DD", start)
	}

	var to time.Time
	if end == "" {
		y, m, d := now.UTC().Date()
		to = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	} else {
		to, err = time.Parse(DateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date format: %s. Expected YYYY-MM-DD", end)
		}
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date (%s) must be after start date (%s)",
			to.Format(DateLayout), from.Format(DateLayout))
	}
	return from, to, nil
}

// Validate checks the series is long enough, has positive finite closes and
// strictly increasing timestamps.
func Validate(symbol string, series core.PriceSeries) error {
	if len(series) == 0 {
		return core.Errorf(core.ErrNoData, "no data returned for %s", symbol)
	}
	if len(series) < MinBars {
		return core.Errorf(core.ErrNoData,
			"insufficient data for %s: only %d data point(s), need at least %d", symbol, len(series), MinBars)
	}

	for i, bar := range series {
		if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) || bar.Close <= 0 {
			return core.Errorf(core.ErrDataFetch, "invalid close price %v for %s at %s",
				bar.Close, symbol, bar.Time.Format(DateLayout))
		}
		if i > 0 && !bar.Time.After(series[i-1].Time) {
			return core.Errorf(core.ErrDataFetch, "bars for %s are not strictly increasing in time at index %d", symbol, i)
		}
	}
	return nil
}

// Fetch retrieves and validates a series from p.
func Fetch(ctx context.Context, p OHLCVProvider, symbol string, start, end time.Time) (core.PriceSeries, error) {
	series, err := p.FetchHistory(ctx, symbol, start, end, "1d")
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return nil, err
		}
		return nil, core.WrapError(core.ErrDataFetch, err)
	}
	if err := Validate(symbol, series); err != nil {
		return nil, err
	}
	return series, nil
}
