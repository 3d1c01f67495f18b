package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/newthinker/backgrid/internal/core"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (compatible; backgrid/1.0)"
)

// Options configures the Yahoo client.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	RequestsPerSec  float64
	MaxRetryElapsed time.Duration
}

// Yahoo fetches daily bars from the Yahoo Finance chart API
type Yahoo struct {
	client   *http.Client
	limiter  *rate.Limiter
	baseURL  string
	maxRetry time.Duration
}

// New creates a new Yahoo collector
func New(opts Options) *Yahoo {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}
	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}

	return &Yahoo{
		client:   &http.Client{Timeout: opts.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		maxRetry: opts.MaxRetryElapsed,
	}
}

func (y *Yahoo) Name() string {
	return "yahoo"
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

func toYahooInterval(interval string) string {
	switch interval {
	case "1h", "1wk", "1mo":
		return interval
	default:
		return "1d"
	}
}

// FetchHistory fetches bars in [start, end).
func (y *Yahoo) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) (core.PriceSeries, error) {
	if interval == "" {
		interval = "1d"
	}
	endpoint := fmt.Sprintf("%s/%s?interval=%s&period1=%d&period2=%d&events=history",
		y.baseURL, url.PathEscape(toYahooSymbol(symbol)), toYahooInterval(interval), start.Unix(), end.Unix())

	var result chartResponse
	if err := y.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("fetching history for %s: %w", symbol, err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no data returned for %s from %s to %s",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	return toSeries(symbol, interval, result.Chart.Result[0])
}

// getJSON performs a rate-limited GET with exponential backoff. Client
// errors (4xx other than 429) are not retried.
func (y *Yahoo) getJSON(ctx context.Context, endpoint string, out any) error {
	operation := func() error {
		if err := y.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := y.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = y.maxRetry

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// toSeries converts a chart result, dropping rows where every field is
// missing (non-trading days). A row with prices but no close is an error.
func toSeries(symbol, interval string, r chartResult) (core.PriceSeries, error) {
	q := r.Indicators.Quote[0]
	series := make(core.PriceSeries, 0, len(r.Timestamp))
	missing := 0

	for i, ts := range r.Timestamp {
		open, high, low, cls := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if open == nil && high == nil && low == nil && cls == nil {
			continue
		}
		if cls == nil {
			missing++
			continue
		}

		bar := core.OHLCV{
			Symbol:   symbol,
			Interval: interval,
			Close:    *cls,
			Time:     time.Unix(ts, 0).UTC(),
		}
		if open != nil {
			bar.Open = *open
		}
		if high != nil {
			bar.High = *high
		}
		if low != nil {
			bar.Low = *low
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		series = append(series, bar)
	}

	if missing > 0 {
		return nil, core.Errorf(core.ErrDataFetch,
			"data contains %d missing Close price(s) for %s", missing, symbol)
	}
	return series, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

// StatusError reports a non-200 response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64    `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
