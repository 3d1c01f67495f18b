// Package csvfile serves daily bars from <SYMBOL>.csv files on disk.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/backgrid/internal/core"
)

// CSVFile reads Date,Open,High,Low,Close,Volume files from a directory.
type CSVFile struct {
	dir string
}

// New returns a provider rooted at dir.
func New(dir string) *CSVFile {
	return &CSVFile{dir: dir}
}

func (c *CSVFile) Name() string {
	return "csv"
}

// FetchHistory returns the rows of <symbol>.csv dated in [start, end).
// Only daily files are supported; interval is ignored.
func (c *CSVFile) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) (core.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(c.dir, strings.ToUpper(symbol)+".csv")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.ErrNoData, "no data file for %s", symbol)
		}
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	series, err := parse(f, symbol)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	out := series[:0]
	for _, bar := range series {
		if !bar.Time.Before(start) && bar.Time.Before(end) {
			out = append(out, bar)
		}
	}
	return out, nil
}

var columns = []string{"date", "open", "high", "low", "close", "volume"}

func parse(r io.Reader, symbol string) (core.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range []string{"date", "close"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing %q column", col)
		}
	}

	var series core.PriceSeries
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		bar := core.OHLCV{Symbol: symbol, Interval: "1d"}
		bar.Time, err = time.Parse("2006-01-02", record[index["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q", line, record[index["date"]])
		}

		for _, col := range columns[1:] {
			i, ok := index[col]
			if !ok || i >= len(record) || record[i] == "" {
				continue
			}
			if col == "volume" {
				v, err := strconv.ParseFloat(record[i], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid volume %q", line, record[i])
				}
				bar.Volume = int64(v)
				continue
			}
			v, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, col, record[i])
			}
			switch col {
			case "open":
				bar.Open = v
			case "high":
				bar.High = v
			case "low":
				bar.Low = v
			case "close":
				bar.Close = v
			}
		}
		series = append(series, bar)
	}
	return series, nil
}
