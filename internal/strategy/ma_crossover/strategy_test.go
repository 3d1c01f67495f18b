package ma_crossover

import (
	"errors"
	"testing"
	"time"

	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(prices ...float64) core.PriceSeries {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(core.PriceSeries, len(prices))
	for i, p := range prices {
		out[i] = core.OHLCV{Symbol: "TEST", Interval: "1d", Close: p, Time: base.AddDate(0, 0, i)}
	}
	return out
}

func uptrend(n int) core.PriceSeries {
	prices := make([]float64, n)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	return series(prices...)
}

func TestMACrossover_ImplementsStrategy(t *testing.T) {
	var _ strategy.Strategy = (*MACrossover)(nil)
}

func TestMACrossover_Name(t *testing.T) {
	s, err := New(Config{Fast: 5, Slow: 10})
	require.NoError(t, err)
	assert.Equal(t, "ma_crossover", s.Name())
	assert.Equal(t, "MA Crossover (5/10)", s.Description())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantMsg string
	}{
		{"valid", Config{Fast: 10, Slow: 30}, ""},
		{"fast above slow", Config{Fast: 30, Slow: 10}, "must be less than"},
		{"fast equals slow", Config{Fast: 10, Slow: 10}, "must be less than"},
		{"fast below minimum", Config{Fast: 1, Slow: 10}, "at least 2"},
		{"non-positive fast", Config{Fast: 0, Slow: 10}, "at least 2"},
		{"negative periods", Config{Fast: -5, Slow: -1}, "at least 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidParameter))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConfigFromParams(t *testing.T) {
	cfg, err := ConfigFromParams(strategy.Params{}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, Config{Fast: 10, Slow: 30}, cfg)

	cfg, err = ConfigFromParams(strategy.Params{"fast": 5.0, "slow": 20}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, Config{Fast: 5, Slow: 20}, cfg)

	_, err = ConfigFromParams(strategy.Params{"fast": "five"}, DefaultConfig())
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestFactory_RejectsOrdering(t *testing.T) {
	_, err := Factory(DefaultConfig())(strategy.Params{"fast": 30, "slow": 10})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
	assert.Contains(t, err.Error(), "must be less than")
}

func TestRegister(t *testing.T) {
	reg := strategy.NewRegistry()
	Register(reg, DefaultConfig())

	s, err := reg.Build(Name, nil)
	require.NoError(t, err)
	assert.Equal(t, Config{Fast: 10, Slow: 30}, s.(*MACrossover).Config())

	list := reg.List()
	require.Len(t, list, 1)
	assert.Equal(t, 10, list[0].Defaults["fast"])
}

func TestMACrossover_InsufficientData(t *testing.T) {
	s, err := New(Config{Fast: 5, Slow: 10})
	require.NoError(t, err)

	_, err = s.Signals(series(100, 101, 102, 103, 104))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
	assert.Contains(t, err.Error(), "insufficient data")
}

func TestMACrossover_ExactlySlowPoints(t *testing.T) {
	s, err := New(Config{Fast: 2, Slow: 4})
	require.NoError(t, err)

	signals, err := s.Signals(series(1, 2, 3, 4))
	require.NoError(t, err)
	// Only the last bar has a slow average: fast (3.5) > slow (2.5).
	assert.Equal(t, core.SignalSeries{core.Flat, core.Flat, core.Flat, core.Long}, signals)
}

func TestMACrossover_AlignedAndBinary(t *testing.T) {
	s, err := New(Config{Fast: 5, Slow: 10})
	require.NoError(t, err)

	prices := series(100, 98, 103, 101, 99, 104, 107, 102, 100, 97, 95, 99, 104, 108, 111, 109, 105, 101)
	signals, err := s.Signals(prices)
	require.NoError(t, err)
	require.Len(t, signals, len(prices))

	for i, sig := range signals {
		if sig != core.Flat && sig != core.Long {
			t.Errorf("signals[%d] = %d, want 0 or 1", i, sig)
		}
	}
	for i := 0; i < 9; i++ {
		assert.Equal(t, core.Flat, signals[i], "warm-up bar %d must be flat", i)
	}
}

func TestMACrossover_UptrendGoesLong(t *testing.T) {
	s, err := New(Config{Fast: 5, Slow: 10})
	require.NoError(t, err)

	signals, err := s.Signals(uptrend(50))
	require.NoError(t, err)

	for i := 9; i < 50; i++ {
		assert.Equal(t, core.Long, signals[i], "bar %d", i)
	}
}

func TestMACrossover_DowntrendStaysFlat(t *testing.T) {
	s, err := New(Config{Fast: 5, Slow: 10})
	require.NoError(t, err)

	prices := make([]float64, 50)
	for i := range prices {
		prices[i] = 150 - float64(i)
	}
	signals, err := s.Signals(series(prices...))
	require.NoError(t, err)

	for i, sig := range signals {
		assert.Equal(t, core.Flat, sig, "bar %d", i)
	}
}

func TestMACrossover_TiesAreFlat(t *testing.T) {
	s, err := New(Config{Fast: 3, Slow: 6})
	require.NoError(t, err)

	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100
	}
	signals, err := s.Signals(series(prices...))
	require.NoError(t, err)

	for i, sig := range signals {
		assert.Equal(t, core.Flat, sig, "bar %d", i)
	}
}

func TestMACrossover_CrossoverFlipsPosition(t *testing.T) {
	s, err := New(Config{Fast: 2, Slow: 4})
	require.NoError(t, err)

	// prices[5]: fast=(80+120)/2=100 > slow=(90+85+80+120)/4=93.75
	signals, err := s.Signals(series(100, 95, 90, 85, 80, 120))
	require.NoError(t, err)
	assert.Equal(t, core.Flat, signals[4])
	assert.Equal(t, core.Long, signals[5])
}

func TestMACrossover_DoesNotMutateInput(t *testing.T) {
	s, err := New(Config{Fast: 2, Slow: 3})
	require.NoError(t, err)

	prices := series(10, 11, 12, 13)
	before := prices.Closes()
	_, err = s.Signals(prices)
	require.NoError(t, err)
	assert.Equal(t, before, prices.Closes())
}
