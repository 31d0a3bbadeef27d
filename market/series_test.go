package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkSeries(t *testing.T, n int) Series {
	t.Helper()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]Candle, n)
	for i := range candles {
		px := 100.0 + float64(i)
		candles[i] = Candle{
			Time:   base.Add(time.Duration(i) * 15 * time.Minute),
			Open:   px,
			High:   px + 1,
			Low:    px - 1,
			Close:  px + 0.5,
			Volume: 10,
		}
	}
	return Series{Symbol: "BTCUSDT", Timeframe: "15m", Candles: candles}
}

func TestTimeframeDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tf   string
		want time.Duration
	}{
		{"1m", time.Minute},
		{"15m", 15 * time.Minute},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.tf, func(t *testing.T) {
			t.Parallel()
			d, err := Timeframe(tt.tf).Duration()
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestTimeframeDurationInvalid(t *testing.T) {
	t.Parallel()

	for _, tf := range []string{"", "m", "0m", "-5m", "15x", "h1"} {
		_, err := Timeframe(tf).Duration()
		assert.Error(t, err, "timeframe %q", tf)
	}
}

func TestSeriesUpTo(t *testing.T) {
	t.Parallel()

	s := mkSeries(t, 10)

	// Exactly at the fourth bar's open: bars 0..3 visible.
	cut := s.Candles[3].Time
	got := s.UpTo(cut)
	assert.Equal(t, 4, got.Len())

	last, ok := got.Last()
	require.True(t, ok)
	assert.True(t, last.Time.Equal(cut))

	// Before the first bar: empty.
	assert.Equal(t, 0, s.UpTo(s.Candles[0].Time.Add(-time.Second)).Len())

	// After the last bar: everything.
	assert.Equal(t, 10, s.UpTo(s.Candles[9].Time.Add(time.Hour)).Len())
}

func TestSeriesBetween(t *testing.T) {
	t.Parallel()

	s := mkSeries(t, 10)

	got := s.Between(s.Candles[2].Time, s.Candles[7].Time)
	assert.Equal(t, 5, got.Len())
	assert.True(t, got.Candles[0].Time.Equal(s.Candles[2].Time))

	// Open-ended bounds.
	assert.Equal(t, 10, s.Between(time.Time{}, time.Time{}).Len())
}

func TestSeriesValidate(t *testing.T) {
	t.Parallel()

	s := mkSeries(t, 5)
	assert.NoError(t, s.Validate())

	s.Candles[3].Time = s.Candles[2].Time
	assert.Error(t, s.Validate())
}
