package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rostredko/smc-bot-sub000/market"
)

func closesToCandles(closes []float64) []market.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Time:  base.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	t.Parallel()

	candles := closesToCandles([]float64{1, 2, 3, 4, 5})

	got, err := SMA(candles, 3)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-9)
}

func TestSMANotEnoughData(t *testing.T) {
	t.Parallel()

	candles := closesToCandles([]float64{1, 2})
	_, err := SMA(candles, 3)
	assert.Error(t, err)

	_, err = SMA(candles, 0)
	assert.Error(t, err)
}

func TestEMAConstantSeries(t *testing.T) {
	t.Parallel()

	candles := closesToCandles([]float64{5, 5, 5, 5, 5, 5, 5, 5})
	got, err := EMA(candles, 4)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9)
}

func TestEMATracksTrend(t *testing.T) {
	t.Parallel()

	up := closesToCandles([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	ema, err := EMA(up, 3)
	require.NoError(t, err)
	sma, err := SMA(up, 3)
	require.NoError(t, err)

	// EMA lags the last close but stays close to the recent average in a steady trend.
	assert.Less(t, ema, 10.0)
	assert.Greater(t, ema, sma-2)
}

func TestATRConstantRange(t *testing.T) {
	t.Parallel()

	// Every bar has high-low = 2 and closes equal, so TR is constant.
	candles := closesToCandles([]float64{10, 10, 10, 10, 10, 10})
	got, err := ATR(candles, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestATRNotEnoughData(t *testing.T) {
	t.Parallel()

	candles := closesToCandles([]float64{1, 2, 3})
	_, err := ATR(candles, 3)
	assert.Error(t, err)
}
