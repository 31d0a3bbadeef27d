package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/rostredko/smc-bot-sub000/market"
)

// binanceKlineLimit is the exchange's maximum klines per request.
const binanceKlineLimit = 1000

// BinanceLoader fetches historical klines from Binance spot, paginating
// through the requested window. API keys are optional for kline data but
// raise the rate limits when present.
type BinanceLoader struct {
	client *binance.Client
}

func NewBinanceLoader(apiKey, secretKey string) *BinanceLoader {
	return &BinanceLoader{client: binance.NewClient(apiKey, secretKey)}
}

func (l *BinanceLoader) GetData(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) (market.Series, error) {
	interval, err := tf.Duration()
	if err != nil {
		return market.Series{}, err
	}

	s := market.Series{Symbol: symbol, Timeframe: tf}

	from := start.UnixMilli()
	until := end.UnixMilli()

	for from < until {
		klines, err := l.client.NewKlinesService().
			Symbol(symbol).
			Interval(tf.String()).
			StartTime(from).
			EndTime(until).
			Limit(binanceKlineLimit).
			Do(ctx)
		if err != nil {
			return market.Series{}, fmt.Errorf("fetch klines %s/%s: %w", symbol, tf, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			c, err := klineToCandle(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
			if err != nil {
				return market.Series{}, fmt.Errorf("parse kline %s/%s: %w", symbol, tf, err)
			}
			s.Candles = append(s.Candles, c)
		}

		if len(klines) < binanceKlineLimit {
			break
		}
		from = klines[len(klines)-1].OpenTime + interval.Milliseconds()
	}

	if err := s.Validate(); err != nil {
		return market.Series{}, err
	}
	return s, nil
}

func klineToCandle(openTime int64, open, high, low, closePx, volume string) (market.Candle, error) {
	vals := make([]float64, 5)
	for i, raw := range []string{open, high, low, closePx, volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("bad field %q: %w", raw, err)
		}
		vals[i] = v
	}

	return market.Candle{
		Time:   time.UnixMilli(openTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
