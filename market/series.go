package market

import (
	"fmt"
	"sort"
	"time"
)

// Series is a time-ordered run of candles for one symbol and timeframe.
// Candles are strictly increasing by open time; loaders are expected to
// call Validate before handing a Series to the engine.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

func (s Series) Len() int { return len(s.Candles) }

// Last returns the most recent candle, false if the series is empty.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// UpTo returns the sub-series of candles with open time <= t.
// The result shares the backing array; callers must treat it as read-only.
func (s Series) UpTo(t time.Time) Series {
	i := sort.Search(len(s.Candles), func(i int) bool {
		return s.Candles[i].Time.After(t)
	})
	return Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[:i]}
}

// Between returns the sub-series with open times in [from, to).
// Zero bounds are open-ended.
func (s Series) Between(from, to time.Time) Series {
	lo := 0
	if !from.IsZero() {
		lo = sort.Search(len(s.Candles), func(i int) bool {
			return !s.Candles[i].Time.Before(from)
		})
	}
	hi := len(s.Candles)
	if !to.IsZero() {
		hi = sort.Search(len(s.Candles), func(i int) bool {
			return !s.Candles[i].Time.Before(to)
		})
	}
	if hi < lo {
		hi = lo
	}
	return Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[lo:hi]}
}

// Validate checks the series contract: strictly increasing timestamps.
func (s Series) Validate() error {
	for i := 1; i < len(s.Candles); i++ {
		if !s.Candles[i].Time.After(s.Candles[i-1].Time) {
			return fmt.Errorf("series %s/%s: candle %d time %s not after %s",
				s.Symbol, s.Timeframe, i,
				s.Candles[i].Time.Format(time.RFC3339),
				s.Candles[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}
