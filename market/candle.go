package market

import "time"

// Candle is a single OHLCV bar. Time is the bar's open time in UTC.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
