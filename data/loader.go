package data

import (
	"context"
	"time"

	"github.com/rostredko/smc-bot-sub000/market"
)

// Loader retrieves historical OHLCV series. Implementations must return
// candles with strictly increasing open times; the engine relies on that
// contract and does not re-validate it.
type Loader interface {
	GetData(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) (market.Series, error)
}
