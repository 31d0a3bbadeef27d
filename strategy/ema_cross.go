package strategy

import (
	"fmt"

	"github.com/rostredko/smc-bot-sub000/indicators"
	"github.com/rostredko/smc-bot-sub000/market"
)

// EMACross signals on fast/slow EMA crossovers of the primary timeframe:
// a bullish cross emits LONG, a bearish cross emits EXIT. Stops and
// targets are left to the engine defaults (2% stop, R-multiple
// take-profit ladder).
type EMACross struct {
	FastPeriod int
	SlowPeriod int
}

func NewEMACross(fast, slow int) *EMACross {
	if fast <= 0 {
		fast = 9
	}
	if slow <= fast {
		slow = fast * 3
	}
	return &EMACross{FastPeriod: fast, SlowPeriod: slow}
}

func (e *EMACross) Name() string { return "ema-cross" }

func (e *EMACross) GenerateSignals(snap *market.Snapshot) ([]Signal, error) {
	frame := snap.PrimaryFrame()
	if frame.Len() < e.SlowPeriod+1 {
		return nil, nil
	}

	now := frame.Candles
	prev := frame.Candles[:frame.Len()-1]

	diffNow, err := e.diff(now)
	if err != nil {
		return nil, err
	}
	diffPrev, err := e.diff(prev)
	if err != nil {
		return nil, err
	}

	switch {
	case diffPrev <= 0 && diffNow > 0:
		return []Signal{{
			Direction: Long,
			Reason:    fmt.Sprintf("EMA%d crossed above EMA%d", e.FastPeriod, e.SlowPeriod),
		}}, nil

	case diffPrev >= 0 && diffNow < 0:
		return []Signal{{
			Direction: Exit,
			Reason:    fmt.Sprintf("EMA%d crossed below EMA%d", e.FastPeriod, e.SlowPeriod),
		}}, nil
	}

	return nil, nil
}

func (e *EMACross) diff(candles []market.Candle) (float64, error) {
	fast, err := indicators.EMA(candles, e.FastPeriod)
	if err != nil {
		return 0, err
	}
	slow, err := indicators.EMA(candles, e.SlowPeriod)
	if err != nil {
		return 0, err
	}
	return fast - slow, nil
}
