package journal

import "time"

// RunRecord summarizes one backtest run.
type RunRecord struct {
	RunID          string
	Symbol         string
	Strategy       string
	Start          time.Time
	End            time.Time
	InitialCapital float64
	FinalEquity    float64
	TotalTrades    int
	CreatedAt      time.Time
}

// TradeRecord is one closed position, serialized for persistence.
type TradeRecord struct {
	RunID       string
	PositionID  int
	Symbol      string
	Direction   string
	EntryPrice  float64
	ExitPrice   float64
	Size        float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnL float64
	ExitReason  string
	RiskReward  float64
}

// EquityRecord is one equity-curve sample.
type EquityRecord struct {
	RunID         string
	Time          time.Time
	Equity        float64
	Cash          float64
	UnrealizedPnL float64
	DrawdownPct   float64
	OpenPositions int
}

// Journal persists backtest output. Implementations must tolerate being
// written to in run order: RecordRun once, then trades and equity samples.
type Journal interface {
	RecordRun(RunRecord) error
	RecordTrade(TradeRecord) error
	RecordEquity(EquityRecord) error
	Close() error
}
