package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rostredko/smc-bot-sub000/market"
	"github.com/rostredko/smc-bot-sub000/risk"
	"github.com/rostredko/smc-bot-sub000/strategy"
)

// Config holds everything the engine needs for one run. Validation is
// fatal at startup; nothing is checked again inside the bar loop.
type Config struct {
	Symbol  string
	Primary market.Timeframe

	InitialCapital float64
	RiskPerTrade   float64 // percent
	MaxDrawdown    float64 // percent
	MaxPositions   int
	MinRiskReward  float64

	TakerFee         float64 // fraction of exit notional, default 0.0004
	TrailingDistance float64 // fraction, default 0.02
	DefaultStopPct   float64 // fraction, default 0.02

	MaxConsecutiveLosses int
	SoftHaltDuration     time.Duration
	CooldownBars         int
	LotStep              float64
}

func (c *Config) applyDefaults() {
	if c.TakerFee <= 0 {
		c.TakerFee = 0.0004
	}
	if c.TrailingDistance <= 0 {
		c.TrailingDistance = 0.02
	}
	if c.DefaultStopPct <= 0 {
		c.DefaultStopPct = 0.02
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 1
	}
}

// EquityPoint is one append-only sample of the equity curve, taken once
// per bar after all position updates.
type EquityPoint struct {
	Time          time.Time
	Equity        float64
	Cash          float64
	UnrealizedPnL float64
	DrawdownPct   float64
	OpenPositions int
}

// Result is the full output of a run: derived statistics, every closed
// position in close order, and the equity curve.
type Result struct {
	Report Report
	Trades []*Position
	Equity []EquityPoint
}

// Engine drives the bar-by-bar simulation. It is the sole owner of every
// Position it creates; the risk manager only ever sees numeric deltas.
// The loop is single-threaded and deterministic: identical candles,
// config, and signals produce identical results.
type Engine struct {
	cfg    Config
	risk   *risk.Manager
	strat  strategy.Strategy
	frames map[market.Timeframe]market.Series
	logger *log.Logger

	nextID int
	open   []*Position
	closed []*Position
	equity []EquityPoint
}

// NewEngine validates the configuration and data and builds an engine.
func NewEngine(cfg Config, strat strategy.Strategy, frames map[market.Timeframe]market.Series, logger *log.Logger) (*Engine, error) {
	cfg.applyDefaults()

	if cfg.Symbol == "" {
		return nil, fmt.Errorf("backtest: symbol is required")
	}
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest: initial capital must be positive")
	}
	primary, ok := frames[cfg.Primary]
	if !ok || primary.Len() == 0 {
		return nil, fmt.Errorf("backtest: no data for primary timeframe %q", cfg.Primary)
	}
	barInterval, err := cfg.Primary.Duration()
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "backtest: ", log.LstdFlags)
	}

	rm := risk.NewManager(risk.Config{
		InitialCapital:       cfg.InitialCapital,
		RiskPerTrade:         cfg.RiskPerTrade,
		MaxDrawdown:          cfg.MaxDrawdown,
		MaxPositions:         cfg.MaxPositions,
		MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		SoftHaltDuration:     cfg.SoftHaltDuration,
		CooldownBars:         cfg.CooldownBars,
		BarInterval:          barInterval,
		LotStep:              cfg.LotStep,
	})

	return &Engine{
		cfg:    cfg,
		risk:   rm,
		strat:  strat,
		frames: frames,
		logger: logger,
	}, nil
}

// Risk exposes the risk manager, mainly so a host application can clear a
// tripped hard halt between runs.
func (e *Engine) Risk() *risk.Manager { return e.risk }

// Run executes the simulation. Cancellation is cooperative: the context is
// checked once per bar, and on cancellation the remaining open positions
// are settled against the last processed bar so the result stays
// well-formed.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	primary := e.frames[e.cfg.Primary]

	var lastBar market.Candle
	var processed bool

	for _, bar := range primary.Candles {
		select {
		case <-ctx.Done():
			e.logger.Printf("run cancelled at %s", bar.Time.Format(time.RFC3339))
			return e.finish(lastBar, processed, "Cancelled"), nil
		default:
		}

		e.step(bar)
		lastBar = bar
		processed = true
	}

	return e.finish(lastBar, processed, "End of backtest"), nil
}

// step processes one bar: signals, entries, position updates, equity sample.
func (e *Engine) step(bar market.Candle) {
	snap := e.snapshotAt(bar.Time)

	for _, sig := range e.callStrategy(snap) {
		if sig.Direction == strategy.Exit {
			e.closeAll(bar.Close, bar.Time, exitReason(sig))
			continue
		}
		e.executeSignal(sig, bar)
	}

	e.updatePositions(bar.Close, bar.Time)
	e.recordEquity(bar.Close, bar.Time)
}

// snapshotAt builds the no-look-ahead market view for the strategy.
func (e *Engine) snapshotAt(t time.Time) *market.Snapshot {
	frames := make(map[market.Timeframe]market.Series, len(e.frames))
	for tf, s := range e.frames {
		frames[tf] = s.UpTo(t)
	}
	return &market.Snapshot{
		Symbol:  e.cfg.Symbol,
		Time:    t,
		Primary: e.cfg.Primary,
		Frames:  frames,
	}
}

// callStrategy invokes the strategy. An error or panic is logged and
// contributes zero signals, never aborting the run.
func (e *Engine) callStrategy(snap *market.Snapshot) (sigs []strategy.Signal) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("strategy %s panicked at %s: %v",
				e.strat.Name(), snap.Time.Format(time.RFC3339), r)
			sigs = nil
		}
	}()

	sigs, err := e.strat.GenerateSignals(snap)
	if err != nil {
		e.logger.Printf("strategy %s failed at %s: %v",
			e.strat.Name(), snap.Time.Format(time.RFC3339), err)
		return nil
	}
	return sigs
}

// executeSignal validates, sizes, and opens a position for one LONG/SHORT
// signal. Every rejection is logged with its reason code and leaves no
// state behind.
func (e *Engine) executeSignal(sig strategy.Signal, bar market.Candle) {
	dir := sig.Direction
	if dir != strategy.Long && dir != strategy.Short {
		return
	}

	entry := sig.EntryPrice
	if entry <= 0 {
		entry = bar.Close
	}

	stop := sig.StopLoss
	if stop <= 0 {
		stop = entry * (1 - dir.Sign()*e.cfg.DefaultStopPct)
	}

	// The stop must sit on the adverse side of entry.
	if (dir == strategy.Long && stop >= entry) || (dir == strategy.Short && stop <= entry) {
		e.logger.Printf("signal rejected [INVALID_STOP]: %s stop %.8f vs entry %.8f", dir, stop, entry)
		return
	}

	riskDist := (entry - stop) * dir.Sign()

	if sig.TakeProfit > 0 {
		rr := (sig.TakeProfit - entry) * dir.Sign() / riskDist
		if rr < e.cfg.MinRiskReward {
			e.logger.Printf("signal rejected [RR_TOO_LOW]: %.2f < %.2f (%s)", rr, e.cfg.MinRiskReward, sig.Reason)
			return
		}
	}

	if dec := e.risk.CanOpen(dir, entry, stop, bar.Time, bar.Close); !dec.Allowed {
		e.logger.Printf("signal rejected [%s]: %s", dec.Code, dec.Msg)
		return
	}

	size := e.risk.PositionSize(entry, stop)
	if size <= 0 {
		e.logger.Printf("signal rejected [ZERO_SIZE]: entry %.8f stop %.8f", entry, stop)
		return
	}

	e.nextID++
	pos := NewPosition(e.nextID, dir, entry, size, stop, bar.Time, sig.Reason,
		e.cfg.TakerFee, e.cfg.TrailingDistance)

	if sig.TakeProfit > 0 {
		pos.SetLadder([]TakeProfitLevel{{Price: sig.TakeProfit, Percentage: 1.0, Reason: "TAKE PROFIT"}})
	} else {
		pos.SetLadder(DefaultLadder(dir, entry, stop))
	}

	e.open = append(e.open, pos)
	e.risk.AddExposure(dir.Sign()*size, entry)

	e.logger.Printf("position %d opened: %s %.6f @ %.8f stop %.8f (%s)",
		pos.ID, dir, size, entry, stop, sig.Reason)
}

// updatePositions runs each open position's state machine against the
// bar close and books every resulting exit leg with the risk manager.
func (e *Engine) updatePositions(price float64, now time.Time) {
	remaining := e.open[:0]
	for _, pos := range e.open {
		legs, done := pos.Update(price, now)
		e.bookLegs(pos, legs)
		if done {
			e.settle(pos, now)
		} else {
			remaining = append(remaining, pos)
		}
	}
	e.open = remaining
}

// closeAll force-closes every open position at the given price.
func (e *Engine) closeAll(price float64, now time.Time, reason string) {
	for _, pos := range e.open {
		leg := pos.CloseAt(price, now, reason)
		e.bookLegs(pos, []ExitLeg{leg})
		e.settle(pos, now)
	}
	e.open = e.open[:0]
}

func (e *Engine) bookLegs(pos *Position, legs []ExitLeg) {
	sign := pos.Direction.Sign()
	for _, leg := range legs {
		e.risk.ReleaseExposure(sign*leg.Size, pos.EntryPrice)
		e.risk.CreditPnL(leg.PnL)
	}
}

func (e *Engine) settle(pos *Position, now time.Time) {
	e.risk.SettleTrade(pos.RealizedPnL, pos.Direction, now)
	e.closed = append(e.closed, pos)
	e.logger.Printf("position %d closed: %s pnl %.2f (%.2fR) reason %q",
		pos.ID, pos.Direction, pos.RealizedPnL, pos.RiskReward(), pos.ExitReason)
}

func (e *Engine) recordEquity(price float64, now time.Time) {
	e.risk.UpdatePeakEquity(price)

	unrealized := 0.0
	for _, pos := range e.open {
		unrealized += pos.UnrealizedPnL(price)
	}

	e.equity = append(e.equity, EquityPoint{
		Time:          now,
		Equity:        e.risk.Equity(price),
		Cash:          e.risk.Cash(),
		UnrealizedPnL: unrealized,
		DrawdownPct:   e.risk.Drawdown(price),
		OpenPositions: len(e.open),
	})
}

// finish settles any open positions against the last processed bar and
// computes the report. With no processed bars the result is empty but
// still well-formed.
func (e *Engine) finish(lastBar market.Candle, processed bool, reason string) *Result {
	if processed && len(e.open) > 0 {
		e.closeAll(lastBar.Close, lastBar.Time, reason)
	}

	return &Result{
		Report: ComputeReport(e.closed, e.equity, e.cfg.InitialCapital),
		Trades: e.closed,
		Equity: e.equity,
	}
}

func exitReason(sig strategy.Signal) string {
	if sig.Reason != "" {
		return sig.Reason
	}
	return "Strategy exit"
}
