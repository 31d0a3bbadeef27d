package backtest

import (
	"math"
	"time"

	"github.com/rostredko/smc-bot-sub000/strategy"
)

// Phase is the lifecycle state of a position. Transitions are one-way:
// Open -> BreakevenLocked -> Trailing -> Closed, though a phase may be
// skipped (a position can close straight from Open).
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseBreakevenLocked
	PhaseTrailing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseOpen:
		return "OPEN"
	case PhaseBreakevenLocked:
		return "BREAKEVEN_LOCKED"
	case PhaseTrailing:
		return "TRAILING"
	case PhaseClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Ladder tier percentages with lifecycle side effects: filling the
// breakeven tier moves the stop to entry, filling the trailing tier
// activates the trailing stop.
const (
	breakevenTierPct = 0.50
	trailingTierPct  = 0.30
)

// sizeEpsilon treats a remainder below this as fully exited, absorbing
// float error from percentage splits.
const sizeEpsilon = 1e-9

// TakeProfitLevel is one rung of an exit ladder. Percentage is a fraction
// of the position's original size.
type TakeProfitLevel struct {
	Price      float64
	Percentage float64
	Reason     string
}

// ExitLeg records one fill that reduced the position: a partial ladder
// fill or the final close. PnL is net of the taker fee.
type ExitLeg struct {
	Time   time.Time
	Price  float64
	Size   float64
	PnL    float64
	Reason string
	Final  bool
}

// Position is a single simulated trade. It is created by the engine on a
// validated signal and mutated only through Update and CloseAt; once the
// phase reaches Closed it is immutable.
type Position struct {
	ID        int
	Direction strategy.Direction

	EntryPrice   float64
	OriginalSize float64
	EntryTime    time.Time
	Reason       string

	// RiskAmount is the cash at risk at entry: |entry-stop| * size.
	RiskAmount float64

	Size     float64
	StopLoss float64
	Levels   []TakeProfitLevel

	Phase        Phase
	TrailingHigh float64
	TrailingLow  float64

	RealizedPnL float64
	Exits       []ExitLeg

	ExitPrice  float64
	ExitTime   time.Time
	ExitReason string

	feeRate      float64
	trailingDist float64

	hit map[float64]bool
}

// NewPosition opens a position. The stop must already be on the adverse
// side of entry; the engine validates that before construction.
func NewPosition(id int, dir strategy.Direction, entry, size, stop float64, entryTime time.Time, reason string, feeRate, trailingDist float64) *Position {
	return &Position{
		ID:           id,
		Direction:    dir,
		EntryPrice:   entry,
		OriginalSize: size,
		Size:         size,
		StopLoss:     stop,
		EntryTime:    entryTime,
		Reason:       reason,
		RiskAmount:   math.Abs(entry-stop) * size,
		Phase:        PhaseOpen,
		TrailingHigh: entry,
		TrailingLow:  entry,
		feeRate:      feeRate,
		trailingDist: trailingDist,
		hit:          make(map[float64]bool),
	}
}

// SetLadder installs the take-profit levels. Levels must be ordered
// nearest-first; they are checked in order on each bar.
func (p *Position) SetLadder(levels []TakeProfitLevel) {
	p.Levels = levels
}

// DefaultLadder builds the standard 3-tier exit at 1R/2R/2.5R with
// 50%/30%/20% splits, mirrored below entry for shorts.
func DefaultLadder(dir strategy.Direction, entry, stop float64) []TakeProfitLevel {
	r := math.Abs(entry - stop)
	sign := dir.Sign()
	return []TakeProfitLevel{
		{Price: entry + sign*1.0*r, Percentage: 0.50, Reason: "TP1 (1R)"},
		{Price: entry + sign*2.0*r, Percentage: 0.30, Reason: "TP2 (2R)"},
		{Price: entry + sign*2.5*r, Percentage: 0.20, Reason: "TP3 (2.5R)"},
	}
}

func (p *Position) IsClosed() bool { return p.Phase == PhaseClosed }

// LevelHit reports whether the ladder level at the given price has filled.
func (p *Position) LevelHit(price float64) bool { return p.hit[price] }

// UnrealizedPnL values the remaining size at the given price, before fees.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.EntryPrice) * p.Size * p.Direction.Sign()
}

// RiskReward is the trade's outcome as a multiple of its initial risk.
func (p *Position) RiskReward() float64 {
	if p.RiskAmount <= 0 {
		return 0
	}
	return p.RealizedPnL / p.RiskAmount
}

// moveStop tightens the stop, never loosening: a long stop only rises,
// a short stop only falls.
func (p *Position) moveStop(stop float64) {
	if p.Direction == strategy.Long && stop > p.StopLoss {
		p.StopLoss = stop
	}
	if p.Direction == strategy.Short && stop < p.StopLoss {
		p.StopLoss = stop
	}
}

func (p *Position) advance(ph Phase) {
	if ph > p.Phase {
		p.Phase = ph
	}
}

func (p *Position) stopHit(price float64) bool {
	if p.Direction == strategy.Long {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

func (p *Position) levelReached(price float64, lvl TakeProfitLevel) bool {
	if p.Direction == strategy.Long {
		return price >= lvl.Price
	}
	return price <= lvl.Price
}

// Update advances the position against the bar's close price, in order:
// stop check, then ladder check, then trailing-stop update. It returns the
// exit legs filled on this bar (possibly none) and whether the position
// is now closed.
//
// At most one ladder level fills per bar even if the price cleared several;
// the remaining levels fill on subsequent bars.
func (p *Position) Update(price float64, now time.Time) ([]ExitLeg, bool) {
	if p.IsClosed() {
		return nil, true
	}

	// 1. Stop loss wins over take profit on the same bar.
	if p.stopHit(price) {
		leg := p.closeRemaining(price, now, "STOP LOSS")
		return []ExitLeg{leg}, true
	}

	// 2. First unfilled ladder level whose price condition is met.
	var legs []ExitLeg
	for _, lvl := range p.Levels {
		if p.hit[lvl.Price] || !p.levelReached(price, lvl) {
			continue
		}

		p.hit[lvl.Price] = true

		qty := p.OriginalSize * lvl.Percentage
		if qty > p.Size {
			qty = p.Size
		}

		if p.Size-qty <= sizeEpsilon {
			leg := p.closeRemaining(price, now, lvl.Reason)
			return append(legs, leg), true
		}

		legs = append(legs, p.partialExit(price, qty, now, lvl.Reason))

		switch lvl.Percentage {
		case breakevenTierPct:
			p.moveStop(p.EntryPrice)
			p.advance(PhaseBreakevenLocked)
		case trailingTierPct:
			p.advance(PhaseTrailing)
		}
		break
	}

	// 3. Trailing stop follows new extremes at a fixed distance.
	if p.Phase == PhaseTrailing {
		if p.Direction == strategy.Long && price > p.TrailingHigh {
			p.TrailingHigh = price
			p.moveStop(price * (1 - p.trailingDist))
		}
		if p.Direction == strategy.Short && price < p.TrailingLow {
			p.TrailingLow = price
			p.moveStop(price * (1 + p.trailingDist))
		}
	}

	return legs, false
}

// CloseAt closes the full remaining size at the given price (strategy
// exit, end of backtest, cancellation).
func (p *Position) CloseAt(price float64, now time.Time, reason string) ExitLeg {
	return p.closeRemaining(price, now, reason)
}

func (p *Position) partialExit(price, qty float64, now time.Time, reason string) ExitLeg {
	gross := (price - p.EntryPrice) * qty * p.Direction.Sign()
	fee := price * qty * p.feeRate
	net := gross - fee

	p.RealizedPnL += net
	p.Size -= qty

	leg := ExitLeg{Time: now, Price: price, Size: qty, PnL: net, Reason: reason}
	p.Exits = append(p.Exits, leg)
	return leg
}

func (p *Position) closeRemaining(price float64, now time.Time, reason string) ExitLeg {
	qty := p.Size

	gross := (price - p.EntryPrice) * qty * p.Direction.Sign()
	fee := price * qty * p.feeRate
	net := gross - fee

	p.RealizedPnL += net
	p.Size = 0
	p.Phase = PhaseClosed
	p.ExitPrice = price
	p.ExitTime = now
	p.ExitReason = reason

	leg := ExitLeg{Time: now, Price: price, Size: qty, PnL: net, Reason: reason, Final: true}
	p.Exits = append(p.Exits, leg)
	return leg
}
