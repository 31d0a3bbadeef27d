package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rostredko/smc-bot-sub000/strategy"
)

// Rejection reason codes returned by Manager.CanOpen.
const (
	CodeOK           = "OK"
	CodeCooldown     = "COOLDOWN_ACTIVE"
	CodeHalted       = "TRADING_HALTED"
	CodeDrawdown     = "DRAWDOWN_EXCEEDED"
	CodeSoftHalt     = "SOFT_HALT"
	CodeMaxPositions = "MAX_POSITIONS"
	CodeNoCash       = "INSUFFICIENT_CASH"
)

const (
	// cashBuffer keeps 5% of cash free for fees and slippage.
	cashBuffer = 0.95
	// minStopDistancePct floors the stop distance at 1% of entry so a
	// near-zero stop cannot produce an oversized position.
	minStopDistancePct = 0.01
	// softHaltFactor is the risk reduction applied when a loss streak
	// trips the soft halt; restoreFactor applies once the halt expires.
	softHaltFactor = 0.5
	restoreFactor  = 0.7
)

// Config holds the risk limits for one backtest run.
type Config struct {
	InitialCapital       float64
	RiskPerTrade         float64 // percent of cash risked per trade
	MaxDrawdown          float64 // percent from peak equity, trips the hard halt
	MaxPositions         int
	MaxConsecutiveLosses int           // loss streak that trips the soft halt
	SoftHaltDuration     time.Duration // how long the soft halt lasts
	CooldownBars         int           // bars to wait after a loss, per direction
	BarInterval          time.Duration // primary timeframe bar length
	LotStep              float64       // position sizes are floored to this step
}

func (c *Config) applyDefaults() {
	if c.MaxConsecutiveLosses <= 0 {
		c.MaxConsecutiveLosses = 5
	}
	if c.SoftHaltDuration <= 0 {
		c.SoftHaltDuration = 4 * time.Hour
	}
	if c.CooldownBars < 0 {
		c.CooldownBars = 0
	}
	if c.BarInterval <= 0 {
		c.BarInterval = 15 * time.Minute
	}
	if c.LotStep <= 0 {
		c.LotStep = 0.001
	}
}

// Decision is the structured outcome of a pre-trade check. A rejection is
// not an error: the caller logs it and moves on.
type Decision struct {
	Allowed bool
	Code    string
	Msg     string
}

func allow() Decision {
	return Decision{Allowed: true, Code: CodeOK, Msg: "OK"}
}

func reject(code, format string, args ...any) Decision {
	return Decision{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Manager owns the account bookkeeping and circuit breakers for a run.
// It never holds Position references; the engine reports exposure changes
// as explicit numeric deltas so the two sides cannot drift.
//
// Spot-style accounting: cash decreases by notional on entry and the
// notional is released on exit, with realized PnL credited separately.
// Equity at any price is cash + assetQty*price.
type Manager struct {
	cfg Config

	cash     float64
	assetQty float64 // signed: shorts carry negative quantity

	peakEquity          float64
	consecutiveLosses   int
	riskReductionFactor float64

	halted     bool
	haltReason string

	softHaltUntil time.Time

	lastLossTime map[strategy.Direction]time.Time

	openPositions int
}

func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:                 cfg,
		cash:                cfg.InitialCapital,
		peakEquity:          cfg.InitialCapital,
		riskReductionFactor: 1.0,
		lastLossTime:        make(map[strategy.Direction]time.Time),
	}
}

func (m *Manager) Cash() float64                { return m.cash }
func (m *Manager) AssetQty() float64            { return m.assetQty }
func (m *Manager) PeakEquity() float64          { return m.peakEquity }
func (m *Manager) ConsecutiveLosses() int       { return m.consecutiveLosses }
func (m *Manager) RiskReductionFactor() float64 { return m.riskReductionFactor }
func (m *Manager) OpenPositions() int           { return m.openPositions }
func (m *Manager) Halted() (bool, string)       { return m.halted, m.haltReason }

// Equity values the account at the given price.
func (m *Manager) Equity(price float64) float64 {
	return m.cash + m.assetQty*price
}

// Drawdown returns the current drawdown from peak equity, in percent.
func (m *Manager) Drawdown(price float64) float64 {
	if m.peakEquity <= 0 {
		return 0
	}
	dd := (m.peakEquity - m.Equity(price)) / m.peakEquity * 100
	if dd < 0 {
		return 0
	}
	return dd
}

// UpdatePeakEquity advances the high-water mark. The two branches are
// ordered: raise the peak first, then clamp it back up to initial capital
// while the account is underwater and has never recovered above its start.
// Without the clamp, a peak below initial capital would understate drawdown.
func (m *Manager) UpdatePeakEquity(price float64) {
	eq := m.Equity(price)

	if eq > m.peakEquity {
		m.peakEquity = eq
		m.riskReductionFactor = 1.0
	}

	if eq < m.cfg.InitialCapital && m.peakEquity < m.cfg.InitialCapital {
		m.peakEquity = m.cfg.InitialCapital
	}
}

// PositionSize returns the quantity to trade for the given entry and stop:
// risk-based size capped by available cash, floored to the lot step.
// Returns 0 if the inputs cannot produce a positive size.
func (m *Manager) PositionSize(entry, stop float64) float64 {
	if entry <= 0 || m.cash <= 0 {
		return 0
	}

	riskAmount := m.cash * (m.cfg.RiskPerTrade / 100) * m.riskReductionFactor
	riskDistance := math.Max(math.Abs(entry-stop), entry*minStopDistancePct)
	if riskDistance <= 0 {
		return 0
	}

	qtyFromRisk := riskAmount / riskDistance
	qtyFromCash := m.cash * cashBuffer / entry

	qty := math.Min(qtyFromRisk, qtyFromCash)
	qty = math.Floor(qty/m.cfg.LotStep) * m.cfg.LotStep
	if qty < 0 {
		return 0
	}
	return qty
}

// CanOpen runs the pre-trade circuit breakers in order and returns the first
// failing check. Only a fully clean pass allows the trade.
func (m *Manager) CanOpen(dir strategy.Direction, entry, stop float64, now time.Time, price float64) Decision {
	// 1. Per-direction cooldown after a losing exit.
	if m.cfg.CooldownBars > 0 {
		window := time.Duration(m.cfg.CooldownBars) * m.cfg.BarInterval
		if last, ok := m.lastLossTime[dir]; ok && now.Sub(last) < window {
			remaining := window - now.Sub(last)
			return reject(CodeCooldown, "cooldown active for %s: %s remaining", dir, remaining)
		}
	}

	// 2. Sticky hard halt from an earlier trip.
	if m.halted {
		return reject(CodeHalted, "%s", m.haltReason)
	}

	// 3. Drawdown breaker: trips the sticky halt.
	m.UpdatePeakEquity(price)
	dd := m.Drawdown(price)
	if dd >= m.cfg.MaxDrawdown {
		m.halted = true
		m.haltReason = fmt.Sprintf("Critical drawdown exceeded: %.2f%% >= %.2f%%", dd, m.cfg.MaxDrawdown)
		return reject(CodeDrawdown, "%s", m.haltReason)
	}

	// 4. Loss-streak soft halt: time-boxed, self-clearing.
	if m.consecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		if m.softHaltUntil.IsZero() {
			m.softHaltUntil = now.Add(m.cfg.SoftHaltDuration)
			m.riskReductionFactor = softHaltFactor
			return reject(CodeSoftHalt, "%d consecutive losses, halting until %s",
				m.consecutiveLosses, m.softHaltUntil.Format(time.RFC3339))
		}
		if now.Before(m.softHaltUntil) {
			return reject(CodeSoftHalt, "soft halt active until %s",
				m.softHaltUntil.Format(time.RFC3339))
		}
		// Halt expired: clear the streak and partially restore risk.
		m.softHaltUntil = time.Time{}
		m.consecutiveLosses = 0
		m.riskReductionFactor = restoreFactor
	}

	// 5. Open position count.
	if m.openPositions >= m.cfg.MaxPositions {
		return reject(CodeMaxPositions, "open positions %d >= max %d", m.openPositions, m.cfg.MaxPositions)
	}

	// 6. Cash sufficiency for the estimated notional.
	qty := m.PositionSize(entry, stop)
	if qty <= 0 || qty*entry > m.cash*cashBuffer {
		return reject(CodeNoCash, "insufficient cash for entry %.8f (cash %.2f)", entry, m.cash)
	}

	return allow()
}

// AddExposure books a new position: the signed quantity (negative for
// shorts) is added to holdings and its notional deducted from cash.
func (m *Manager) AddExposure(qty, entry float64) {
	m.cash -= qty * entry
	m.assetQty += qty
	m.openPositions++
}

// ReleaseExposure returns part of a position's entry notional to cash.
// Called on partial and final exits with the signed quantity being closed.
func (m *Manager) ReleaseExposure(qty, entry float64) {
	m.cash += qty * entry
	m.assetQty -= qty
}

// CreditPnL applies a net realized PnL (fees already deducted) to cash.
func (m *Manager) CreditPnL(pnl float64) {
	m.cash += pnl
}

// SettleTrade records a fully closed trade's outcome for the streak,
// cooldown, and risk-reduction bookkeeping. Cash is not touched here;
// ReleaseExposure and CreditPnL already did that per exit.
func (m *Manager) SettleTrade(totalPnL float64, dir strategy.Direction, exitTime time.Time) {
	m.openPositions--

	if totalPnL < 0 {
		m.consecutiveLosses++
		m.lastLossTime[dir] = exitTime
		if m.consecutiveLosses >= 3 {
			m.riskReductionFactor = math.Max(0.3, 1-0.1*float64(m.consecutiveLosses))
		}
		return
	}

	m.consecutiveLosses = 0
	m.riskReductionFactor = math.Min(1.0, m.riskReductionFactor+0.1)
}

// ResetHalt clears a tripped hard halt. Only the host application calls
// this; the engine never does.
func (m *Manager) ResetHalt() {
	m.halted = false
	m.haltReason = ""
}
