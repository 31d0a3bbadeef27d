package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rostredko/smc-bot-sub000/strategy"
)

const testFee = 0.0004

var t0 = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newLong(t *testing.T, entry, size, stop float64) *Position {
	t.Helper()
	p := NewPosition(1, strategy.Long, entry, size, stop, t0, "test", testFee, 0.02)
	p.SetLadder(DefaultLadder(strategy.Long, entry, stop))
	return p
}

func newShort(t *testing.T, entry, size, stop float64) *Position {
	t.Helper()
	p := NewPosition(2, strategy.Short, entry, size, stop, t0, "test", testFee, 0.02)
	p.SetLadder(DefaultLadder(strategy.Short, entry, stop))
	return p
}

func TestDefaultLadder(t *testing.T) {
	t.Parallel()

	long := DefaultLadder(strategy.Long, 100, 95)
	require.Len(t, long, 3)
	assert.InDelta(t, 105.0, long[0].Price, 1e-9)
	assert.InDelta(t, 110.0, long[1].Price, 1e-9)
	assert.InDelta(t, 112.5, long[2].Price, 1e-9)
	assert.InDelta(t, 0.50, long[0].Percentage, 1e-9)
	assert.InDelta(t, 0.30, long[1].Percentage, 1e-9)
	assert.InDelta(t, 0.20, long[2].Percentage, 1e-9)

	short := DefaultLadder(strategy.Short, 100, 105)
	assert.InDelta(t, 95.0, short[0].Price, 1e-9)
	assert.InDelta(t, 90.0, short[1].Price, 1e-9)
	assert.InDelta(t, 87.5, short[2].Price, 1e-9)
}

func TestRiskAmountAtCreation(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 20, 95)
	assert.InDelta(t, 100.0, p.RiskAmount, 1e-9)
}

func TestStopLossClosesFull(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 10, 95)

	legs, closed := p.Update(94, t0.Add(time.Hour))
	require.True(t, closed)
	require.Len(t, legs, 1)

	leg := legs[0]
	assert.True(t, leg.Final)
	assert.Equal(t, "STOP LOSS", leg.Reason)

	wantPnL := (94.0-100.0)*10 - 94.0*10*testFee
	assert.InDelta(t, wantPnL, leg.PnL, 1e-9)
	assert.InDelta(t, wantPnL, p.RealizedPnL, 1e-9)

	assert.True(t, p.IsClosed())
	assert.Zero(t, p.Size)
	assert.Equal(t, PhaseClosed, p.Phase)
	assert.InDelta(t, 94.0, p.ExitPrice, 1e-9)
}

func TestStopTakesPrecedenceOverLadder(t *testing.T) {
	t.Parallel()

	// A price that satisfies the stop never consults the ladder, even if a
	// ladder level would also trigger at that price.
	p := newLong(t, 100, 10, 95)
	p.moveStop(99)

	legs, closed := p.Update(98, t0.Add(time.Hour))
	require.True(t, closed)
	assert.Equal(t, "STOP LOSS", legs[0].Reason)
	assert.False(t, p.LevelHit(105))
}

func TestLadderTP1BreakevenMove(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 10, 95)

	legs, closed := p.Update(105, t0.Add(time.Hour))
	require.False(t, closed)
	require.Len(t, legs, 1)

	assert.InDelta(t, 5.0, legs[0].Size, 1e-9)
	assert.InDelta(t, 5.0, p.Size, 1e-9)
	assert.Equal(t, "TP1 (1R)", legs[0].Reason)

	wantPnL := 5.0*5.0 - 105.0*5.0*testFee
	assert.InDelta(t, wantPnL, legs[0].PnL, 1e-9)

	// Breakeven: stop moved to entry, phase advanced, level marked hit.
	assert.InDelta(t, 100.0, p.StopLoss, 1e-9)
	assert.Equal(t, PhaseBreakevenLocked, p.Phase)
	assert.True(t, p.LevelHit(105))

	// Same level never fills twice.
	legs, closed = p.Update(106, t0.Add(2*time.Hour))
	require.False(t, closed)
	assert.Empty(t, legs)
}

func TestOnlyOneLadderLevelPerBar(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 10, 95)

	// Price clears all three levels at once; only TP1 fills this bar.
	legs, closed := p.Update(113, t0.Add(time.Hour))
	require.False(t, closed)
	require.Len(t, legs, 1)
	assert.Equal(t, "TP1 (1R)", legs[0].Reason)
	assert.InDelta(t, 5.0, p.Size, 1e-9)

	// Next bar at the same price fills TP2 and activates trailing.
	legs, closed = p.Update(113, t0.Add(2*time.Hour))
	require.False(t, closed)
	require.Len(t, legs, 1)
	assert.Equal(t, "TP2 (2R)", legs[0].Reason)
	assert.InDelta(t, 2.0, p.Size, 1e-9)
	assert.Equal(t, PhaseTrailing, p.Phase)

	// Third bar: TP3 empties the position.
	legs, closed = p.Update(113, t0.Add(3*time.Hour))
	require.True(t, closed)
	require.Len(t, legs, 1)
	assert.True(t, legs[0].Final)
	assert.Equal(t, "TP3 (2.5R)", legs[0].Reason)
	assert.Zero(t, p.Size)
}

func TestTrailingStopFollowsHighs(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 10, 95)

	_, _ = p.Update(105, t0.Add(1*time.Hour)) // TP1: breakeven
	_, _ = p.Update(110, t0.Add(2*time.Hour)) // TP2: trailing on

	// Trailing engaged on the TP2 bar itself: stop = 110 * 0.98.
	assert.Equal(t, PhaseTrailing, p.Phase)
	assert.InDelta(t, 107.8, p.StopLoss, 1e-9)
	assert.InDelta(t, 110.0, p.TrailingHigh, 1e-9)

	// New high below TP3 tightens further.
	_, closed := p.Update(112, t0.Add(3*time.Hour))
	require.False(t, closed)
	assert.InDelta(t, 109.76, p.StopLoss, 1e-9)
	assert.InDelta(t, 112.0, p.TrailingHigh, 1e-9)

	// Pullback above the stop: nothing loosens.
	_, closed = p.Update(111, t0.Add(4*time.Hour))
	require.False(t, closed)
	assert.InDelta(t, 109.76, p.StopLoss, 1e-9)
	assert.InDelta(t, 112.0, p.TrailingHigh, 1e-9)

	// Below the trailed stop: closed by stop.
	legs, closed := p.Update(109, t0.Add(5*time.Hour))
	require.True(t, closed)
	assert.Equal(t, "STOP LOSS", legs[0].Reason)
}

func TestShortLifecycleMirrors(t *testing.T) {
	t.Parallel()

	p := newShort(t, 100, 10, 105)

	// TP1 at 95: half off, stop to entry.
	legs, closed := p.Update(95, t0.Add(time.Hour))
	require.False(t, closed)
	assert.InDelta(t, 5.0, legs[0].Size, 1e-9)
	assert.InDelta(t, 100.0, p.StopLoss, 1e-9)

	wantPnL := (100.0-95.0)*5 - 95.0*5*testFee
	assert.InDelta(t, wantPnL, legs[0].PnL, 1e-9)

	// TP2 at 90: trailing on, stop = 90 * 1.02.
	_, closed = p.Update(90, t0.Add(2*time.Hour))
	require.False(t, closed)
	assert.Equal(t, PhaseTrailing, p.Phase)
	assert.InDelta(t, 91.8, p.StopLoss, 1e-9)

	// Rally through the trailed stop.
	legs, closed = p.Update(92, t0.Add(3*time.Hour))
	require.True(t, closed)
	assert.Equal(t, "STOP LOSS", legs[0].Reason)
}

func TestStopNeverLoosens(t *testing.T) {
	t.Parallel()

	long := newLong(t, 100, 10, 95)
	long.moveStop(98)
	long.moveStop(96) // ignored
	assert.InDelta(t, 98.0, long.StopLoss, 1e-9)

	short := newShort(t, 100, 10, 105)
	short.moveStop(102)
	short.moveStop(104) // ignored
	assert.InDelta(t, 102.0, short.StopLoss, 1e-9)
}

func TestRealizedEqualsSumOfLegs(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 10, 95)

	_, _ = p.Update(105, t0.Add(1*time.Hour))
	_, _ = p.Update(110, t0.Add(2*time.Hour))
	leg := p.CloseAt(108, t0.Add(3*time.Hour), "End of backtest")
	require.True(t, leg.Final)

	sum := 0.0
	for _, l := range p.Exits {
		sum += l.PnL
	}
	assert.InDelta(t, sum, p.RealizedPnL, 1e-9)

	// Size accounting: original*(1 - sum of hit percentages).
	assert.Zero(t, p.Size)
	assert.InDelta(t, 10.0, p.OriginalSize, 1e-9)
}

func TestRiskReward(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 20, 95) // risk amount 100
	p.CloseAt(110, t0.Add(time.Hour), "take")

	want := p.RealizedPnL / 100.0
	assert.InDelta(t, want, p.RiskReward(), 1e-9)

	zeroRisk := NewPosition(3, strategy.Long, 100, 0, 95, t0, "", testFee, 0.02)
	assert.Zero(t, zeroRisk.RiskReward())
}

func TestUpdateAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	p := newLong(t, 100, 10, 95)
	p.CloseAt(101, t0.Add(time.Hour), "manual")

	legs, closed := p.Update(90, t0.Add(2*time.Hour))
	assert.True(t, closed)
	assert.Empty(t, legs)
	assert.Len(t, p.Exits, 1)
}
