package backtest

import (
	"math"
	"sort"
)

// annualization factor for the per-trade return series.
const tradingDaysPerYear = 252

// minEquityPointsForMonthly gates the monthly buckets: shorter curves do
// not produce meaningful month-over-month numbers.
const minEquityPointsForMonthly = 30

// Report is the full set of derived statistics for a run. Every field is
// a pure function of the closed trades and the equity curve.
type Report struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // percent

	TotalPnL    float64
	GrossProfit float64
	GrossLoss   float64 // positive magnitude

	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64 // positive magnitude
	LargestWin   float64
	LargestLoss  float64 // positive magnitude

	MaxDrawdown float64 // percent

	SharpeRatio  float64
	SortinoRatio float64

	Expectancy     float64
	RecoveryFactor float64
	CalmarRatio    float64

	LongestWinStreak  int
	LongestLossStreak int

	MonthlyReturns map[string]float64 // "2024-03" -> percent
	MonthlyWinRate map[string]float64 // "2024-03" -> percent
}

// ComputeReport derives all statistics from the closed trades and the
// equity curve. Arithmetic edge cases return sentinels (0, or +Inf where
// the metric is clearly one-sided) instead of NaN.
func ComputeReport(trades []*Position, equity []EquityPoint, initialCapital float64) Report {
	rep := Report{
		MonthlyReturns: map[string]float64{},
		MonthlyWinRate: map[string]float64{},
	}

	ordered := make([]*Position, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	rep.TotalTrades = len(ordered)

	for _, tr := range ordered {
		pnl := tr.RealizedPnL
		rep.TotalPnL += pnl

		if pnl > 0 {
			rep.Wins++
			rep.GrossProfit += pnl
			if pnl > rep.LargestWin {
				rep.LargestWin = pnl
			}
		} else {
			rep.Losses++
			rep.GrossLoss += -pnl
			if -pnl > rep.LargestLoss {
				rep.LargestLoss = -pnl
			}
		}
	}

	if rep.TotalTrades > 0 {
		rep.WinRate = float64(rep.Wins) / float64(rep.TotalTrades) * 100
	}
	if rep.Wins > 0 {
		rep.AvgWin = rep.GrossProfit / float64(rep.Wins)
	}
	if rep.Losses > 0 {
		rep.AvgLoss = rep.GrossLoss / float64(rep.Losses)
	}

	rep.ProfitFactor = oneSidedRatio(rep.GrossProfit, rep.GrossLoss)

	wr := rep.WinRate / 100
	rep.Expectancy = rep.AvgWin*wr - rep.AvgLoss*(1-wr)

	rep.MaxDrawdown = maxDrawdown(equity)
	rep.SharpeRatio = sharpe(ordered)
	rep.SortinoRatio = sortino(ordered)

	rep.RecoveryFactor = oneSidedRatio(rep.TotalPnL, rep.MaxDrawdown)
	if initialCapital > 0 {
		rep.CalmarRatio = oneSidedRatio(rep.TotalPnL/initialCapital*100, rep.MaxDrawdown)
	}

	rep.LongestWinStreak, rep.LongestLossStreak = streaks(ordered)

	if len(equity) >= minEquityPointsForMonthly {
		rep.MonthlyReturns = monthlyReturns(equity)
		rep.MonthlyWinRate = monthlyWinRate(ordered)
	}

	return rep
}

// oneSidedRatio divides num by denom, returning +Inf when denom is zero
// and num is positive, 0 otherwise.
func oneSidedRatio(num, denom float64) float64 {
	if denom == 0 {
		if num > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return num / denom
}

// maxDrawdown scans the equity series with a running peak.
func maxDrawdown(equity []EquityPoint) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, pt := range equity {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - pt.Equity) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// returnsOnRisk is the per-trade return series: realized PnL as a multiple
// of the risk taken at entry. Trades with zero recorded risk are skipped.
func returnsOnRisk(trades []*Position) []float64 {
	out := make([]float64, 0, len(trades))
	for _, tr := range trades {
		if tr.RiskAmount > 0 {
			out = append(out, tr.RealizedPnL/tr.RiskAmount)
		}
	}
	return out
}

func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}

func sharpe(trades []*Position) float64 {
	rets := returnsOnRisk(trades)
	if len(rets) < 2 {
		return 0
	}
	mean, std := meanStd(rets)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

func sortino(trades []*Position) float64 {
	rets := returnsOnRisk(trades)
	if len(rets) < 2 {
		return 0
	}
	mean, _ := meanStd(rets)

	var downside []float64
	for _, r := range rets {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return 0
	}

	_, dstd := meanStd(downside)
	if dstd == 0 {
		return 0
	}
	return mean / dstd * math.Sqrt(tradingDaysPerYear)
}

// streaks finds the longest winning and losing runs in exit-time order.
func streaks(ordered []*Position) (win, loss int) {
	curWin, curLoss := 0, 0
	for _, tr := range ordered {
		if tr.RealizedPnL > 0 {
			curWin++
			curLoss = 0
		} else {
			curLoss++
			curWin = 0
		}
		if curWin > win {
			win = curWin
		}
		if curLoss > loss {
			loss = curLoss
		}
	}
	return win, loss
}

func monthKey(pt EquityPoint) string {
	return pt.Time.Format("2006-01")
}

// monthlyReturns buckets the equity curve by calendar month: each month's
// last sample against the previous month's last sample (the first month
// uses the series' first sample as its base).
func monthlyReturns(equity []EquityPoint) map[string]float64 {
	out := map[string]float64{}
	if len(equity) == 0 {
		return out
	}

	var months []string
	lastOfMonth := map[string]float64{}
	for _, pt := range equity {
		key := monthKey(pt)
		if _, seen := lastOfMonth[key]; !seen {
			months = append(months, key)
		}
		lastOfMonth[key] = pt.Equity
	}

	base := equity[0].Equity
	for _, m := range months {
		end := lastOfMonth[m]
		if base > 0 {
			out[m] = (end - base) / base * 100
		} else {
			out[m] = 0
		}
		base = end
	}
	return out
}

func monthlyWinRate(ordered []*Position) map[string]float64 {
	wins := map[string]int{}
	total := map[string]int{}
	for _, tr := range ordered {
		key := tr.ExitTime.Format("2006-01")
		total[key]++
		if tr.RealizedPnL > 0 {
			wins[key]++
		}
	}

	out := map[string]float64{}
	for key, n := range total {
		out[key] = float64(wins[key]) / float64(n) * 100
	}
	return out
}
