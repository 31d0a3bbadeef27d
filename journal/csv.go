package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSV journals runs, trades, and equity samples to three CSV files.
type CSV struct {
	runs   *csv.Writer
	trades *csv.Writer
	equity *csv.Writer
	rf     *os.File
	tf     *os.File
	ef     *os.File
}

func NewCSV(runsPath, tradesPath, equityPath string) (*CSV, error) {
	rf, err := os.Create(runsPath)
	if err != nil {
		return nil, err
	}
	tf, err := os.Create(tradesPath)
	if err != nil {
		rf.Close()
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		rf.Close()
		tf.Close()
		return nil, err
	}

	rw := csv.NewWriter(rf)
	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := rw.Write([]string{"run_id", "symbol", "strategy", "start", "end", "initial_capital", "final_equity", "total_trades", "created_at"}); err != nil {
		return nil, err
	}
	if err := tw.Write([]string{"run_id", "position_id", "symbol", "direction", "entry_price", "exit_price", "size", "open_time", "close_time", "realized_pnl", "exit_reason", "risk_reward"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"run_id", "time", "equity", "cash", "unrealized_pnl", "drawdown_pct", "open_positions"}); err != nil {
		return nil, err
	}

	for _, w := range []*csv.Writer{rw, tw, ew} {
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
	}

	return &CSV{runs: rw, trades: tw, equity: ew, rf: rf, tf: tf, ef: ef}, nil
}

func (j *CSV) RecordRun(r RunRecord) error {
	err := j.runs.Write([]string{
		r.RunID,
		r.Symbol,
		r.Strategy,
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		f(r.InitialCapital),
		f(r.FinalEquity),
		strconv.Itoa(r.TotalTrades),
		r.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.runs.Flush()
	return j.runs.Error()
}

func (j *CSV) RecordTrade(t TradeRecord) error {
	err := j.trades.Write([]string{
		t.RunID,
		strconv.Itoa(t.PositionID),
		t.Symbol,
		t.Direction,
		f(t.EntryPrice),
		f(t.ExitPrice),
		f(t.Size),
		t.OpenTime.Format(time.RFC3339),
		t.CloseTime.Format(time.RFC3339),
		f(t.RealizedPnL),
		t.ExitReason,
		f(t.RiskReward),
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSV) RecordEquity(e EquityRecord) error {
	err := j.equity.Write([]string{
		e.RunID,
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.Cash),
		f(e.UnrealizedPnL),
		f(e.DrawdownPct),
		strconv.Itoa(e.OpenPositions),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSV) Close() error {
	for _, w := range []*csv.Writer{j.runs, j.trades, j.equity} {
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
	}

	if err := j.rf.Close(); err != nil {
		return err
	}
	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
