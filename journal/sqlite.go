package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite journals runs, positions, and equity samples into a sqlite file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO runs
		(run_id, symbol, strategy, start_time, end_time, initial_capital, final_equity, total_trades, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Symbol, r.Strategy, r.Start, r.End,
		r.InitialCapital, r.FinalEquity, r.TotalTrades, r.CreatedAt,
	)
	return err
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO positions
		(run_id, position_id, symbol, direction, entry_price, exit_price, size, open_time, close_time, realized_pnl, exit_reason, risk_reward)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.PositionID, t.Symbol, t.Direction, t.EntryPrice, t.ExitPrice,
		t.Size, t.OpenTime, t.CloseTime, t.RealizedPnL, t.ExitReason, t.RiskReward,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquityRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, equity, cash, unrealized_pnl, drawdown_pct, open_positions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Equity, e.Cash, e.UnrealizedPnL, e.DrawdownPct, e.OpenPositions,
	)
	return err
}

// ListTrades returns a run's closed positions in close-time order.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, position_id, symbol, direction, entry_price, exit_price, size, open_time, close_time, realized_pnl, exit_reason, risk_reward
		FROM positions WHERE run_id = ? ORDER BY close_time, position_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.RunID, &t.PositionID, &t.Symbol, &t.Direction,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.OpenTime, &t.CloseTime,
			&t.RealizedPnL, &t.ExitReason, &t.RiskReward); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
