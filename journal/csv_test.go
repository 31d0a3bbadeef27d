package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVJournalWritesRows(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runsPath := filepath.Join(dir, "runs.csv")
	tradesPath := filepath.Join(dir, "trades.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(runsPath, tradesPath, equityPath)
	require.NoError(t, err)

	open := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordRun(RunRecord{
		RunID: "RUN1", Symbol: "BTCUSDT", Strategy: "ema-cross",
		Start: open, End: open.Add(24 * time.Hour),
		InitialCapital: 10000, FinalEquity: 10009.916, TotalTrades: 1,
		CreatedAt: open.Add(25 * time.Hour),
	}))
	require.NoError(t, j.RecordTrade(TradeRecord{
		RunID: "RUN1", PositionID: 1, Symbol: "BTCUSDT", Direction: "LONG",
		EntryPrice: 100, ExitPrice: 105, Size: 2,
		OpenTime: open, CloseTime: open.Add(time.Hour),
		RealizedPnL: 9.916, ExitReason: "TP1 (1R)", RiskReward: 0.9916,
	}))
	require.NoError(t, j.RecordEquity(EquityRecord{
		RunID: "RUN1", Time: open, Equity: 10009.916, Cash: 10009.916,
	}))
	require.NoError(t, j.Close())

	rf, err := os.Open(runsPath)
	require.NoError(t, err)
	defer rf.Close()

	rrows, err := csv.NewReader(rf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rrows, 2)
	assert.Equal(t, "run_id", rrows[0][0])
	assert.Equal(t, "RUN1", rrows[1][0])
	assert.Equal(t, "ema-cross", rrows[1][2])
	assert.Equal(t, "10009.916000", rrows[1][6])
	assert.Equal(t, "1", rrows[1][7])

	tf, err := os.Open(tradesPath)
	require.NoError(t, err)
	defer tf.Close()

	rows, err := csv.NewReader(tf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run_id", rows[0][0])
	assert.Equal(t, "RUN1", rows[1][0])
	assert.Equal(t, "LONG", rows[1][3])
	assert.Equal(t, "105.000000", rows[1][5])
	assert.Equal(t, "TP1 (1R)", rows[1][10])

	ef, err := os.Open(equityPath)
	require.NoError(t, err)
	defer ef.Close()

	erows, err := csv.NewReader(ef).ReadAll()
	require.NoError(t, err)
	require.Len(t, erows, 2)
	assert.Equal(t, "10009.916000", erows[1][2])
}
