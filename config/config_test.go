package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Default().Validate())
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.Account.InitialCapital = 0 }},
		{"risk too high", func(c *Config) { c.Risk.RiskPerTrade = 150 }},
		{"zero drawdown", func(c *Config) { c.Risk.MaxDrawdown = 0 }},
		{"zero positions", func(c *Config) { c.Risk.MaxPositions = 0 }},
		{"missing symbol", func(c *Config) { c.Backtest.Symbol = "" }},
		{"no timeframes", func(c *Config) { c.Backtest.Timeframes = nil }},
		{"bad timeframe", func(c *Config) { c.Backtest.Timeframes = []string{"15x"} }},
		{"bad start date", func(c *Config) { c.Backtest.StartDate = "01/02/2024" }},
		{"inverted range", func(c *Config) { c.Backtest.StartDate = "2024-07-01" }},
		{"bad data source", func(c *Config) { c.Data.Source = "ftp" }},
		{"csv data without dir", func(c *Config) { c.Data = DataConfig{Source: "csv"} }},
		{"sqlite journal without path", func(c *Config) { c.Journal = JournalConfig{Type: "sqlite"} }},
		{"csv journal without files", func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }},
		{"csv journal without runs file", func(c *Config) {
			c.Journal = JournalConfig{Type: "csv", TradesFile: "t.csv", EquityFile: "e.csv"}
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	body := `
account:
  initial_capital: 25000
risk:
  risk_per_trade: 0.5
  max_drawdown: 10
  max_positions: 2
  min_risk_reward: 3
backtest:
  symbol: ETHUSDT
  timeframes: ["1h", "4h"]
  start_date: "2024-02-01"
  end_date: "2024-03-01"
strategy:
  name: noop
data:
  source: binance
journal:
  type: none
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.InDelta(t, 25000.0, cfg.Account.InitialCapital, 1e-9)
	assert.Equal(t, "ETHUSDT", cfg.Backtest.Symbol)
	assert.EqualValues(t, "1h", cfg.PrimaryTimeframe())

	start, err := cfg.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoadFromFileInvalidFailsFast(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  initial_capital: -5\n"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Backtest.Symbol = "SOLUSDT"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	got, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSoftHaltDuration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Risk.SoftHaltHours = 2.5
	assert.Equal(t, 150*time.Minute, cfg.SoftHaltDuration())
}
