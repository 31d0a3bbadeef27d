package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rostredko/smc-bot-sub000/market"
)

const dateLayout = "2006-01-02"

// Config is the complete backtest configuration. Validation failures are
// fatal at startup; the simulation loop never re-checks any of this.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

type RiskConfig struct {
	RiskPerTrade         float64 `json:"risk_per_trade" yaml:"risk_per_trade"` // percent
	MaxDrawdown          float64 `json:"max_drawdown" yaml:"max_drawdown"`     // percent
	MaxPositions         int     `json:"max_positions" yaml:"max_positions"`
	MinRiskReward        float64 `json:"min_risk_reward" yaml:"min_risk_reward"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses" yaml:"max_consecutive_losses"`
	SoftHaltHours        float64 `json:"soft_halt_hours" yaml:"soft_halt_hours"`
	CooldownBars         int     `json:"cooldown_bars" yaml:"cooldown_bars"`
	LotStep              float64 `json:"lot_step" yaml:"lot_step"`
}

type BacktestConfig struct {
	Symbol     string   `json:"symbol" yaml:"symbol"`
	Timeframes []string `json:"timeframes" yaml:"timeframes"` // first is primary
	StartDate  string   `json:"start_date" yaml:"start_date"` // 2006-01-02
	EndDate    string   `json:"end_date" yaml:"end_date"`

	TakerFee         float64 `json:"taker_fee" yaml:"taker_fee"`                 // fraction
	TrailingDistance float64 `json:"trailing_distance" yaml:"trailing_distance"` // fraction
	DefaultStopPct   float64 `json:"default_stop_pct" yaml:"default_stop_pct"`   // fraction
}

type StrategyConfig struct {
	Name       string `json:"name" yaml:"name"`
	FastPeriod int    `json:"fast_period" yaml:"fast_period"`
	SlowPeriod int    `json:"slow_period" yaml:"slow_period"`
}

type DataConfig struct {
	Source string `json:"source" yaml:"source"` // "csv" or "binance"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	RunsFile   string `json:"runs_file,omitempty" yaml:"runs_file,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoadFromFile loads a YAML or JSON configuration file and validates it.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON.
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		if jerr := json.Unmarshal(raw, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the config as YAML (.yaml/.yml) or indented JSON.
func (c *Config) SaveToFile(path string) error {
	var raw []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		raw, err = yaml.Marshal(c)
	} else {
		raw, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks everything the engine assumes.
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade > 100 {
		return fmt.Errorf("risk.risk_per_trade must be in (0, 100]")
	}
	if c.Risk.MaxDrawdown <= 0 || c.Risk.MaxDrawdown > 100 {
		return fmt.Errorf("risk.max_drawdown must be in (0, 100]")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive")
	}
	if c.Risk.MinRiskReward < 0 {
		return fmt.Errorf("risk.min_risk_reward must not be negative")
	}

	if c.Backtest.Symbol == "" {
		return fmt.Errorf("backtest.symbol is required")
	}
	if len(c.Backtest.Timeframes) == 0 {
		return fmt.Errorf("backtest.timeframes requires at least one entry")
	}
	for _, tf := range c.Backtest.Timeframes {
		if _, err := market.ParseTimeframe(tf); err != nil {
			return fmt.Errorf("backtest.timeframes: %w", err)
		}
	}

	start, err := c.StartTime()
	if err != nil {
		return fmt.Errorf("backtest.start_date: %w", err)
	}
	end, err := c.EndTime()
	if err != nil {
		return fmt.Errorf("backtest.end_date: %w", err)
	}
	if !end.After(start) {
		return fmt.Errorf("backtest.end_date must be after start_date")
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.Dir == "" {
			return fmt.Errorf("data.dir required for csv source")
		}
	case "binance":
	default:
		return fmt.Errorf("data.source must be 'csv' or 'binance'")
	}

	switch c.Journal.Type {
	case "none", "":
	case "csv":
		if c.Journal.RunsFile == "" || c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal runs_file, trades_file and equity_file required for csv type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	return nil
}

// PrimaryTimeframe is the first configured timeframe.
func (c *Config) PrimaryTimeframe() market.Timeframe {
	return market.Timeframe(c.Backtest.Timeframes[0])
}

func (c *Config) StartTime() (time.Time, error) {
	return time.Parse(dateLayout, c.Backtest.StartDate)
}

func (c *Config) EndTime() (time.Time, error) {
	return time.Parse(dateLayout, c.Backtest.EndDate)
}

// SoftHaltDuration converts the configured hours to a duration.
func (c *Config) SoftHaltDuration() time.Duration {
	return time.Duration(c.Risk.SoftHaltHours * float64(time.Hour))
}

// Default returns a runnable configuration with sensible values.
func Default() *Config {
	return &Config{
		Account: AccountConfig{InitialCapital: 10000},
		Risk: RiskConfig{
			RiskPerTrade:         1.0,
			MaxDrawdown:          15.0,
			MaxPositions:         3,
			MinRiskReward:        1.5,
			MaxConsecutiveLosses: 5,
			SoftHaltHours:        4,
			CooldownBars:         3,
			LotStep:              0.001,
		},
		Backtest: BacktestConfig{
			Symbol:           "BTCUSDT",
			Timeframes:       []string{"15m", "1h", "4h"},
			StartDate:        "2024-01-01",
			EndDate:          "2024-06-30",
			TakerFee:         0.0004,
			TrailingDistance: 0.02,
			DefaultStopPct:   0.02,
		},
		Strategy: StrategyConfig{Name: "ema-cross", FastPeriod: 9, SlowPeriod: 21},
		Data:     DataConfig{Source: "binance"},
		Journal:  JournalConfig{Type: "sqlite", DBPath: "./backtests.sqlite"},
	}
}
