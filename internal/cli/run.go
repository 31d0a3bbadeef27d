package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rostredko/smc-bot-sub000/backtest"
	"github.com/rostredko/smc-bot-sub000/config"
	"github.com/rostredko/smc-bot-sub000/data"
	"github.com/rostredko/smc-bot-sub000/internal/id"
	"github.com/rostredko/smc-bot-sub000/journal"
	"github.com/rostredko/smc-bot-sub000/market"
	"github.com/rostredko/smc-bot-sub000/strategy"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol  string
		fromStr string
		toStr   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest and print the performance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if symbol != "" {
				cfg.Backtest.Symbol = symbol
			}
			if fromStr != "" {
				cfg.Backtest.StartDate = fromStr
			}
			if toStr != "" {
				cfg.Backtest.EndDate = toStr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runBacktest(ctx, cmd.OutOrStdout(), cfg, opts.Verbose)
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "Override configured symbol")
	cmd.Flags().StringVar(&fromStr, "from", "", "Override start date (2006-01-02)")
	cmd.Flags().StringVar(&toStr, "to", "", "Override end date (2006-01-02)")

	return cmd
}

func runBacktest(ctx context.Context, out io.Writer, cfg *config.Config, verbose bool) error {
	start, _ := cfg.StartTime()
	end, _ := cfg.EndTime()

	loader, err := newLoader(cfg)
	if err != nil {
		return err
	}

	frames := make(map[market.Timeframe]market.Series, len(cfg.Backtest.Timeframes))
	for _, raw := range cfg.Backtest.Timeframes {
		tf, err := market.ParseTimeframe(raw)
		if err != nil {
			return err
		}
		s, err := loader.GetData(ctx, cfg.Backtest.Symbol, tf, start, end)
		if err != nil {
			return fmt.Errorf("load %s %s: %w", cfg.Backtest.Symbol, tf, err)
		}
		if s.Len() == 0 {
			return fmt.Errorf("no candles for %s %s in the requested window", cfg.Backtest.Symbol, tf)
		}
		frames[tf] = s
	}

	strat, err := strategy.ByName(cfg.Strategy.Name, cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod)
	if err != nil {
		return err
	}

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "engine ", log.LstdFlags|log.LUTC)
	}

	eng, err := backtest.NewEngine(backtest.Config{
		Symbol:               cfg.Backtest.Symbol,
		Primary:              cfg.PrimaryTimeframe(),
		InitialCapital:       cfg.Account.InitialCapital,
		RiskPerTrade:         cfg.Risk.RiskPerTrade,
		MaxDrawdown:          cfg.Risk.MaxDrawdown,
		MaxPositions:         cfg.Risk.MaxPositions,
		MinRiskReward:        cfg.Risk.MinRiskReward,
		TakerFee:             cfg.Backtest.TakerFee,
		TrailingDistance:     cfg.Backtest.TrailingDistance,
		DefaultStopPct:       cfg.Backtest.DefaultStopPct,
		MaxConsecutiveLosses: cfg.Risk.MaxConsecutiveLosses,
		SoftHaltDuration:     cfg.SoftHaltDuration(),
		CooldownBars:         cfg.Risk.CooldownBars,
		LotStep:              cfg.Risk.LotStep,
	}, strat, frames, logger)
	if err != nil {
		return err
	}

	result, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	printReport(out, cfg, result)

	j, err := newJournal(cfg)
	if err != nil {
		return err
	}
	if j == nil {
		return nil
	}
	defer j.Close()

	return persistResult(j, cfg, start, end, result)
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(opts.ConfigPath)
}

// newLoader builds the data source. Binance API keys come from the
// environment (BINANCE_API_KEY / BINANCE_SECRET_KEY), with an optional
// .env overlay; klines work without keys at lower rate limits.
func newLoader(cfg *config.Config) (data.Loader, error) {
	switch cfg.Data.Source {
	case "csv":
		return data.NewCSVLoader(cfg.Data.Dir), nil
	case "binance":
		_ = godotenv.Load()
		return data.NewBinanceLoader(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY")), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

func newJournal(cfg *config.Config) (journal.Journal, error) {
	switch cfg.Journal.Type {
	case "", "none":
		return nil, nil
	case "csv":
		return journal.NewCSV(cfg.Journal.RunsFile, cfg.Journal.TradesFile, cfg.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
}

func persistResult(j journal.Journal, cfg *config.Config, start, end time.Time, result *backtest.Result) error {
	runID := id.New()

	finalEquity := cfg.Account.InitialCapital
	if n := len(result.Equity); n > 0 {
		finalEquity = result.Equity[n-1].Equity
	}

	err := j.RecordRun(journal.RunRecord{
		RunID:          runID,
		Symbol:         cfg.Backtest.Symbol,
		Strategy:       cfg.Strategy.Name,
		Start:          start,
		End:            end,
		InitialCapital: cfg.Account.InitialCapital,
		FinalEquity:    finalEquity,
		TotalTrades:    result.Report.TotalTrades,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	for _, p := range result.Trades {
		err := j.RecordTrade(journal.TradeRecord{
			RunID:       runID,
			PositionID:  p.ID,
			Symbol:      cfg.Backtest.Symbol,
			Direction:   string(p.Direction),
			EntryPrice:  p.EntryPrice,
			ExitPrice:   p.ExitPrice,
			Size:        p.OriginalSize,
			OpenTime:    p.EntryTime,
			CloseTime:   p.ExitTime,
			RealizedPnL: p.RealizedPnL,
			ExitReason:  p.ExitReason,
			RiskReward:  p.RiskReward(),
		})
		if err != nil {
			return err
		}
	}

	for _, pt := range result.Equity {
		err := j.RecordEquity(journal.EquityRecord{
			RunID:         runID,
			Time:          pt.Time,
			Equity:        pt.Equity,
			Cash:          pt.Cash,
			UnrealizedPnL: pt.UnrealizedPnL,
			DrawdownPct:   pt.DrawdownPct,
			OpenPositions: pt.OpenPositions,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func printReport(out io.Writer, cfg *config.Config, result *backtest.Result) {
	r := result.Report

	fmt.Fprintf(out, "Backtest %s %s (%s)\n", cfg.Backtest.Symbol, cfg.PrimaryTimeframe(), cfg.Strategy.Name)
	fmt.Fprintf(out, "  Trades:          %d (W %d / L %d, win rate %.2f%%)\n", r.TotalTrades, r.Wins, r.Losses, r.WinRate)
	fmt.Fprintf(out, "  Total PnL:       %.2f\n", r.TotalPnL)
	fmt.Fprintf(out, "  Profit factor:   %.2f\n", r.ProfitFactor)
	fmt.Fprintf(out, "  Expectancy:      %.2f\n", r.Expectancy)
	fmt.Fprintf(out, "  Avg win/loss:    %.2f / %.2f\n", r.AvgWin, r.AvgLoss)
	fmt.Fprintf(out, "  Largest W/L:     %.2f / %.2f\n", r.LargestWin, r.LargestLoss)
	fmt.Fprintf(out, "  Max drawdown:    %.2f%%\n", r.MaxDrawdown)
	fmt.Fprintf(out, "  Sharpe/Sortino:  %.2f / %.2f\n", r.SharpeRatio, r.SortinoRatio)
	fmt.Fprintf(out, "  Recovery/Calmar: %.2f / %.2f\n", r.RecoveryFactor, r.CalmarRatio)
	fmt.Fprintf(out, "  Streaks:         %d wins / %d losses\n", r.LongestWinStreak, r.LongestLossStreak)

	if len(r.MonthlyReturns) > 0 {
		months := make([]string, 0, len(r.MonthlyReturns))
		for m := range r.MonthlyReturns {
			months = append(months, m)
		}
		sort.Strings(months)

		fmt.Fprintln(out, "  Monthly:")
		for _, m := range months {
			fmt.Fprintf(out, "    %s  return %+.2f%%  win rate %.2f%%\n", m, r.MonthlyReturns[m], r.MonthlyWinRate[m])
		}
	}
}
