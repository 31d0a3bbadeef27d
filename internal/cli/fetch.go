package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rostredko/smc-bot-sub000/data"
	"github.com/rostredko/smc-bot-sub000/market"
)

// fetch downloads klines from Binance and writes them as candle CSV files,
// one per timeframe, so later runs can use the csv data source offline.
func newFetchCmd(opts *rootOptions) *cobra.Command {
	var (
		symbol  string
		tfs     []string
		fromStr string
		toStr   string
		outDir  string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download historical candles from Binance into CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fmt.Errorf("bad --from: %w", err)
			}
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fmt.Errorf("bad --to: %w", err)
			}
			if !to.After(from) {
				return fmt.Errorf("--to must be after --from")
			}

			if err := os.MkdirAll(outDir, 0755); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_ = godotenv.Load()
			loader := data.NewBinanceLoader(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"))

			for _, raw := range tfs {
				tf, err := market.ParseTimeframe(raw)
				if err != nil {
					return err
				}

				s, err := loader.GetData(ctx, symbol, tf, from, to)
				if err != nil {
					return err
				}

				path := filepath.Join(outDir, fmt.Sprintf("%s_%s.csv", symbol, tf))
				if err := data.WriteSeriesCSV(path, s); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d candles to %s\n", s.Len(), path)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "BTCUSDT", "Trading pair")
	cmd.Flags().StringSliceVar(&tfs, "timeframes", []string{"15m", "1h", "4h"}, "Timeframes to download")
	cmd.Flags().StringVar(&fromStr, "from", "", "Start date (2006-01-02)")
	cmd.Flags().StringVar(&toStr, "to", "", "End date (2006-01-02)")
	cmd.Flags().StringVar(&outDir, "out", "./candles", "Output directory")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
