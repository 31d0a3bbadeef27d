package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rostredko/smc-bot-sub000/market"
)

// CSVLoader reads OHLCV series from files named {SYMBOL}_{TF}.csv under a
// directory. Rows are:
//
//	time,open,high,low,close,volume
//
// where time is RFC3339. A header row is allowed; empty rows are skipped.
type CSVLoader struct {
	Dir string
}

func NewCSVLoader(dir string) *CSVLoader {
	return &CSVLoader{Dir: dir}
}

func (l *CSVLoader) GetData(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) (market.Series, error) {
	_ = ctx
	path := filepath.Join(l.Dir, fmt.Sprintf("%s_%s.csv", symbol, tf))

	s, err := ReadSeriesCSV(path, symbol, tf)
	if err != nil {
		return market.Series{}, err
	}
	return s.Between(start, end), nil
}

// ReadSeriesCSV loads one candle file and validates the series contract.
func ReadSeriesCSV(path, symbol string, tf market.Timeframe) (market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return market.Series{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	s := market.Series{Symbol: symbol, Timeframe: tf}
	sawFirst := false

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return market.Series{}, err
		}
		if len(row) == 0 {
			continue
		}

		// Allow a single header row.
		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		c, ok, err := parseCandleRow(row)
		if err != nil {
			return market.Series{}, fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			continue
		}
		s.Candles = append(s.Candles, c)
	}

	if err := s.Validate(); err != nil {
		return market.Series{}, err
	}
	return s, nil
}

func parseCandleRow(row []string) (market.Candle, bool, error) {
	if len(row) < 6 {
		return market.Candle{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return market.Candle{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return market.Candle{}, false, fmt.Errorf("bad time %q: %w", ts, err)
	}

	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Candle{}, false, fmt.Errorf("bad value %q: %w", row[i+1], err)
		}
		vals[i] = v
	}

	return market.Candle{
		Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
	}, true, nil
}

// WriteSeriesCSV writes a series in the format ReadSeriesCSV accepts.
func WriteSeriesCSV(path string, s market.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}

	for _, c := range s.Candles {
		row := []string{
			c.Time.UTC().Format(time.RFC3339),
			fmtFloat(c.Open),
			fmtFloat(c.High),
			fmtFloat(c.Low),
			fmtFloat(c.Close),
			fmtFloat(c.Volume),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
