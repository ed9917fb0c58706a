// Package data reads OHLCV bars from CSV and writes backtest output as CSV.
package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jwtly10/tradedsl/internal/types"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var timeColumns = []string{"timestamp", "time", "date"}

// LoadCSV reads a bar file from disk. See ReadCSV.
func LoadCSV(path string) (*types.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	series, err := ReadCSV(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return series, nil
}

// ReadCSV reads bars from a CSV with a header row. Columns are matched by name,
// case-insensitively: one of timestamp/time/date, then open, high, low and close.
// Volume is optional and defaults to 0.
func ReadCSV(r io.Reader) (*types.Series, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty csv")
	}
	if err != nil {
		return nil, err
	}

	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []types.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		bar, err := parseBar(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}

	return types.NewSeries(bars)
}

type columns struct {
	time, open, high, low, close, volume int
}

func columnIndex(header []string) (columns, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := columns{time: -1, volume: -1}
	for _, name := range timeColumns {
		if i, ok := idx[name]; ok {
			cols.time = i
			break
		}
	}
	if cols.time < 0 {
		return cols, fmt.Errorf("missing time column, want one of %v", timeColumns)
	}

	required := []struct {
		name string
		dst  *int
	}{
		{types.ColumnOpen, &cols.open},
		{types.ColumnHigh, &cols.high},
		{types.ColumnLow, &cols.low},
		{types.ColumnClose, &cols.close},
	}
	for _, c := range required {
		i, ok := idx[c.name]
		if !ok {
			return cols, fmt.Errorf("missing %s column", c.name)
		}
		*c.dst = i
	}
	if i, ok := idx[types.ColumnVolume]; ok {
		cols.volume = i
	}
	return cols, nil
}

func parseBar(rec []string, cols columns) (types.Bar, error) {
	field := func(i int) (string, error) {
		if i >= len(rec) {
			return "", fmt.Errorf("expected at least %d fields, got %d", i+1, len(rec))
		}
		return strings.TrimSpace(rec[i]), nil
	}
	number := func(i int, name string) (float64, error) {
		s, err := field(i)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, s)
		}
		return v, nil
	}

	var bar types.Bar
	ts, err := field(cols.time)
	if err != nil {
		return bar, err
	}
	if bar.Timestamp, err = ParseTime(ts); err != nil {
		return bar, err
	}
	if bar.Open, err = number(cols.open, types.ColumnOpen); err != nil {
		return bar, err
	}
	if bar.High, err = number(cols.high, types.ColumnHigh); err != nil {
		return bar, err
	}
	if bar.Low, err = number(cols.low, types.ColumnLow); err != nil {
		return bar, err
	}
	if bar.Close, err = number(cols.close, types.ColumnClose); err != nil {
		return bar, err
	}
	if cols.volume >= 0 {
		if bar.Volume, err = number(cols.volume, types.ColumnVolume); err != nil {
			return bar, err
		}
	}
	return bar, nil
}

// ParseTime accepts RFC3339, "2006-01-02 15:04:05", "2006-01-02" (all UTC when no
// zone is given) or integer unix seconds.
func ParseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
