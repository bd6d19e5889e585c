package storage

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/indicador-preditivo/preditor/internal/features"
	"github.com/indicador-preditivo/preditor/internal/model"
)

// CSV schemas follow the original data files so datasets collected by the
// old scripts keep working: raw candles carry the Portuguese column names,
// transformed frames add the derived feature columns.

var rawHeader = []string{"from", "abertura", "maxima", "minima", "fechamento", "volume"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
}

// RawFileName builds the raw dataset name: {pair}_M{minutes}_{days}d.csv.
func RawFileName(pair string, timeframe, days int) string {
	return fmt.Sprintf("%s_M%d_%dd.csv", pair, timeframe/60, days)
}

// TransformedFileName builds the transformed dataset name.
func TransformedFileName(pair string, timeframe, days int, version string) string {
	return fmt.Sprintf("%s_M%d_%dd_transformed_%s.csv", pair, timeframe/60, days, version)
}

// WriteRawCSV writes candles to path, creating parent directories.
func WriteRawCSV(path string, candles []model.Candle) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rawHeader); err != nil {
		return err
	}
	for _, c := range candles {
		rec := []string{
			c.From.UTC().Format(time.RFC3339),
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadRawCSV reads a raw candle file. A missing file returns an empty slice
// so collectors can merge into fresh datasets.
func ReadRawCSV(path string) ([]model.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records[0]) < len(rawHeader) {
		return nil, fmt.Errorf("%s: expected header %v", path, rawHeader)
	}

	candles := make([]model.Candle, 0, len(records)-1)
	for i, rec := range records[1:] {
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			vals[j], err = strconv.ParseFloat(rec[j+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %s: %w", path, i+2, rawHeader[j+1], err)
			}
		}
		candles = append(candles, model.Candle{
			From: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4],
		})
	}
	return candles, nil
}

// WriteFrameCSV writes a feature frame with a leading timestamp column.
func WriteFrameCSV(path string, frame *features.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"timestamp"}, frame.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, row := range frame.Rows {
		rec[0] = frame.Timestamps[i].UTC().Format(time.RFC3339)
		for j, v := range row {
			rec[j+1] = formatFloat(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadFrameCSV reads a transformed dataset back into a frame.
func ReadFrameCSV(path string) (*features.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) < 1 || len(records[0]) < 2 || records[0][0] != "timestamp" {
		return nil, fmt.Errorf("%s: not a transformed dataset", path)
	}

	frame := &features.Frame{Columns: append([]string(nil), records[0][1:]...)}
	for i, rec := range records[1:] {
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		row := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			row[j], err = parseFloatCell(cell)
			if err != nil {
				return nil, fmt.Errorf("%s row %d col %s: %w", path, i+2, frame.Columns[j], err)
			}
		}
		frame.Timestamps = append(frame.Timestamps, ts)
		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

// LatestTransformed returns the newest transformed CSV for a pair, relying
// on the sortable version tag in the file name.
func LatestTransformed(dir, pair string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pair+"_*_transformed_*.csv"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no transformed dataset for %s in %s", pair, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloatCell(cell string) (float64, error) {
	if cell == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
