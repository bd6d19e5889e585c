package storage

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/indicador-preditivo/preditor/internal/features"
	"github.com/indicador-preditivo/preditor/internal/model"
)

func TestFileNames(t *testing.T) {
	if got := RawFileName("ETHUSD", 300, 30); got != "ETHUSD_M5_30d.csv" {
		t.Errorf("raw name: got %q", got)
	}
	if got := TransformedFileName("ETHUSD", 300, 30, "20260825_120000"); got != "ETHUSD_M5_30d_transformed_20260825_120000.csv" {
		t.Errorf("transformed name: got %q", got)
	}
}

func TestRawCSVRoundtrip(t *testing.T) {
	candles := []model.Candle{
		{From: time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1234},
		{From: time.Date(2026, 8, 3, 12, 5, 0, 0, time.UTC), Open: 100.5, High: 102, Low: 100, Close: 101.5, Volume: 999.25},
	}
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := WriteRawCSV(path, candles); err != nil {
		t.Fatal(err)
	}

	loaded, err := ReadRawCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != len(candles) {
		t.Fatalf("got %d candles, want %d", len(loaded), len(candles))
	}
	for i := range candles {
		if !loaded[i].From.Equal(candles[i].From) {
			t.Errorf("candle %d time: got %v, want %v", i, loaded[i].From, candles[i].From)
		}
		if loaded[i].Close != candles[i].Close || loaded[i].Volume != candles[i].Volume {
			t.Errorf("candle %d values differ: %+v vs %+v", i, loaded[i], candles[i])
		}
	}
}

func TestReadRawCSVMissingFile(t *testing.T) {
	candles, err := ReadRawCSV(filepath.Join(t.TempDir(), "absent.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if candles != nil {
		t.Errorf("missing file should yield nil, got %v", candles)
	}
}

func TestReadRawCSVPandasTimestamps(t *testing.T) {
	// Datasets written by the original batch scripts carry pandas-style
	// timestamps without the T separator.
	content := "from,abertura,maxima,minima,fechamento,volume\n" +
		"2026-08-03 12:00:00,1,2,0.5,1.5,100\n"
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	candles, err := ReadRawCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(candles) != 1 {
		t.Fatalf("got %d candles, want 1", len(candles))
	}
	want := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	if !candles[0].From.Equal(want) {
		t.Errorf("timestamp: got %v, want %v", candles[0].From, want)
	}
}

func TestFrameCSVRoundtrip(t *testing.T) {
	frame := &features.Frame{
		Columns: []string{"fechamento", "fechamento_futuro"},
		Timestamps: []time.Time{
			time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 8, 3, 12, 5, 0, 0, time.UTC),
		},
		Rows: [][]float64{
			{100.5, 101.5},
			{101.5, math.NaN()},
		},
	}
	path := filepath.Join(t.TempDir(), "frame.csv")
	if err := WriteFrameCSV(path, frame); err != nil {
		t.Fatal(err)
	}

	loaded, err := ReadFrameCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Columns) != 2 || loaded.Columns[0] != "fechamento" {
		t.Fatalf("columns: got %v", loaded.Columns)
	}
	if loaded.Rows[0][0] != 100.5 {
		t.Errorf("value: got %v, want 100.5", loaded.Rows[0][0])
	}
	// NaN survives as an empty cell.
	if !math.IsNaN(loaded.Rows[1][1]) {
		t.Errorf("NaN cell: got %v, want NaN", loaded.Rows[1][1])
	}
}

func TestLatestTransformed(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"ETHUSD_M5_30d_transformed_20260824_120000.csv",
		"ETHUSD_M5_30d_transformed_20260825_090000.csv",
		"BTCUSD_M5_30d_transformed_20260825_235959.csv",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := LatestTransformed(dir, "ETHUSD")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(got) != names[1] {
		t.Errorf("got %q, want %q", filepath.Base(got), names[1])
	}

	if _, err := LatestTransformed(dir, "XRPUSD"); err == nil {
		t.Error("expected error for pair without datasets")
	}
}
