package features

import (
	"math"
	"testing"
	"time"

	"github.com/indicador-preditivo/preditor/internal/model"
)

func generateCandles(n int, fn func(i int) model.Candle) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		out[i] = fn(i)
	}
	return out
}

func testCandles(n int) []model.Candle {
	base := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC) // a Monday
	return generateCandles(n, func(i int) model.Candle {
		px := 100 + float64(i)
		return model.Candle{
			From:   base.Add(time.Duration(i) * 5 * time.Minute),
			Open:   px,
			High:   px + 1,
			Low:    px - 1,
			Close:  px + 0.5,
			Volume: 1000 + float64(i*10),
		}
	})
}

func TestTransformColumns(t *testing.T) {
	frame, err := Transform(testCandles(30))
	if err != nil {
		t.Fatal(err)
	}

	want := Columns()
	if len(frame.Columns) != len(want) {
		t.Fatalf("got %d columns, want %d", len(frame.Columns), len(want))
	}
	for i, c := range want {
		if frame.Columns[i] != c {
			t.Errorf("column %d: got %q, want %q", i, frame.Columns[i], c)
		}
	}
	if len(frame.Rows) != 30 {
		t.Fatalf("got %d rows, want 30", len(frame.Rows))
	}
}

func TestTransformValues(t *testing.T) {
	candles := testCandles(30)
	frame, err := Transform(candles)
	if err != nil {
		t.Fatal(err)
	}

	col := func(name string) []float64 {
		vals, err := frame.Col(name)
		if err != nil {
			t.Fatal(err)
		}
		return vals
	}

	// Pressures come straight from the candle geometry.
	buy := col("pressao_compradora")
	sell := col("pressao_vendedora")
	for i := range candles {
		if !almostEqual(buy[i], candles[i].High-candles[i].Close) {
			t.Fatalf("pressao_compradora pos %d: got %v", i, buy[i])
		}
		if !almostEqual(sell[i], candles[i].Close-candles[i].Low) {
			t.Fatalf("pressao_vendedora pos %d: got %v", i, sell[i])
		}
	}

	// Future close shifts by one; the last row has no target.
	target := col(TargetCol)
	for i := 0; i < len(candles)-1; i++ {
		if !almostEqual(target[i], candles[i+1].Close) {
			t.Fatalf("target pos %d: got %v, want %v", i, target[i], candles[i+1].Close)
		}
	}
	if !math.IsNaN(target[len(candles)-1]) {
		t.Errorf("last target should be NaN, got %v", target[len(candles)-1])
	}

	// First diff row is NaN.
	varClose := col("var_fechamento")
	if !math.IsNaN(varClose[0]) {
		t.Errorf("first var_fechamento should be NaN, got %v", varClose[0])
	}
	if !almostEqual(varClose[1], 1) {
		t.Errorf("var_fechamento pos 1: got %v, want 1", varClose[1])
	}

	// Strictly rising closes saturate RSI at 100.
	rsiVals := col("RSI_14")
	last := rsiVals[len(rsiVals)-1]
	if !almostEqual(last, 100) {
		t.Errorf("RSI on rising series: got %v, want 100", last)
	}

	// Monday maps to weekday 0.
	weekday := col("dia_semana")
	if weekday[0] != 0 {
		t.Errorf("Monday weekday: got %v, want 0", weekday[0])
	}
	hour := col("hora_num")
	if hour[0] != 12 {
		t.Errorf("hour: got %v, want 12", hour[0])
	}
}

func TestDropNaN(t *testing.T) {
	frame, err := Transform(testCandles(30))
	if err != nil {
		t.Fatal(err)
	}

	clean := frame.DropNaN()
	// First row (diff, RSI) and last row (target) go away.
	if len(clean.Rows) != 28 {
		t.Fatalf("got %d rows after DropNaN, want 28", len(clean.Rows))
	}

	keepLast := frame.DropNaNExcept(TargetCol)
	if len(keepLast.Rows) != 29 {
		t.Fatalf("got %d rows after DropNaNExcept, want 29", len(keepLast.Rows))
	}
	lastTs := keepLast.Timestamps[len(keepLast.Timestamps)-1]
	if !lastTs.Equal(frame.Timestamps[len(frame.Timestamps)-1]) {
		t.Errorf("DropNaNExcept lost the newest row")
	}
}
