package predict

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/lstm"
	"github.com/indicador-preditivo/preditor/internal/model"
)

func bufferPredictor(seqLen int) *Predictor {
	return &Predictor{
		cp:     &lstm.Checkpoint{Config: lstm.Config{SeqLen: seqLen}},
		logger: zerolog.Nop(),
	}
}

func candleAt(min int, close float64) model.Candle {
	return model.Candle{
		From:  time.Date(2026, 8, 25, 12, min, 0, 0, time.UTC),
		Close: close,
	}
}

func TestPushOrdering(t *testing.T) {
	p := bufferPredictor(4)

	p.push(candleAt(0, 100))
	p.push(candleAt(5, 101))
	// Stale candle is dropped.
	p.push(candleAt(0, 999))
	if len(p.buffer) != 2 {
		t.Fatalf("got %d candles, want 2", len(p.buffer))
	}
	if p.buffer[0].Close != 100 {
		t.Errorf("stale candle overwrote history: %v", p.buffer[0].Close)
	}

	// Same open time replaces the newest bar.
	p.push(candleAt(5, 102))
	if len(p.buffer) != 2 || p.buffer[1].Close != 102 {
		t.Errorf("in-place update failed: %+v", p.buffer)
	}
}

func TestMinHistory(t *testing.T) {
	p := bufferPredictor(288)
	if got := p.MinHistory(); got != 288+warmup {
		t.Errorf("got %d, want %d", got, 288+warmup)
	}
}

func TestConfidence(t *testing.T) {
	p := bufferPredictor(4)
	// Alternating closes give nonzero realized volatility.
	for i, c := range []float64{100, 101, 100, 101, 100, 101} {
		p.push(candleAt(i*5, c))
	}

	none := p.confidence(100, 100)
	small := p.confidence(100, 100.2)
	big := p.confidence(100, 110)

	if none != 0 {
		t.Errorf("no move should score 0, got %v", none)
	}
	if small <= none || small >= big && big != 1 {
		t.Errorf("confidence not monotonic: %v %v %v", none, small, big)
	}
	if big != 1 {
		t.Errorf("huge move should saturate at 1, got %v", big)
	}
	if p.confidence(0, 10) != 0 {
		t.Errorf("zero reference should score 0")
	}
}

func TestRecentReturns(t *testing.T) {
	candles := []model.Candle{
		candleAt(0, 100), candleAt(5, 110), candleAt(10, 99),
	}
	got := recentReturns(candles, 10)
	if len(got) != 2 {
		t.Fatalf("got %d returns, want 2", len(got))
	}
	if math.Abs(got[0]-0.1) > 1e-9 {
		t.Errorf("first return: got %v, want 0.1", got[0])
	}
	if math.Abs(got[1]-(99.0-110)/110) > 1e-9 {
		t.Errorf("second return: got %v", got[1])
	}

	if out := recentReturns(candles[:1], 10); out != nil {
		t.Errorf("single candle should yield no returns")
	}
}

func TestStddev(t *testing.T) {
	if got := stddev(nil); got != 0 {
		t.Errorf("empty: got %v", got)
	}
	if got := stddev([]float64{3, 3, 3}); got != 0 {
		t.Errorf("constant: got %v", got)
	}
	got := stddev([]float64{2, 4})
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("got %v, want 1", got)
	}
}
