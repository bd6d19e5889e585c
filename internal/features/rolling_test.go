package features

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) < 1e-9
}

func TestRollingMean(t *testing.T) {
	tests := []struct {
		name     string
		vals     []float64
		window   int
		expected []float64
	}{
		{
			name:     "janela maior que a série",
			vals:     []float64{1, 2, 3},
			window:   5,
			expected: []float64{1, 1.5, 2},
		},
		{
			name:     "janela cheia",
			vals:     []float64{2, 4, 6, 8},
			window:   2,
			expected: []float64{2, 3, 5, 7},
		},
		{
			name:     "NaN ignorado dentro da janela",
			vals:     []float64{1, math.NaN(), 3},
			window:   3,
			expected: []float64{1, 1, 2},
		},
		{
			name:     "janela só com NaN",
			vals:     []float64{math.NaN(), math.NaN()},
			window:   1,
			expected: []float64{math.NaN(), math.NaN()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rollingMean(tt.vals, tt.window)
			for i := range tt.expected {
				if !almostEqual(got[i], tt.expected[i]) {
					t.Errorf("pos %d: got %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestRollingMaxMin(t *testing.T) {
	vals := []float64{3, 1, 4, 1, 5}
	maxOut := rollingMax(vals, 3)
	minOut := rollingMin(vals, 3)

	wantMax := []float64{3, 3, 4, 4, 5}
	wantMin := []float64{3, 1, 1, 1, 1}
	for i := range vals {
		if maxOut[i] != wantMax[i] {
			t.Errorf("max pos %d: got %v, want %v", i, maxOut[i], wantMax[i])
		}
		if minOut[i] != wantMin[i] {
			t.Errorf("min pos %d: got %v, want %v", i, minOut[i], wantMin[i])
		}
	}
}

func TestRollingStd(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	got := rollingStd(vals, len(vals))

	// first window has a single value, sample std undefined
	if !math.IsNaN(got[0]) {
		t.Errorf("pos 0: got %v, want NaN", got[0])
	}
	// full window: mean 5, sample variance 32/7
	want := math.Sqrt(32.0 / 7.0)
	if !almostEqual(got[len(got)-1], want) {
		t.Errorf("last: got %v, want %v", got[len(got)-1], want)
	}
}

func TestEWM(t *testing.T) {
	vals := []float64{10, 20, 30}
	got := ewm(vals, 3) // alpha = 0.5

	want := []float64{10, 15, 22.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("pos %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
