package features

import "math"

// Rolling helpers mirroring pandas semantics with min_periods=1: windows
// shorter than the period are allowed, NaN entries are excluded from the
// aggregate, and a window with no valid entries yields NaN.

func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum, n := 0.0, 0
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				sum += vals[j]
				n++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

func rollingMax(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		m, found := math.Inf(-1), false
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				found = true
				if vals[j] > m {
					m = vals[j]
				}
			}
		}
		if !found {
			out[i] = math.NaN()
		} else {
			out[i] = m
		}
	}
	return out
}

func rollingMin(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		m, found := math.Inf(1), false
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				found = true
				if vals[j] < m {
					m = vals[j]
				}
			}
		}
		if !found {
			out[i] = math.NaN()
		} else {
			out[i] = m
		}
	}
	return out
}

// rollingStd is the sample standard deviation (ddof=1); a window with fewer
// than two valid entries yields NaN.
func rollingStd(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		sum, n := 0.0, 0
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				sum += vals[j]
				n++
			}
		}
		if n < 2 {
			out[i] = math.NaN()
			continue
		}
		mean := sum / float64(n)
		var ss float64
		for j := lo; j <= i; j++ {
			if !math.IsNaN(vals[j]) {
				d := vals[j] - mean
				ss += d * d
			}
		}
		out[i] = math.Sqrt(ss / float64(n-1))
	}
	return out
}

// ewm is the span-based exponential moving average with adjust=false:
// e_0 = x_0, e_t = alpha*x_t + (1-alpha)*e_{t-1}, alpha = 2/(span+1).
func ewm(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}
