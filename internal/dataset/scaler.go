package dataset

import "math"

// Scaler standardizes the regression target: z = (v - Mean) / Scale.
// Fit on the training split only, applied to both splits.
type Scaler struct {
	Mean  float64 `json:"mean"`
	Scale float64 `json:"scale"`
}

// FitScaler computes mean and population standard deviation. A constant
// series gets scale 1 so transforming it yields zeros rather than NaNs.
func FitScaler(vals []float64) Scaler {
	if len(vals) == 0 {
		return Scaler{Mean: 0, Scale: 1}
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	scale := math.Sqrt(ss / float64(len(vals)))
	if scale == 0 {
		scale = 1
	}
	return Scaler{Mean: mean, Scale: scale}
}

func (s Scaler) Transform(v float64) float64 { return (v - s.Mean) / s.Scale }

func (s Scaler) Inverse(v float64) float64 { return v*s.Scale + s.Mean }
