package lstm

import "math"

// MAE is the mean absolute error.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// RMSE is the root mean squared error.
func RMSE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// R2 is the coefficient of determination.
func R2(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i := range actual {
		r := actual[i] - predicted[i]
		ssRes += r * r
		d := actual[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
