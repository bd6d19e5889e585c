package model

import "time"

// Direction of a predicted move or a binary-option order.
type Direction string

const (
	DirectionCall Direction = "CALL" // price expected above reference at expiry
	DirectionPut  Direction = "PUT"  // price expected below reference at expiry
)

// Prediction is the model's estimate for the close of the next candle.
type Prediction struct {
	Pair           string    `json:"pair"`
	At             time.Time `json:"at"`              // open time of the candle being predicted
	ReferenceClose float64   `json:"reference_close"` // close of the last observed candle
	PredictedClose float64   `json:"predicted_close"`
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"` // 0..1
	ModelVersion   string    `json:"model_version"`
}

// Signal is a tradeable recommendation derived from a prediction.
type Signal struct {
	ID             string    `json:"id"`
	Pair           string    `json:"pair"`
	Direction      Direction `json:"direction"`
	Confidence     float64   `json:"confidence"`
	ReferenceClose float64   `json:"reference_close"`
	PredictedClose float64   `json:"predicted_close"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"` // option expiry, next timeframe boundary
}
