package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks a binary option through its lifecycle.
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "OPEN"
	OrderStatusWon    OrderStatus = "WON"
	OrderStatusLost   OrderStatus = "LOST"
	OrderStatusEqual  OrderStatus = "EQUAL" // expired at the strike, stake returned
	OrderStatusFailed OrderStatus = "FAILED"
)

// Order is a binary option placed from a signal.
type Order struct {
	ID        string          `json:"id"`
	SignalID  string          `json:"signal_id"`
	BrokerID  int64           `json:"broker_id"`
	Pair      string          `json:"pair"`
	Direction Direction       `json:"direction"`
	Stake     decimal.Decimal `json:"stake"`
	Payout    decimal.Decimal `json:"payout"`
	Status    OrderStatus     `json:"status"`
	OpenedAt  time.Time       `json:"opened_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	ClosedAt  time.Time       `json:"closed_at,omitempty"`
}
