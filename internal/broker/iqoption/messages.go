package iqoption

import (
	"encoding/json"
	"fmt"

	"github.com/indicador-preditivo/preditor/internal/model"
)

// Wire envelope shared by every websocket message in both directions.
type wsMessage struct {
	Name      string          `json:"name"`
	RequestID string          `json:"request_id,omitempty"`
	Msg       json.RawMessage `json:"msg,omitempty"`
}

type outMessage struct {
	Name      string `json:"name"`
	RequestID string `json:"request_id,omitempty"`
	Msg       any    `json:"msg,omitempty"`
}

// sendMessage wraps a versioned command for the trading gateway.
type sendMessageBody struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Body    any    `json:"body"`
}

type getCandlesBody struct {
	ActiveID int   `json:"active_id"`
	Size     int   `json:"size"`
	To       int64 `json:"to"`
	Count    int   `json:"count"`
}

type candlesResponse struct {
	Candles []wireCandle `json:"candles"`
}

type wireCandle struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Volume float64 `json:"volume"`
}

func (w wireCandle) toModel() model.Candle {
	return model.Candle{
		From:   unixUTC(w.From),
		Open:   w.Open,
		High:   w.Max,
		Low:    w.Min,
		Close:  w.Close,
		Volume: w.Volume,
	}
}

type subscribeBody struct {
	Name   string `json:"name"`
	Params struct {
		RoutingFilters struct {
			ActiveID int `json:"active_id"`
			Size     int `json:"size"`
		} `json:"routingFilters"`
	} `json:"params"`
}

type candleGenerated struct {
	ActiveID int `json:"active_id"`
	Size     int `json:"size"`
	wireCandle
}

type openOptionBody struct {
	UserBalanceID int64   `json:"user_balance_id"`
	ActiveID      int     `json:"active_id"`
	OptionTypeID  int     `json:"option_type_id"` // 3 = turbo binary
	Direction     string  `json:"direction"`      // "call" or "put"
	Expired       int64   `json:"expired"`
	Price         float64 `json:"price"`
}

type openOptionResponse struct {
	ID int64 `json:"id"`
}

type optionClosed struct {
	ID        int64   `json:"id"`
	Result    string  `json:"result"` // "win", "loose", "equal"
	WinAmount float64 `json:"win_amount"`
}

type profileMessage struct {
	Balances []struct {
		ID       int64   `json:"id"`
		Type     int     `json:"type"` // 1 real, 4 practice
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"balances"`
}

type balanceChanged struct {
	CurrentBalance struct {
		ID     int64   `json:"id"`
		Amount float64 `json:"amount"`
	} `json:"current_balance"`
}

// activeIDs maps tradeable pairs to the gateway's instrument identifiers.
var activeIDs = map[string]int{
	"EURUSD": 1,
	"GBPUSD": 2,
	"USDJPY": 4,
	"AUDUSD": 6,
	"USDCHF": 7,
	"BTCUSD": 816,
	"ETHUSD": 817,
	"LTCUSD": 818,
	"XRPUSD": 819,
}

// ActiveID resolves a pair symbol to its instrument id.
func ActiveID(pair string) (int, error) {
	id, ok := activeIDs[pair]
	if !ok {
		return 0, fmt.Errorf("unknown pair %q", pair)
	}
	return id, nil
}
