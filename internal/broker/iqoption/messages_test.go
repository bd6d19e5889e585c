package iqoption

import (
	"encoding/json"
	"testing"
	"time"
)

func TestActiveID(t *testing.T) {
	tests := []struct {
		pair    string
		want    int
		wantErr bool
	}{
		{"EURUSD", 1, false},
		{"ETHUSD", 817, false},
		{"BTCUSD", 816, false},
		{"DOGEUSD", 0, true},
	}
	for _, tt := range tests {
		got, err := ActiveID(tt.pair)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.pair)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.pair, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.pair, got, tt.want)
		}
	}
}

func TestWireCandleToModel(t *testing.T) {
	raw := `{"from":1756123200,"to":1756123500,"open":100.5,"close":101.25,"min":99.75,"max":102,"volume":1532}`
	var w wireCandle
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatal(err)
	}

	c := w.toModel()
	if !c.From.Equal(time.Unix(1756123200, 0).UTC()) {
		t.Errorf("from: got %v", c.From)
	}
	if c.Open != 100.5 || c.Close != 101.25 {
		t.Errorf("open/close: %v %v", c.Open, c.Close)
	}
	// The gateway reports min/max, the model calls them low/high.
	if c.High != 102 || c.Low != 99.75 {
		t.Errorf("high/low: %v %v", c.High, c.Low)
	}
	if c.Volume != 1532 {
		t.Errorf("volume: %v", c.Volume)
	}
}

func TestWSMessageEnvelope(t *testing.T) {
	raw := `{"name":"candles","request_id":"7","msg":{"candles":[{"from":1,"open":2,"close":3,"min":1.5,"max":3.5,"volume":10}]}}`
	var msg wsMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Name != "candles" || msg.RequestID != "7" {
		t.Fatalf("envelope: %+v", msg)
	}

	var resp candlesResponse
	if err := json.Unmarshal(msg.Msg, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Candles) != 1 || resp.Candles[0].Max != 3.5 {
		t.Fatalf("payload: %+v", resp)
	}
}

func TestOutMessageMarshal(t *testing.T) {
	out := outMessage{
		Name:      "sendMessage",
		RequestID: "42",
		Msg: sendMessageBody{
			Name:    "get-candles",
			Version: "2.0",
			Body:    getCandlesBody{ActiveID: 817, Size: 300, To: 1756123200, Count: 1000},
		},
	}
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}

	var echo map[string]any
	if err := json.Unmarshal(raw, &echo); err != nil {
		t.Fatal(err)
	}
	if echo["name"] != "sendMessage" || echo["request_id"] != "42" {
		t.Fatalf("envelope fields: %v", echo)
	}
	inner := echo["msg"].(map[string]any)
	if inner["name"] != "get-candles" || inner["version"] != "2.0" {
		t.Fatalf("command fields: %v", inner)
	}
	body := inner["body"].(map[string]any)
	if body["active_id"].(float64) != 817 || body["count"].(float64) != 1000 {
		t.Fatalf("body fields: %v", body)
	}
}
