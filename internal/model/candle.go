package model

import (
	"sort"
	"time"
)

// Candle represents a single fixed-interval price bar as returned by the
// broker. From is the bar open time in UTC.
type Candle struct {
	From   time.Time `json:"from"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// SortCandles orders candles by open time, oldest first. The sort is stable
// so MergeCandles can rely on later duplicates staying later.
func SortCandles(candles []Candle) {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].From.Before(candles[j].From)
	})
}

// DedupCandles removes candles sharing the same open time, keeping the last
// occurrence. Input must already be sorted by open time.
func DedupCandles(candles []Candle) []Candle {
	if len(candles) == 0 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if c.From.Equal(out[len(out)-1].From) {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

// MergeCandles merges two candle series, deduplicating by open time.
// Candles from b win on collision (fresh data over stale).
func MergeCandles(a, b []Candle) []Candle {
	merged := make([]Candle, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	SortCandles(merged)
	return DedupCandles(merged)
}
