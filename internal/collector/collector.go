package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/model"
	"github.com/indicador-preditivo/preditor/internal/storage"
)

// maxPerCall is the largest candle page the gateway serves per request.
const maxPerCall = 1000

// CandleSource is the slice of the broker client the collector needs.
type CandleSource interface {
	GetCandles(ctx context.Context, pair string, size int, to time.Time, count int) ([]model.Candle, error)
}

// Collector downloads historical candles and maintains the raw dataset.
type Collector struct {
	source CandleSource
	logger zerolog.Logger
}

func New(source CandleSource, logger zerolog.Logger) *Collector {
	return &Collector{source: source, logger: logger}
}

// FetchHistory pulls `days` days of `timeframe`-second candles ending now,
// paging backwards through time: each page ends one second before the
// oldest candle already fetched, so pages never overlap.
func (c *Collector) FetchHistory(ctx context.Context, pair string, timeframe, days int) ([]model.Candle, error) {
	perDay := (24 * 60 * 60) / timeframe
	remaining := days * perDay
	to := time.Now().UTC()

	var all []model.Candle
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count := remaining
		if count > maxPerCall {
			count = maxPerCall
		}
		page, err := c.source.GetCandles(ctx, pair, timeframe, to, count)
		if err != nil {
			return nil, fmt.Errorf("fetch page ending %s: %w", to.Format(time.RFC3339), err)
		}
		if len(page) == 0 {
			c.logger.Warn().Time("to", to).Msg("empty candle page, stopping early")
			break
		}
		all = append(all, page...)
		to = page[0].From.Add(-time.Second)
		remaining -= count
	}

	model.SortCandles(all)
	all = model.DedupCandles(all)
	c.logger.Info().Int("candles", len(all)).Str("pair", pair).Msg("history fetched")
	return all, nil
}

// Extract fetches history and merges it into the raw CSV under root,
// returning the merged series and the file path.
func (c *Collector) Extract(ctx context.Context, root, pair string, timeframe, days int) ([]model.Candle, string, error) {
	fresh, err := c.FetchHistory(ctx, pair, timeframe, days)
	if err != nil {
		return nil, "", err
	}
	if len(fresh) == 0 {
		return nil, "", fmt.Errorf("no candles returned for %s", pair)
	}

	path := filepath.Join(root, "data", "raw", storage.RawFileName(pair, timeframe, days))
	existing, err := storage.ReadRawCSV(path)
	if err != nil {
		return nil, "", fmt.Errorf("read existing dataset: %w", err)
	}
	merged := model.MergeCandles(existing, fresh)

	if err := storage.WriteRawCSV(path, merged); err != nil {
		return nil, "", err
	}
	c.logger.Info().
		Str("path", path).
		Int("total", len(merged)).
		Time("until", merged[len(merged)-1].From).
		Msg("raw dataset updated")
	return merged, path, nil
}

// Fresh reports whether the newest candle in the raw dataset is younger
// than maxAge, in which case collection can be skipped.
func Fresh(path string, maxAge time.Duration) (bool, error) {
	candles, err := storage.ReadRawCSV(path)
	if err != nil || len(candles) == 0 {
		return false, err
	}
	return time.Since(candles[len(candles)-1].From) < maxAge, nil
}
