package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/collector"
	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/dataset"
	"github.com/indicador-preditivo/preditor/internal/features"
	"github.com/indicador-preditivo/preditor/internal/lstm"
	"github.com/indicador-preditivo/preditor/internal/model"
	"github.com/indicador-preditivo/preditor/internal/storage"
	"github.com/indicador-preditivo/preditor/internal/train"
)

// Pipeline runs the batch stages end to end: collect raw candles, derive
// features, build normalized sequences and train the model. Each stage
// persists its artifact so later stages can run standalone from disk.
type Pipeline struct {
	cfg    *config.Config
	source collector.CandleSource // nil runs from CSV alone
	logger zerolog.Logger
}

func New(cfg *config.Config, source collector.CandleSource, logger zerolog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, source: source, logger: logger}
}

// RawPath is where Collect keeps the merged raw candle CSV.
func (p *Pipeline) RawPath() string {
	return p.cfg.Path("data", "raw", storage.RawFileName(p.cfg.Pair, p.cfg.Timeframe, p.cfg.Days))
}

// Collect downloads history from the broker and merges it into the raw CSV.
func (p *Pipeline) Collect(ctx context.Context) ([]model.Candle, error) {
	if p.source == nil {
		return nil, fmt.Errorf("no candle source configured")
	}
	c := collector.New(p.source, p.logger)
	merged, _, err := c.Extract(ctx, p.cfg.Paths.Root, p.cfg.Pair, p.cfg.Timeframe, p.cfg.Days)
	return merged, err
}

// Transform reads the raw dataset, derives the feature frame, drops the rows
// the indicators cannot cover and writes the versioned transformed CSV.
func (p *Pipeline) Transform() (string, error) {
	candles, err := storage.ReadRawCSV(p.RawPath())
	if err != nil {
		return "", fmt.Errorf("read raw dataset: %w", err)
	}
	if len(candles) == 0 {
		return "", fmt.Errorf("raw dataset %s is empty, run collection first", p.RawPath())
	}

	frame, err := features.Transform(candles)
	if err != nil {
		return "", err
	}
	clean := frame.DropNaN()
	p.logger.Info().
		Int("rows", len(clean.Rows)).
		Int("dropped", len(frame.Rows)-len(clean.Rows)).
		Int("columns", len(clean.Columns)).
		Msg("features derived")

	version := time.Now().UTC().Format("20060102_150405")
	path := p.cfg.Path("data", "transformed",
		storage.TransformedFileName(p.cfg.Pair, p.cfg.Timeframe, p.cfg.Days, version))
	if err := storage.WriteFrameCSV(path, clean); err != nil {
		return "", err
	}
	p.logger.Info().Str("path", path).Msg("transformed dataset written")
	return path, nil
}

// Prepare loads the newest transformed dataset, builds normalized windows
// with an ordered split and persists the arrays plus the target scaler.
func (p *Pipeline) Prepare() (*dataset.Prepared, error) {
	path, err := storage.LatestTransformed(p.cfg.Path("data", "transformed"), p.cfg.Pair)
	if err != nil {
		return nil, err
	}
	frame, err := storage.ReadFrameCSV(path)
	if err != nil {
		return nil, err
	}

	prepared, err := dataset.Prepare(frame, p.cfg.SeqLen, p.cfg.TestSize, p.logger)
	if err != nil {
		return nil, err
	}
	files, err := prepared.Save(p.cfg.Path("data", "prepared"))
	if err != nil {
		return nil, err
	}
	p.logger.Info().
		Str("version", prepared.Version).
		Str("x_train", files["X_train"]).
		Msg("prepared dataset written")
	return prepared, nil
}

// Train fits the model on the newest prepared dataset.
func (p *Pipeline) Train(ctx context.Context) (*train.Result, error) {
	return train.Run(ctx, p.cfg.Path("data", "prepared"), p.cfg.Path("models"), p.modelConfig(), p.logger)
}

func (p *Pipeline) modelConfig() lstm.Config {
	m := p.cfg.Model
	return lstm.Config{
		SeqLen:       p.cfg.SeqLen,
		Features:     1, // overwritten by the prepared data's geometry
		LSTMUnits1:   m.LSTMUnits1,
		LSTMUnits2:   m.LSTMUnits2,
		DenseUnits:   m.DenseUnits,
		Dropout:      m.Dropout,
		LearningRate: m.LearningRate,
		Loss:         m.Loss,
		MaxEpochs:    m.MaxEpochs,
		BatchSize:    m.BatchSize,
		Patience:     m.Patience,
	}
}

// Run executes every stage in order. Collection is skipped when no candle
// source is configured.
func (p *Pipeline) Run(ctx context.Context) (*train.Result, error) {
	if p.source != nil {
		if _, err := p.Collect(ctx); err != nil {
			return nil, fmt.Errorf("collect: %w", err)
		}
	}
	if _, err := p.Transform(); err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}
	if _, err := p.Prepare(); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	res, err := p.Train(ctx)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return res, nil
}
