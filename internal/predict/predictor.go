package predict

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/dataset"
	"github.com/indicador-preditivo/preditor/internal/features"
	"github.com/indicador-preditivo/preditor/internal/lstm"
	"github.com/indicador-preditivo/preditor/internal/model"
)

// warmup is the extra history kept ahead of the model window so the slowest
// indicator (200-period moving average) has real values inside the window.
const warmup = 210

// confWindow is how many recent returns feed the volatility estimate behind
// the confidence score.
const confWindow = 20

// Predictor turns a stream of closed candles into price predictions using a
// trained checkpoint.
type Predictor struct {
	net    *lstm.Network
	cp     *lstm.Checkpoint
	scaler dataset.Scaler
	pair   string
	logger zerolog.Logger

	buffer []model.Candle
}

// New loads a checkpoint and prepares an empty candle buffer. Seed the buffer
// with historical candles via Warm before feeding live ones.
func New(checkpointPath, pair string, logger zerolog.Logger) (*Predictor, error) {
	cp, err := lstm.LoadCheckpoint(checkpointPath)
	if err != nil {
		return nil, err
	}
	net, err := cp.Restore()
	if err != nil {
		return nil, fmt.Errorf("restore checkpoint: %w", err)
	}
	return &Predictor{
		net:    net,
		cp:     cp,
		scaler: dataset.Scaler{Mean: cp.TargetMean, Scale: cp.TargetScale},
		pair:   pair,
		logger: logger,
	}, nil
}

// ModelVersion identifies the checkpoint behind the predictions.
func (p *Predictor) ModelVersion() string {
	return fmt.Sprintf("LSTM_seq%d_%s", p.cp.Config.SeqLen, p.cp.DataVersion)
}

// MinHistory is the number of candles needed before predictions start.
func (p *Predictor) MinHistory() int {
	return p.cp.Config.SeqLen + warmup
}

// Warm seeds the buffer with historical candles, oldest first.
func (p *Predictor) Warm(candles []model.Candle) {
	for _, c := range candles {
		p.push(c)
	}
}

func (p *Predictor) push(c model.Candle) {
	if n := len(p.buffer); n > 0 && !c.From.After(p.buffer[n-1].From) {
		// Replace in-place updates of the newest bar, drop stale ones.
		if c.From.Equal(p.buffer[n-1].From) {
			p.buffer[n-1] = c
		}
		return
	}
	p.buffer = append(p.buffer, c)
	if max := p.MinHistory() + warmup; len(p.buffer) > max {
		p.buffer = p.buffer[len(p.buffer)-max:]
	}
}

// OnCandle ingests one closed candle and, once enough history is buffered,
// returns a prediction for the next close. Returns nil while warming up.
func (p *Predictor) OnCandle(c model.Candle) (*model.Prediction, error) {
	p.push(c)
	if len(p.buffer) < p.MinHistory() {
		return nil, nil
	}

	frame, err := features.Transform(p.buffer)
	if err != nil {
		return nil, err
	}
	clean := frame.DropNaNExcept(features.TargetCol)
	seqLen := p.cp.Config.SeqLen
	if len(clean.Rows) < seqLen {
		return nil, fmt.Errorf("only %d clean rows, model needs %d", len(clean.Rows), seqLen)
	}

	idx := make([]int, len(p.cp.Columns))
	for i, col := range p.cp.Columns {
		j, err := clean.ColIndex(col)
		if err != nil {
			return nil, fmt.Errorf("model column: %w", err)
		}
		idx[i] = j
	}

	start := len(clean.Rows) - seqLen
	window := make([][]float64, seqLen)
	for j := 0; j < seqLen; j++ {
		row := make([]float64, len(idx))
		for k, col := range idx {
			row[k] = clean.Rows[start+j][col] / dataset.FixedScale(p.cp.Columns[k])
		}
		window[j] = row
	}
	window = dataset.NormalizeWindow(window, p.cp.Columns)

	scaled, err := p.net.Predict(window)
	if err != nil {
		return nil, err
	}
	predicted := p.scaler.Inverse(scaled)
	reference := c.Close

	direction := model.DirectionPut
	if predicted > reference {
		direction = model.DirectionCall
	}

	pred := &model.Prediction{
		Pair:           p.pair,
		At:             c.From,
		ReferenceClose: reference,
		PredictedClose: predicted,
		Direction:      direction,
		Confidence:     p.confidence(reference, predicted),
		ModelVersion:   p.ModelVersion(),
	}
	p.logger.Debug().
		Time("at", pred.At).
		Float64("reference", reference).
		Float64("predicted", predicted).
		Str("direction", string(direction)).
		Float64("confidence", pred.Confidence).
		Msg("prediction")
	return pred, nil
}

// confidence scores the predicted move against recent realized volatility:
// a move the size of one recent standard deviation scores 0.5, two or more
// standard deviations saturate at 1.
func (p *Predictor) confidence(reference, predicted float64) float64 {
	if reference == 0 {
		return 0
	}
	move := math.Abs(predicted-reference) / reference

	returns := recentReturns(p.buffer, confWindow)
	vol := stddev(returns)
	if vol <= 0 {
		return 0
	}
	conf := move / (2 * vol)
	if conf > 1 {
		conf = 1
	}
	return conf
}

func recentReturns(candles []model.Candle, n int) []float64 {
	if len(candles) < 2 {
		return nil
	}
	start := len(candles) - n - 1
	if start < 0 {
		start = 0
	}
	var out []float64
	for i := start + 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		out = append(out, (candles[i].Close-prev)/prev)
	}
	return out
}

func stddev(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
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
	return math.Sqrt(ss / float64(len(vals)))
}
