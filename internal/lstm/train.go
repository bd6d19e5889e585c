package lstm

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Dataset feeds training without forcing every window to live in memory as
// float64: At materializes sample i, Y holds the scaled targets.
type Dataset struct {
	N  int
	At func(i int) [][]float64
	Y  []float32
}

// History records per-epoch losses.
type History struct {
	TrainLoss []float64
	ValLoss   []float64
	BestEpoch int
}

// BestValLoss returns the lowest validation loss seen.
func (h *History) BestValLoss() float64 {
	best := math.Inf(1)
	for _, v := range h.ValLoss {
		if v < best {
			best = v
		}
	}
	return best
}

// Fit trains with Adam and mini-batches, early-stopping on validation loss
// and restoring the best weights. onImprove, when non-nil, is called after
// every epoch that improves validation loss (checkpointing hook).
func (n *Network) Fit(ctx context.Context, train, val Dataset, logger zerolog.Logger, onImprove func(*Network) error) (*History, error) {
	if train.N == 0 || val.N == 0 {
		return nil, fmt.Errorf("empty training or validation set")
	}
	adam := newAdam(n.Cfg.LearningRate)
	hist := &History{BestEpoch: -1}
	best := math.Inf(1)
	var bestWeights [][]float64
	sinceImprove := 0

	order := make([]int, train.N)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < n.Cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}
		n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		batches := 0
		for start := 0; start < train.N; start += n.Cfg.BatchSize {
			end := start + n.Cfg.BatchSize
			if end > train.N {
				end = train.N
			}
			n.zeroGrads()
			var batchLoss float64
			for _, i := range order[start:end] {
				st := n.trainForward(train.At(i))
				loss, grad := n.loss(st.pred, float64(train.Y[i]))
				batchLoss += loss
				n.trainBackward(st, grad/float64(end-start))
			}
			adam.step(n.tensors())
			epochLoss += batchLoss / float64(end-start)
			batches++
		}
		epochLoss /= float64(batches)

		valLoss := n.evaluate(val)
		hist.TrainLoss = append(hist.TrainLoss, epochLoss)
		hist.ValLoss = append(hist.ValLoss, valLoss)
		logger.Info().
			Int("epoch", epoch+1).
			Float64("loss", epochLoss).
			Float64("val_loss", valLoss).
			Msg("epoch finished")

		if valLoss < best {
			best = valLoss
			hist.BestEpoch = epoch
			bestWeights = n.snapshot()
			sinceImprove = 0
			if onImprove != nil {
				if err := onImprove(n); err != nil {
					return hist, fmt.Errorf("checkpoint: %w", err)
				}
			}
		} else {
			sinceImprove++
			if sinceImprove >= n.Cfg.Patience {
				logger.Info().Int("epoch", epoch+1).Msg("early stopping")
				break
			}
		}
	}

	if bestWeights != nil {
		n.restore(bestWeights)
	}
	return hist, nil
}

// evaluate computes the mean loss over a dataset without dropout.
func (n *Network) evaluate(ds Dataset) float64 {
	var total float64
	for i := 0; i < ds.N; i++ {
		pred, _ := n.Predict(ds.At(i))
		loss, _ := n.loss(pred, float64(ds.Y[i]))
		total += loss
	}
	return total / float64(ds.N)
}

// PredictAll runs inference over a whole dataset.
func (n *Network) PredictAll(ds Dataset) []float64 {
	out := make([]float64, ds.N)
	for i := 0; i < ds.N; i++ {
		out[i], _ = n.Predict(ds.At(i))
	}
	return out
}

// loss returns (loss, dLoss/dPred). Huber uses delta=1 on the standardized
// target, matching the training the checkpoints were produced with.
func (n *Network) loss(pred, target float64) (float64, float64) {
	e := pred - target
	if n.Cfg.Loss == "mse" {
		return e * e, 2 * e
	}
	if math.Abs(e) <= 1 {
		return 0.5 * e * e, e
	}
	if e > 0 {
		return math.Abs(e) - 0.5, 1
	}
	return math.Abs(e) - 0.5, -1
}

// adam is the Adam optimizer with Keras defaults.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
}

func (a *adam) step(tensors []*tensor) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))
	for _, tn := range tensors {
		for i, g := range tn.g {
			tn.m[i] = a.beta1*tn.m[i] + (1-a.beta1)*g
			tn.v[i] = a.beta2*tn.v[i] + (1-a.beta2)*g*g
			mHat := tn.m[i] / bc1
			vHat := tn.v[i] / bc2
			tn.W[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}
