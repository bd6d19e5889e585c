package lstm

import (
	"fmt"
	"math/rand"
)

// Config describes the network architecture and training hyperparameters.
// Defaults match the production model: LSTM(128) -> Dropout -> LSTM(64) ->
// Dropout -> Dense(64, relu) -> Dense(1).
type Config struct {
	SeqLen       int     `json:"seq_len"`
	Features     int     `json:"features"`
	LSTMUnits1   int     `json:"lstm_units1"`
	LSTMUnits2   int     `json:"lstm_units2"`
	DenseUnits   int     `json:"dense_units"`
	Dropout      float64 `json:"dropout"`
	LearningRate float64 `json:"learning_rate"`
	Loss         string  `json:"loss"` // "huber" (default) or "mse"
	MaxEpochs    int     `json:"max_epochs"`
	BatchSize    int     `json:"batch_size"`
	Patience     int     `json:"patience"`
}

func (c Config) validate() error {
	if c.SeqLen <= 0 || c.Features <= 0 {
		return fmt.Errorf("seq_len and features must be positive")
	}
	if c.LSTMUnits1 <= 0 || c.LSTMUnits2 <= 0 || c.DenseUnits <= 0 {
		return fmt.Errorf("layer sizes must be positive")
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1)")
	}
	return nil
}

// Network is the stacked-LSTM regressor.
type Network struct {
	Cfg Config

	l1  *lstmLayer
	l2  *lstmLayer
	fc  *denseLayer
	out *denseLayer

	rng *rand.Rand
}

// New builds a network with freshly initialized weights.
func New(cfg Config, seed int64) (*Network, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	return &Network{
		Cfg: cfg,
		l1:  newLSTMLayer(cfg.Features, cfg.LSTMUnits1, rng),
		l2:  newLSTMLayer(cfg.LSTMUnits1, cfg.LSTMUnits2, rng),
		fc:  newDenseLayer(cfg.LSTMUnits2, cfg.DenseUnits, true, rng),
		out: newDenseLayer(cfg.DenseUnits, 1, false, rng),
		rng: rng,
	}, nil
}

// Predict runs inference over one window of shape [SeqLen][Features] and
// returns the scaled regression output.
func (n *Network) Predict(window [][]float64) (float64, error) {
	if len(window) != n.Cfg.SeqLen {
		return 0, fmt.Errorf("window length %d, model expects %d", len(window), n.Cfg.SeqLen)
	}
	h1, _ := n.l1.forward(window)
	h2, _ := n.l2.forward(h1)
	last := h2[len(h2)-1]
	d, _ := n.fc.forward(last)
	y, _ := n.out.forward(d)
	return y[0], nil
}

// trainForward runs one sample with dropout and keeps the caches and masks
// needed for the backward pass.
type sampleState struct {
	c1, c2 *lstmCache
	cd, co *denseCache
	mask1  [][]float64
	mask2  []float64
	pred   float64
}

func (n *Network) trainForward(window [][]float64) *sampleState {
	st := &sampleState{}
	h1, c1 := n.l1.forward(window)
	st.c1 = c1

	// Inverted dropout on both LSTM outputs.
	keep := 1 - n.Cfg.Dropout
	st.mask1 = make([][]float64, len(h1))
	dropped1 := make([][]float64, len(h1))
	for t, h := range h1 {
		mask := make([]float64, len(h))
		out := make([]float64, len(h))
		for k := range h {
			if n.Cfg.Dropout == 0 || n.rng.Float64() < keep {
				mask[k] = 1 / keep
				out[k] = h[k] * mask[k]
			}
		}
		st.mask1[t] = mask
		dropped1[t] = out
	}

	h2, c2 := n.l2.forward(dropped1)
	st.c2 = c2
	last := h2[len(h2)-1]
	st.mask2 = make([]float64, len(last))
	dropped2 := make([]float64, len(last))
	for k := range last {
		if n.Cfg.Dropout == 0 || n.rng.Float64() < keep {
			st.mask2[k] = 1 / keep
			dropped2[k] = last[k] * st.mask2[k]
		}
	}

	d, cd := n.fc.forward(dropped2)
	st.cd = cd
	y, co := n.out.forward(d)
	st.co = co
	st.pred = y[0]
	return st
}

// trainBackward pushes the scalar loss gradient back through the whole
// network, accumulating parameter gradients.
func (n *Network) trainBackward(st *sampleState, dpred float64) {
	dDense := n.out.backward(st.co, []float64{dpred})
	dLast := n.fc.backward(st.cd, dDense)
	for k := range dLast {
		dLast[k] *= st.mask2[k]
	}

	T := n.Cfg.SeqLen
	dh2 := make([][]float64, T)
	for t := 0; t < T; t++ {
		dh2[t] = make([]float64, n.Cfg.LSTMUnits2)
	}
	dh2[T-1] = dLast
	dx2 := n.l2.backward(st.c2, dh2)
	for t := range dx2 {
		for k := range dx2[t] {
			dx2[t][k] *= st.mask1[t][k]
		}
	}
	n.l1.backward(st.c1, dx2)
}

func (n *Network) tensors() []*tensor {
	var ts []*tensor
	ts = append(ts, n.l1.tensors()...)
	ts = append(ts, n.l2.tensors()...)
	ts = append(ts, n.fc.tensors()...)
	ts = append(ts, n.out.tensors()...)
	return ts
}

func (n *Network) zeroGrads() {
	for _, t := range n.tensors() {
		t.zeroGrad()
	}
}

// snapshot copies all weights; restore puts them back. Used by early
// stopping to keep the best validation epoch.
func (n *Network) snapshot() [][]float64 {
	ts := n.tensors()
	out := make([][]float64, len(ts))
	for i, t := range ts {
		out[i] = append([]float64(nil), t.W...)
	}
	return out
}

func (n *Network) restore(weights [][]float64) {
	ts := n.tensors()
	for i, t := range ts {
		copy(t.W, weights[i])
	}
}
