package lstm

import (
	"math"
	"math/rand"
)

// tensor is one learnable parameter block with its gradient accumulator and
// Adam moment estimates.
type tensor struct {
	W       []float64
	g, m, v []float64
}

func newTensor(n int) *tensor {
	return &tensor{
		W: make([]float64, n),
		g: make([]float64, n),
		m: make([]float64, n),
		v: make([]float64, n),
	}
}

func (t *tensor) zeroGrad() {
	for i := range t.g {
		t.g[i] = 0
	}
}

// glorotInit fills a weight block with Glorot-uniform values.
func glorotInit(t *tensor, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range t.W {
		t.W[i] = (rng.Float64()*2 - 1) * limit
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// Gate layout inside the stacked 4H rows: input, forget, cell, output.
type lstmLayer struct {
	In, Hidden int
	Wx         *tensor // [4H x In]
	Wh         *tensor // [4H x H]
	B          *tensor // [4H]
}

func newLSTMLayer(in, hidden int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		In:     in,
		Hidden: hidden,
		Wx:     newTensor(4 * hidden * in),
		Wh:     newTensor(4 * hidden * hidden),
		B:      newTensor(4 * hidden),
	}
	glorotInit(l.Wx, in, hidden, rng)
	glorotInit(l.Wh, hidden, hidden, rng)
	// Forget-gate bias starts at 1 so early training does not flush state.
	for r := hidden; r < 2*hidden; r++ {
		l.B.W[r] = 1
	}
	return l
}

// lstmCache stores everything forward computed that backward needs.
type lstmCache struct {
	x                    [][]float64
	i, f, g, o, c, tc, h [][]float64
}

// forward runs the layer over a full sequence and returns the hidden state
// at every timestep.
func (l *lstmLayer) forward(x [][]float64) (hs [][]float64, cache *lstmCache) {
	T := len(x)
	H := l.Hidden
	cache = &lstmCache{
		x: x,
		i: make([][]float64, T), f: make([][]float64, T),
		g: make([][]float64, T), o: make([][]float64, T),
		c: make([][]float64, T), tc: make([][]float64, T),
		h: make([][]float64, T),
	}
	hPrev := make([]float64, H)
	cPrev := make([]float64, H)
	for t := 0; t < T; t++ {
		it := make([]float64, H)
		ft := make([]float64, H)
		gt := make([]float64, H)
		ot := make([]float64, H)
		ct := make([]float64, H)
		tct := make([]float64, H)
		ht := make([]float64, H)
		for r := 0; r < H; r++ {
			preI := l.gatePre(0*H+r, x[t], hPrev)
			preF := l.gatePre(1*H+r, x[t], hPrev)
			preG := l.gatePre(2*H+r, x[t], hPrev)
			preO := l.gatePre(3*H+r, x[t], hPrev)
			it[r] = sigmoid(preI)
			ft[r] = sigmoid(preF)
			gt[r] = math.Tanh(preG)
			ot[r] = sigmoid(preO)
			ct[r] = ft[r]*cPrev[r] + it[r]*gt[r]
			tct[r] = math.Tanh(ct[r])
			ht[r] = ot[r] * tct[r]
		}
		cache.i[t], cache.f[t], cache.g[t], cache.o[t] = it, ft, gt, ot
		cache.c[t], cache.tc[t], cache.h[t] = ct, tct, ht
		hPrev, cPrev = ht, ct
	}
	return cache.h, cache
}

func (l *lstmLayer) gatePre(row int, x, hPrev []float64) float64 {
	sum := l.B.W[row]
	wx := l.Wx.W[row*l.In : (row+1)*l.In]
	for k, v := range x {
		sum += wx[k] * v
	}
	wh := l.Wh.W[row*l.Hidden : (row+1)*l.Hidden]
	for k, v := range hPrev {
		sum += wh[k] * v
	}
	return sum
}

// backward runs truncated BPTT over the cached sequence. dh carries the
// gradient w.r.t. each timestep's hidden output (zeros where unused) and the
// returned dx carries gradients w.r.t. the layer inputs.
func (l *lstmLayer) backward(cache *lstmCache, dh [][]float64) (dx [][]float64) {
	T := len(cache.x)
	H := l.Hidden
	dx = make([][]float64, T)
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dpre := make([]float64, 4*H)

	for t := T - 1; t >= 0; t-- {
		var hPrev, cPrev []float64
		if t > 0 {
			hPrev, cPrev = cache.h[t-1], cache.c[t-1]
		} else {
			hPrev, cPrev = make([]float64, H), make([]float64, H)
		}
		for r := 0; r < H; r++ {
			dht := dh[t][r] + dhNext[r]
			i, f, g, o := cache.i[t][r], cache.f[t][r], cache.g[t][r], cache.o[t][r]
			tc := cache.tc[t][r]

			do := dht * tc
			dc := dcNext[r] + dht*o*(1-tc*tc)
			di := dc * g
			df := dc * cPrev[r]
			dg := dc * i
			dcNext[r] = dc * f

			dpre[0*H+r] = di * i * (1 - i)
			dpre[1*H+r] = df * f * (1 - f)
			dpre[2*H+r] = dg * (1 - g*g)
			dpre[3*H+r] = do * o * (1 - o)
		}

		dxt := make([]float64, l.In)
		for r := 0; r < 4*H; r++ {
			dp := dpre[r]
			if dp == 0 {
				continue
			}
			l.B.g[r] += dp
			wxRow := r * l.In
			for k, v := range cache.x[t] {
				l.Wx.g[wxRow+k] += dp * v
				dxt[k] += dp * l.Wx.W[wxRow+k]
			}
			whRow := r * H
			for k, v := range hPrev {
				l.Wh.g[whRow+k] += dp * v
			}
		}
		for r := 0; r < H; r++ {
			var sum float64
			for row := 0; row < 4*H; row++ {
				sum += dpre[row] * l.Wh.W[row*H+r]
			}
			dhNext[r] = sum
		}
		dx[t] = dxt
	}
	return dx
}

func (l *lstmLayer) tensors() []*tensor { return []*tensor{l.Wx, l.Wh, l.B} }

// denseLayer is a fully connected layer, optionally with ReLU activation.
type denseLayer struct {
	In, Out int
	W       *tensor // [Out x In]
	B       *tensor // [Out]
	relu    bool
}

func newDenseLayer(in, out int, relu bool, rng *rand.Rand) *denseLayer {
	d := &denseLayer{In: in, Out: out, W: newTensor(out * in), B: newTensor(out), relu: relu}
	glorotInit(d.W, in, out, rng)
	return d
}

type denseCache struct {
	x   []float64
	pre []float64
}

func (d *denseLayer) forward(x []float64) ([]float64, *denseCache) {
	out := make([]float64, d.Out)
	pre := make([]float64, d.Out)
	for r := 0; r < d.Out; r++ {
		sum := d.B.W[r]
		row := d.W.W[r*d.In : (r+1)*d.In]
		for k, v := range x {
			sum += row[k] * v
		}
		pre[r] = sum
		if d.relu && sum < 0 {
			out[r] = 0
		} else {
			out[r] = sum
		}
	}
	return out, &denseCache{x: x, pre: pre}
}

func (d *denseLayer) backward(cache *denseCache, dout []float64) (dx []float64) {
	dx = make([]float64, d.In)
	for r := 0; r < d.Out; r++ {
		dp := dout[r]
		if d.relu && cache.pre[r] < 0 {
			dp = 0
		}
		if dp == 0 {
			continue
		}
		d.B.g[r] += dp
		row := r * d.In
		for k, v := range cache.x {
			d.W.g[row+k] += dp * v
			dx[k] += dp * d.W.W[row+k]
		}
	}
	return dx
}

func (d *denseLayer) tensors() []*tensor { return []*tensor{d.W, d.B} }
