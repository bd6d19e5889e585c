package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/features"
	"github.com/indicador-preditivo/preditor/internal/npy"
)

// Feature scaling groups. Price-scale columns are min-max normalized inside
// each window, volume-scale columns are z-scored inside each window, RSI is
// already bounded, and the time columns are divided by their fixed maxima
// before windowing.
var (
	normColumns = []string{
		"abertura", "maxima", "minima", "fechamento",
		"pressao_compradora", "pressao_vendedora", "var_fechamento",
		"resistencia", "suporte", "dist_resistencia", "dist_suporte",
	}
	stdColumns   = []string{"volume", "vol_media_5", "vol_media_20", "retorno", "volatilidade"}
	keepColumns  = []string{"RSI_14"}
	fixedColumns = []string{"hora_num", "minuto", "dia_semana"}
	fixedScale   = map[string]float64{"hora_num": 23, "minuto": 59, "dia_semana": 6}
)

// FeatureColumns returns the model input columns in training order:
// min-max group (including every SMA/EMA present in the frame), z-score
// group, pass-through, then the fixed-scale time columns.
func FeatureColumns(frameColumns []string) []string {
	cols := append([]string(nil), normColumns...)
	for _, c := range frameColumns {
		if strings.HasPrefix(c, "SMA_") || strings.HasPrefix(c, "EMA_") {
			cols = append(cols, c)
		}
	}
	cols = append(cols, stdColumns...)
	cols = append(cols, keepColumns...)
	cols = append(cols, fixedColumns...)
	return cols
}

// Tensor3 is a dense [N][Seq][Feat] float32 array in C order.
type Tensor3 struct {
	N, Seq, Feat int
	Data         []float32
}

func (t *Tensor3) at(i, j, k int) float32 {
	return t.Data[(i*t.Seq+j)*t.Feat+k]
}

// Window materializes sample i as [Seq][Feat] float64.
func (t *Tensor3) Window(i int) [][]float64 {
	out := make([][]float64, t.Seq)
	for j := 0; j < t.Seq; j++ {
		row := make([]float64, t.Feat)
		for k := 0; k < t.Feat; k++ {
			row[k] = float64(t.at(i, j, k))
		}
		out[j] = row
	}
	return out
}

// Prepared holds the train/test tensors and the fitted target scaler.
// Targets are stored in standardized form, as the original artifacts are.
type Prepared struct {
	XTrain, XTest *Tensor3
	YTrain, YTest []float32
	TargetScaler  Scaler
	Discarded     int
	Version       string // timestamp tag shared by the persisted files
}

// Prepare turns a cleaned feature frame into normalized LSTM windows with an
// ordered train/test split.
func Prepare(frame *features.Frame, seqLen int, testSize float64, logger zerolog.Logger) (*Prepared, error) {
	if seqLen <= 0 {
		return nil, fmt.Errorf("seq_len must be positive")
	}
	if len(frame.Rows) <= seqLen {
		return nil, fmt.Errorf("need more than %d rows, have %d", seqLen, len(frame.Rows))
	}

	cols := FeatureColumns(frame.Columns)
	idx := make([]int, len(cols))
	for i, c := range cols {
		j, err := frame.ColIndex(c)
		if err != nil {
			return nil, fmt.Errorf("feature column: %w", err)
		}
		idx[i] = j
	}
	targetIdx, err := frame.ColIndex(features.TargetCol)
	if err != nil {
		return nil, err
	}

	kind := make([]scaleKind, len(cols))
	for i, c := range cols {
		kind[i] = kindOf(c)
	}

	feat := len(cols)
	var xs [][]float64 // flattened windows, one []float64 per window
	var ys []float64
	discarded := 0

	limit := len(frame.Rows) - seqLen
	for i := 0; i < limit; i++ {
		window := make([]float64, seqLen*feat)
		finite := true
		for j := 0; j < seqLen; j++ {
			row := frame.Rows[i+j]
			for k, col := range idx {
				v := row[col]
				if kind[k] == scaleFixed {
					v /= fixedScale[cols[k]]
				}
				if math.IsNaN(v) || math.IsInf(v, 0) {
					finite = false
				}
				window[j*feat+k] = v
			}
		}
		target := frame.Rows[i+seqLen][targetIdx]
		if !finite || math.IsNaN(target) || math.IsInf(target, 0) {
			discarded++
			continue
		}
		normalizeWindow(window, seqLen, feat, kind)
		if !allFinite(window) {
			discarded++
			continue
		}
		xs = append(xs, window)
		ys = append(ys, target)
	}
	logger.Info().Int("windows", len(xs)).Int("discarded", discarded).Msg("sequences built")
	if len(xs) == 0 {
		return nil, fmt.Errorf("no usable windows (discarded %d)", discarded)
	}

	splitIdx := int(float64(len(xs)) * (1 - testSize))
	if splitIdx <= 0 || splitIdx >= len(xs) {
		return nil, fmt.Errorf("test_size %v leaves an empty split for %d windows", testSize, len(xs))
	}

	scaler := FitScaler(ys[:splitIdx])

	p := &Prepared{
		XTrain:       packTensor(xs[:splitIdx], seqLen, feat),
		XTest:        packTensor(xs[splitIdx:], seqLen, feat),
		YTrain:       scaleTargets(ys[:splitIdx], scaler),
		YTest:        scaleTargets(ys[splitIdx:], scaler),
		TargetScaler: scaler,
		Discarded:    discarded,
		Version:      time.Now().UTC().Format("20060102_150405"),
	}
	return p, nil
}

type scaleKind int

const (
	scaleMinMax scaleKind = iota
	scaleZScore
	scaleKeep
	scaleFixed
)

func kindOf(col string) scaleKind {
	switch {
	case strings.HasPrefix(col, "SMA_"), strings.HasPrefix(col, "EMA_"):
		return scaleMinMax
	case contains(normColumns, col):
		return scaleMinMax
	case contains(stdColumns, col):
		return scaleZScore
	case contains(fixedColumns, col):
		return scaleFixed
	default:
		return scaleKeep
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// normalizeWindow rescales each feature column inside one window: min-max to
// [0,1] for price-scale columns, z-score (population std, zero-variance
// guard) for volume-scale columns.
func normalizeWindow(window []float64, seqLen, feat int, kind []scaleKind) {
	for k := 0; k < feat; k++ {
		switch kind[k] {
		case scaleMinMax:
			lo, hi := math.Inf(1), math.Inf(-1)
			for j := 0; j < seqLen; j++ {
				v := window[j*feat+k]
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			denom := hi - lo
			if denom <= 0 {
				denom = 1
			}
			for j := 0; j < seqLen; j++ {
				window[j*feat+k] = (window[j*feat+k] - lo) / denom
			}
		case scaleZScore:
			var sum float64
			for j := 0; j < seqLen; j++ {
				sum += window[j*feat+k]
			}
			mean := sum / float64(seqLen)
			var ss float64
			for j := 0; j < seqLen; j++ {
				d := window[j*feat+k] - mean
				ss += d * d
			}
			std := math.Sqrt(ss / float64(seqLen))
			if std == 0 {
				std = 1
			}
			for j := 0; j < seqLen; j++ {
				window[j*feat+k] = (window[j*feat+k] - mean) / std
			}
		}
	}
}

// NormalizeWindow exposes the per-window scaling for the realtime predictor:
// rows are [seq][feat] in FeatureColumns order, fixed-scale columns already
// divided by their maxima.
func NormalizeWindow(rows [][]float64, cols []string) [][]float64 {
	if len(rows) == 0 {
		return rows
	}
	seqLen, feat := len(rows), len(cols)
	kind := make([]scaleKind, feat)
	for i, c := range cols {
		kind[i] = kindOf(c)
	}
	flat := make([]float64, seqLen*feat)
	for j, row := range rows {
		copy(flat[j*feat:], row)
	}
	normalizeWindow(flat, seqLen, feat, kind)
	out := make([][]float64, seqLen)
	for j := range out {
		out[j] = flat[j*feat : (j+1)*feat]
	}
	return out
}

// FixedScale returns the divisor applied to a fixed-scale time column, or 1.
func FixedScale(col string) float64 {
	if v, ok := fixedScale[col]; ok {
		return v
	}
	return 1
}

func allFinite(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func packTensor(windows [][]float64, seqLen, feat int) *Tensor3 {
	t := &Tensor3{N: len(windows), Seq: seqLen, Feat: feat, Data: make([]float32, len(windows)*seqLen*feat)}
	for i, w := range windows {
		for j, v := range w {
			t.Data[i*seqLen*feat+j] = float32(v)
		}
	}
	return t
}

func scaleTargets(ys []float64, s Scaler) []float32 {
	out := make([]float32, len(ys))
	for i, v := range ys {
		out[i] = float32(s.Transform(v))
	}
	return out
}

// Save persists the prepared arrays under dir using the original file
// naming: X_train_{ts}.npy, y_train_{ts}.npy, X_test_{ts}.npy,
// y_test_{ts}.npy and y_scaler_{ts}.npz.
func (p *Prepared) Save(dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	files := map[string]string{
		"X_train":  fmt.Sprintf("X_train_%s.npy", p.Version),
		"y_train":  fmt.Sprintf("y_train_%s.npy", p.Version),
		"X_test":   fmt.Sprintf("X_test_%s.npy", p.Version),
		"y_test":   fmt.Sprintf("y_test_%s.npy", p.Version),
		"y_scaler": fmt.Sprintf("y_scaler_%s.npz", p.Version),
	}
	saves := []struct {
		key   string
		shape []int
		data  []float32
	}{
		{"X_train", []int{p.XTrain.N, p.XTrain.Seq, p.XTrain.Feat}, p.XTrain.Data},
		{"y_train", []int{len(p.YTrain)}, p.YTrain},
		{"X_test", []int{p.XTest.N, p.XTest.Seq, p.XTest.Feat}, p.XTest.Data},
		{"y_test", []int{len(p.YTest)}, p.YTest},
	}
	for _, s := range saves {
		if err := npy.SaveFloat32(filepath.Join(dir, files[s.key]), s.shape, s.data); err != nil {
			return nil, err
		}
	}
	err := npy.SaveNPZ(filepath.Join(dir, files["y_scaler"]), map[string][]float32{
		"mean":  {float32(p.TargetScaler.Mean)},
		"scale": {float32(p.TargetScaler.Scale)},
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// LoadLatest loads the newest prepared dataset (by version tag in the file
// name) from dir.
func LoadLatest(dir string) (*Prepared, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "X_train_*.npy"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no prepared datasets in %s", dir)
	}
	sort.Strings(matches)
	xTrainPath := matches[len(matches)-1]
	version := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(xTrainPath), "X_train_"), ".npy")

	load3 := func(path string) (*Tensor3, error) {
		shape, data, err := npy.LoadFloat32(path)
		if err != nil {
			return nil, err
		}
		if len(shape) != 3 {
			return nil, fmt.Errorf("%s: want 3-d array, got shape %v", path, shape)
		}
		return &Tensor3{N: shape[0], Seq: shape[1], Feat: shape[2], Data: data}, nil
	}

	p := &Prepared{Version: version}
	if p.XTrain, err = load3(xTrainPath); err != nil {
		return nil, err
	}
	if p.XTest, err = load3(filepath.Join(dir, "X_test_"+version+".npy")); err != nil {
		return nil, err
	}
	if _, p.YTrain, err = npy.LoadFloat32(filepath.Join(dir, "y_train_"+version+".npy")); err != nil {
		return nil, err
	}
	if _, p.YTest, err = npy.LoadFloat32(filepath.Join(dir, "y_test_"+version+".npy")); err != nil {
		return nil, err
	}
	arrays, err := npy.LoadNPZ(filepath.Join(dir, "y_scaler_"+version+".npz"))
	if err != nil {
		return nil, err
	}
	mean, okM := arrays["mean"]
	scale, okS := arrays["scale"]
	if !okM || !okS || len(mean) == 0 || len(scale) == 0 {
		return nil, fmt.Errorf("y_scaler_%s.npz missing mean/scale", version)
	}
	p.TargetScaler = Scaler{Mean: float64(mean[0]), Scale: float64(scale[0])}
	return p, nil
}
