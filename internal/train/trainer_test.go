package train

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/dataset"
	"github.com/indicador-preditivo/preditor/internal/lstm"
)

// savePrepared writes a small synthetic prepared dataset to dir.
func savePrepared(t *testing.T, dir string, n, seq, feat int) *dataset.Prepared {
	t.Helper()

	build := func(count, offset int) (*dataset.Tensor3, []float32) {
		tensor := &dataset.Tensor3{N: count, Seq: seq, Feat: feat, Data: make([]float32, count*seq*feat)}
		ys := make([]float32, count)
		for i := 0; i < count; i++ {
			phase := float64(i+offset) / 5
			for j := 0; j < seq; j++ {
				for k := 0; k < feat; k++ {
					tensor.Data[(i*seq+j)*feat+k] = float32(math.Sin(phase + float64(j+k)/7))
				}
			}
			ys[i] = float32(math.Sin(phase + float64(seq)/7))
		}
		return tensor, ys
	}

	p := &dataset.Prepared{Version: "20260825_120000", TargetScaler: dataset.Scaler{Mean: 100, Scale: 2}}
	p.XTrain, p.YTrain = build(n, 0)
	p.XTest, p.YTest = build(n/4, n)
	if _, err := p.Save(dir); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	preparedDir := filepath.Join(root, "prepared")
	modelsDir := filepath.Join(root, "models")
	if err := os.MkdirAll(preparedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	savePrepared(t, preparedDir, 16, 4, 3)

	cfg := lstm.Config{
		SeqLen:       999, // overwritten by the data geometry
		Features:     999,
		LSTMUnits1:   6,
		LSTMUnits2:   4,
		DenseUnits:   4,
		Dropout:      0,
		LearningRate: 0.01,
		Loss:         "huber",
		MaxEpochs:    3,
		BatchSize:    8,
		Patience:     3,
	}

	res, err := Run(context.Background(), preparedDir, modelsDir, cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	if res.Checkpoint != "modelo_LSTM_seq4_20260825_120000.model" {
		t.Errorf("checkpoint name: got %q", res.Checkpoint)
	}
	if _, err := os.Stat(filepath.Join(modelsDir, res.Checkpoint)); err != nil {
		t.Errorf("checkpoint not written: %v", err)
	}
	if math.IsNaN(res.RMSE) || res.RMSE < 0 {
		t.Errorf("rmse: got %v", res.RMSE)
	}

	// The report carries the run.
	reports, err := ReadReports(filepath.Join(modelsDir, ReportFileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d report rows, want 1", len(reports))
	}
	if reports[0].Checkpoint != res.Checkpoint || reports[0].SeqLen != 4 {
		t.Errorf("report row: %+v", reports[0])
	}

	// The checkpoint restores with the scaler metadata intact.
	cp, err := lstm.LoadCheckpoint(filepath.Join(modelsDir, res.Checkpoint))
	if err != nil {
		t.Fatal(err)
	}
	if cp.TargetMean != 100 || cp.TargetScale != 2 {
		t.Errorf("scaler metadata: %v %v", cp.TargetMean, cp.TargetScale)
	}
	if cp.DataVersion != "20260825_120000" {
		t.Errorf("data version: %q", cp.DataVersion)
	}

	latest, err := LatestCheckpoint(modelsDir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(latest) != res.Checkpoint {
		t.Errorf("latest checkpoint: got %q", latest)
	}
}
