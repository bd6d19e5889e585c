package train

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/dataset"
	"github.com/indicador-preditivo/preditor/internal/features"
	"github.com/indicador-preditivo/preditor/internal/lstm"
	"github.com/indicador-preditivo/preditor/internal/model"
)

// Result is the outcome of one training run.
type Result struct {
	Checkpoint string
	History    *lstm.History
	MAE        float64
	RMSE       float64
	R2         float64
	Report     model.TrainReport
}

// Run loads the newest prepared dataset, trains the network with early
// stopping, evaluates in price scale and appends a row to the model report.
func Run(ctx context.Context, preparedDir, modelsDir string, cfg lstm.Config, logger zerolog.Logger) (*Result, error) {
	prepared, err := dataset.LoadLatest(preparedDir)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("version", prepared.Version).
		Int("train", prepared.XTrain.N).
		Int("test", prepared.XTest.N).
		Msg("prepared dataset loaded")

	// The data defines the input geometry; config only picks layer sizes.
	cfg.SeqLen = prepared.XTrain.Seq
	cfg.Features = prepared.XTrain.Feat

	net, err := lstm.New(cfg, time.Now().UnixNano())
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", modelsDir, err)
	}
	checkpointName := fmt.Sprintf("modelo_LSTM_seq%d_%s.model", cfg.SeqLen, prepared.Version)
	checkpointPath := filepath.Join(modelsDir, checkpointName)
	columns := dataset.FeatureColumns(features.Columns())

	trainDS := lstm.Dataset{N: prepared.XTrain.N, At: prepared.XTrain.Window, Y: prepared.YTrain}
	testDS := lstm.Dataset{N: prepared.XTest.N, At: prepared.XTest.Window, Y: prepared.YTest}

	saveCheckpoint := func(n *lstm.Network) error {
		cp := n.Checkpoint(prepared.TargetScaler.Mean, prepared.TargetScaler.Scale, columns, prepared.Version)
		return cp.Save(checkpointPath)
	}

	hist, err := net.Fit(ctx, trainDS, testDS, logger, saveCheckpoint)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}

	// Metrics in price scale: both predictions and targets go back through
	// the target scaler fitted during preparation.
	scaled := net.PredictAll(testDS)
	predicted := make([]float64, len(scaled))
	actual := make([]float64, len(scaled))
	for i := range scaled {
		predicted[i] = prepared.TargetScaler.Inverse(scaled[i])
		actual[i] = prepared.TargetScaler.Inverse(float64(prepared.YTest[i]))
	}

	res := &Result{
		Checkpoint: checkpointName,
		History:    hist,
		MAE:        lstm.MAE(actual, predicted),
		RMSE:       lstm.RMSE(actual, predicted),
		R2:         lstm.R2(actual, predicted),
	}
	logger.Info().
		Float64("mae", res.MAE).
		Float64("rmse", res.RMSE).
		Float64("r2", res.R2).
		Msg("validation metrics (price scale)")

	report := model.TrainReport{
		Timestamp:    time.Now().UTC(),
		ModelVersion: fmt.Sprintf("LSTM_seq%d", cfg.SeqLen),
		DataVersion:  prepared.Version,
		Checkpoint:   checkpointName,
		SeqLen:       cfg.SeqLen,
		Epochs:       cfg.MaxEpochs,
		BatchSize:    cfg.BatchSize,
		ValLoss:      hist.BestValLoss(),
		MAE:          res.MAE,
		RMSE:         res.RMSE,
		R2:           res.R2,
	}
	if err := AppendReport(filepath.Join(modelsDir, ReportFileName), report); err != nil {
		return nil, fmt.Errorf("update model report: %w", err)
	}
	res.Report = report
	return res, nil
}
