package model

import "time"

// TrainReport is one row of models/relatorio_modelos.csv: the outcome of a
// single training run, ranked against previous runs by RMSE.
type TrainReport struct {
	Timestamp    time.Time `json:"timestamp"`
	ModelVersion string    `json:"versao_modelo"`
	DataVersion  string    `json:"versao_dados"`
	Checkpoint   string    `json:"checkpoint"`
	SeqLen       int       `json:"seq_len"`
	Epochs       int       `json:"epochs"`
	BatchSize    int       `json:"batch_size"`
	ValLoss      float64   `json:"loss_val"`
	MAE          float64   `json:"mae"`
	RMSE         float64   `json:"rmse"`
	R2           float64   `json:"r2"`
}
