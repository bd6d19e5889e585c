package train

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/indicador-preditivo/preditor/internal/model"
)

// ReportFileName is the ranked history of training runs under models/.
const ReportFileName = "relatorio_modelos.csv"

// maxReportRows caps the report at the best runs by RMSE.
const maxReportRows = 50

var reportHeader = []string{
	"timestamp", "versao_modelo", "versao_dados", "checkpoint",
	"seq_len", "epochs", "batch_size", "loss_val", "mae", "rmse", "r2",
}

// ReadReports loads the report, returning nil when the file does not exist.
func ReadReports(path string) ([]model.TrainReport, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	out := make([]model.TrainReport, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(reportHeader) {
			return nil, fmt.Errorf("%s: row has %d columns, expected %d", path, len(rec), len(reportHeader))
		}
		var r model.TrainReport
		if r.Timestamp, err = time.Parse(time.RFC3339, rec[0]); err != nil {
			return nil, fmt.Errorf("%s: timestamp %q: %w", path, rec[0], err)
		}
		r.ModelVersion = rec[1]
		r.DataVersion = rec[2]
		r.Checkpoint = rec[3]
		if r.SeqLen, err = strconv.Atoi(rec[4]); err != nil {
			return nil, fmt.Errorf("%s: seq_len %q: %w", path, rec[4], err)
		}
		if r.Epochs, err = strconv.Atoi(rec[5]); err != nil {
			return nil, fmt.Errorf("%s: epochs %q: %w", path, rec[5], err)
		}
		if r.BatchSize, err = strconv.Atoi(rec[6]); err != nil {
			return nil, fmt.Errorf("%s: batch_size %q: %w", path, rec[6], err)
		}
		for i, dst := range []*float64{&r.ValLoss, &r.MAE, &r.RMSE, &r.R2} {
			if *dst, err = strconv.ParseFloat(rec[7+i], 64); err != nil {
				return nil, fmt.Errorf("%s: %s %q: %w", path, reportHeader[7+i], rec[7+i], err)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// AppendReport adds a run to the report, resorts by RMSE ascending and keeps
// only the best rows.
func AppendReport(path string, report model.TrainReport) error {
	reports, err := ReadReports(path)
	if err != nil {
		return err
	}
	reports = append(reports, report)
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].RMSE < reports[j].RMSE })
	if len(reports) > maxReportRows {
		reports = reports[:maxReportRows]
	}
	return writeReports(path, reports)
}

func writeReports(path string, reports []model.TrainReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return err
	}
	for _, r := range reports {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.ModelVersion,
			r.DataVersion,
			r.Checkpoint,
			strconv.Itoa(r.SeqLen),
			strconv.Itoa(r.Epochs),
			strconv.Itoa(r.BatchSize),
			strconv.FormatFloat(r.ValLoss, 'g', -1, 64),
			strconv.FormatFloat(r.MAE, 'g', -1, 64),
			strconv.FormatFloat(r.RMSE, 'g', -1, 64),
			strconv.FormatFloat(r.R2, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
