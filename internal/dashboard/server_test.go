package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/model"
	"github.com/indicador-preditivo/preditor/internal/train"
)

func testServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Paths.Root = t.TempDir()
	return NewServer(cfg, nil, zerolog.Nop()), cfg
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, cfg := testServer(t)
	rec := get(t, s, "/healthz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["pair"] != cfg.Pair {
		t.Errorf("body: %v", body)
	}
}

func TestIndexServesHTML(t *testing.T) {
	s, _ := testServer(t)
	rec := get(t, s, "/")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("content type: %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty page")
	}
}

func TestAPIWithoutDatabase(t *testing.T) {
	s, _ := testServer(t)
	for _, path := range []string{"/api/candles", "/api/predictions", "/api/signals"} {
		rec := get(t, s, path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: got %d, want 503", path, rec.Code)
		}
	}
}

func TestReportsEndpoint(t *testing.T) {
	s, cfg := testServer(t)

	modelsDir := cfg.Path("models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	report := model.TrainReport{
		Timestamp:  time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		Checkpoint: "modelo_LSTM_seq288_20260825_120000.model",
		SeqLen:     288,
		RMSE:       0.42,
	}
	if err := train.AppendReport(filepath.Join(modelsDir, train.ReportFileName), report); err != nil {
		t.Fatal(err)
	}

	rec := get(t, s, "/api/reports")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Reports []model.TrainReport `json:"reports"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Reports) != 1 || body.Reports[0].RMSE != 0.42 {
		t.Errorf("reports: %+v", body.Reports)
	}
}
