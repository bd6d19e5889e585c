package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Pair != "ETHUSD" {
		t.Errorf("pair: got %q, want ETHUSD", cfg.Pair)
	}
	if cfg.Timeframe != 300 || cfg.Days != 30 || cfg.SeqLen != 288 {
		t.Errorf("collection defaults: %d %d %d", cfg.Timeframe, cfg.Days, cfg.SeqLen)
	}
	if cfg.TestSize != 0.15 {
		t.Errorf("test_size: got %v", cfg.TestSize)
	}
	if cfg.Model.LSTMUnits1 != 128 || cfg.Model.LSTMUnits2 != 64 || cfg.Model.DenseUnits != 64 {
		t.Errorf("layer defaults: %+v", cfg.Model)
	}
	if cfg.Model.LearningRate != 0.0035 || cfg.Model.Loss != "huber" {
		t.Errorf("optimizer defaults: %v %q", cfg.Model.LearningRate, cfg.Model.Loss)
	}
	if cfg.Model.MaxEpochs != 100 || cfg.Model.BatchSize != 128 || cfg.Model.Patience != 10 {
		t.Errorf("training defaults: %+v", cfg.Model)
	}
	if cfg.Signals.MinConfidence != 0.6 || cfg.Signals.Cooldown.Std() != 15*time.Minute {
		t.Errorf("signal defaults: %+v", cfg.Signals)
	}
	if cfg.Dashboard.Listen != ":8080" || cfg.LogLevel != "info" {
		t.Errorf("ops defaults: %q %q", cfg.Dashboard.Listen, cfg.LogLevel)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
pair: BTCUSD
timeframe: 60
seq_len: 64
model:
  max_epochs: 5
signals:
  min_confidence: 0.75
  cooldown: 30m
  execute_orders: true
  risk_per_trade: 0.01
dashboard:
  listen: ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Pair != "BTCUSD" || cfg.Timeframe != 60 || cfg.SeqLen != 64 {
		t.Errorf("yaml values lost: %q %d %d", cfg.Pair, cfg.Timeframe, cfg.SeqLen)
	}
	if cfg.Model.MaxEpochs != 5 {
		t.Errorf("model override: got %d", cfg.Model.MaxEpochs)
	}
	// Unset fields still get defaults.
	if cfg.Model.BatchSize != 128 {
		t.Errorf("default alongside override: got %d", cfg.Model.BatchSize)
	}
	if cfg.Signals.Cooldown.Std() != 30*time.Minute {
		t.Errorf("cooldown: got %v", cfg.Signals.Cooldown.Std())
	}
	if !cfg.Signals.ExecuteOrders || cfg.Signals.RiskPerTrade != 0.01 {
		t.Errorf("signals: %+v", cfg.Signals)
	}
	if cfg.Dashboard.Listen != ":9000" {
		t.Errorf("listen: got %q", cfg.Dashboard.Listen)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAIR", "EURUSD")
	t.Setenv("TIMEFRAME", "900")
	t.Setenv("IQ_EMAIL", "user@example.com")
	t.Setenv("IQ_PASSWORD", "secret")
	t.Setenv("GITHUB_OWNER", "someone")
	t.Setenv("REPO", "projeto")
	t.Setenv("GITHUB_TOKEN", "tok")

	path := writeConfig(t, "pair: BTCUSD\ntimeframe: 60\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Pair != "EURUSD" {
		t.Errorf("env should beat yaml: got %q", cfg.Pair)
	}
	if cfg.Timeframe != 900 {
		t.Errorf("timeframe env: got %d", cfg.Timeframe)
	}
	if cfg.Broker.Email != "user@example.com" || cfg.Broker.Password != "secret" {
		t.Errorf("broker env: %+v", cfg.Broker)
	}
	if cfg.GitHub.Owner != "someone" || cfg.GitHub.Repo != "projeto" || cfg.GitHub.Token != "tok" {
		t.Errorf("github env: %+v", cfg.GitHub)
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Broker.Email = ""
	cfg.Broker.Password = ""

	if err := cfg.ValidatePipeline(); err != nil {
		t.Errorf("pipeline validation should pass without credentials: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("broker validation should require credentials")
	}

	cfg.Broker.Email = "a@b.c"
	cfg.Broker.Password = "x"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validation failed with credentials: %v", err)
	}

	cfg.TestSize = 1.5
	if err := cfg.ValidatePipeline(); err == nil {
		t.Error("test_size out of range should fail")
	}
}

func TestPath(t *testing.T) {
	cfg := &Config{}
	cfg.Paths.Root = "/srv/preditor"
	got := cfg.Path("data", "raw", "x.csv")
	want := filepath.Join("/srv/preditor", "data", "raw", "x.csv")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
