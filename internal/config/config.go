package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration, loaded from
// config/settings.yaml with environment variable overrides.
type Config struct {
	Pair      string  `yaml:"pair"`
	Timeframe int     `yaml:"timeframe"` // candle size in seconds (M5 = 300)
	Days      int     `yaml:"days"`      // days of history to collect
	SeqLen    int     `yaml:"seq_len"`   // LSTM lookback window
	TestSize  float64 `yaml:"test_size"` // fraction held out for validation

	Model struct {
		LSTMUnits1   int     `yaml:"lstm_units1"`
		LSTMUnits2   int     `yaml:"lstm_units2"`
		DenseUnits   int     `yaml:"dense_units"`
		Dropout      float64 `yaml:"dropout"`
		LearningRate float64 `yaml:"learning_rate"`
		Loss         string  `yaml:"loss"` // "huber" or "mse"
		MaxEpochs    int     `yaml:"max_epochs"`
		BatchSize    int     `yaml:"batch_size"`
		Patience     int     `yaml:"patience"`
	} `yaml:"model"`

	Paths struct {
		Root string `yaml:"root"` // project root holding data/ and models/
	} `yaml:"paths"`

	Broker struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Demo     bool   `yaml:"demo"` // trade on the practice balance
	} `yaml:"broker"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`

	Database struct {
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`

	Signals struct {
		MinConfidence float64  `yaml:"min_confidence"`
		Cooldown      Duration `yaml:"cooldown"`
		ExecuteOrders bool     `yaml:"execute_orders"`
		RiskPerTrade  float64  `yaml:"risk_per_trade"`
	} `yaml:"signals"`

	Schedule struct {
		CollectCron string `yaml:"collect_cron"`
		TrainCron   string `yaml:"train_cron"`
	} `yaml:"schedule"`

	GitHub struct {
		Owner string `yaml:"owner"`
		Repo  string `yaml:"repo"`
		Token string `yaml:"token"`
	} `yaml:"github"`

	Dashboard struct {
		Listen string `yaml:"listen"`
	} `yaml:"dashboard"`

	LogLevel string `yaml:"log_level"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error: everything can be
// configured through the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("IQ_EMAIL"); v != "" {
		cfg.Broker.Email = v
	}
	if v := os.Getenv("IQ_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("GITHUB_OWNER"); v != "" {
		cfg.GitHub.Owner = v
	}
	if v := os.Getenv("REPO"); v != "" {
		cfg.GitHub.Repo = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	cfg.Pair = getEnvWithDefault("PAIR", cfg.Pair)
	cfg.Timeframe = getEnvIntWithDefault("TIMEFRAME", cfg.Timeframe)
	cfg.Days = getEnvIntWithDefault("DAYS", cfg.Days)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", cfg.LogLevel)

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Pair == "" {
		cfg.Pair = "ETHUSD"
	}
	if cfg.Timeframe == 0 {
		cfg.Timeframe = 300
	}
	if cfg.Days == 0 {
		cfg.Days = 30
	}
	if cfg.SeqLen == 0 {
		cfg.SeqLen = 288 // one day of M5 candles
	}
	if cfg.TestSize == 0 {
		cfg.TestSize = 0.15
	}
	if cfg.Model.LSTMUnits1 == 0 {
		cfg.Model.LSTMUnits1 = 128
	}
	if cfg.Model.LSTMUnits2 == 0 {
		cfg.Model.LSTMUnits2 = 64
	}
	if cfg.Model.DenseUnits == 0 {
		cfg.Model.DenseUnits = 64
	}
	if cfg.Model.Dropout == 0 {
		cfg.Model.Dropout = 0.01
	}
	if cfg.Model.LearningRate == 0 {
		cfg.Model.LearningRate = 0.0035
	}
	if cfg.Model.Loss == "" {
		cfg.Model.Loss = "huber"
	}
	if cfg.Model.MaxEpochs == 0 {
		cfg.Model.MaxEpochs = 100
	}
	if cfg.Model.BatchSize == 0 {
		cfg.Model.BatchSize = 128
	}
	if cfg.Model.Patience == 0 {
		cfg.Model.Patience = 10
	}
	if cfg.Paths.Root == "" {
		cfg.Paths.Root = "."
	}
	if cfg.Signals.MinConfidence == 0 {
		cfg.Signals.MinConfidence = 0.6
	}
	if cfg.Signals.Cooldown == 0 {
		cfg.Signals.Cooldown = Duration(15 * time.Minute)
	}
	if cfg.Signals.RiskPerTrade == 0 {
		cfg.Signals.RiskPerTrade = 0.02
	}
	if cfg.Schedule.CollectCron == "" {
		cfg.Schedule.CollectCron = "0 */5 * * * *"
	}
	if cfg.Schedule.TrainCron == "" {
		cfg.Schedule.TrainCron = "0 0 3 * * *"
	}
	if cfg.Dashboard.Listen == "" {
		cfg.Dashboard.Listen = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks fields required by the broker-facing binaries. The batch
// pipeline can run from CSV alone, so it only calls ValidatePipeline.
func (c *Config) Validate() error {
	if c.Broker.Email == "" {
		return fmt.Errorf("broker.email (IQ_EMAIL) is required")
	}
	if c.Broker.Password == "" {
		return fmt.Errorf("broker.password (IQ_PASSWORD) is required")
	}
	return c.ValidatePipeline()
}

// ValidatePipeline checks the fields every binary needs.
func (c *Config) ValidatePipeline() error {
	if c.Pair == "" {
		return fmt.Errorf("pair is required")
	}
	if c.Timeframe <= 0 {
		return fmt.Errorf("timeframe must be positive")
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("seq_len must be positive")
	}
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("test_size must be in (0,1)")
	}
	return nil
}

// Path returns a path below the configured project root.
func (c *Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.Paths.Root}, elem...)...)
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
