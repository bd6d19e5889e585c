package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/indicador-preditivo/preditor/internal/broker/iqoption"
	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/logging"
	"github.com/indicador-preditivo/preditor/internal/model"
	"github.com/indicador-preditivo/preditor/internal/notify"
	"github.com/indicador-preditivo/preditor/internal/order"
	"github.com/indicador-preditivo/preditor/internal/predict"
	signals "github.com/indicador-preditivo/preditor/internal/signal"
	"github.com/indicador-preditivo/preditor/internal/storage"
	"github.com/indicador-preditivo/preditor/internal/train"
)

// loop owns everything the realtime candle handler touches.
type loop struct {
	cfg       *config.Config
	predictor *predict.Predictor
	manager   *signals.Manager
	executor  *order.Executor
	store     *storage.Store
	notifier  *notify.Notifier
	logger    zerolog.Logger
}

func main() {
	configPath := flag.String("config", "config/settings.yaml", "path to the YAML config")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.Paths.Root)
	logger := logging.Component("realtime")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// 1. Load the newest trained checkpoint.
	checkpointPath, err := train.LatestCheckpoint(cfg.Path("models"))
	if err != nil {
		logger.Fatal().Err(err).Msg("No trained model available")
	}
	predictor, err := predict.New(checkpointPath, cfg.Pair, logging.Component("predict"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load model")
	}
	logger.Info().Str("model", predictor.ModelVersion()).Msg("Model loaded")

	// 2. Optional persistence.
	var store *storage.Store
	if cfg.Database.PostgresDSN != "" {
		if store, err = storage.Open(cfg.Database.PostgresDSN); err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer store.Close()
	}

	// 3. Broker connection.
	client := iqoption.New(iqoption.Config{
		Email:    cfg.Broker.Email,
		Password: cfg.Broker.Password,
		Demo:     cfg.Broker.Demo,
	}, logging.Component("broker"))
	if err := client.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Broker connection failed")
	}
	defer client.Close()

	notifier, err := notify.New(cfg.Telegram.BotToken, notify.ParseChatID(cfg.Telegram.ChatID), logging.Component("notify"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Telegram setup failed")
	}

	l := &loop{
		cfg:       cfg,
		predictor: predictor,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		manager: signals.NewManager(
			cfg.Signals.MinConfidence,
			cfg.Signals.Cooldown.Std(),
			cfg.Timeframe,
			logging.Component("signal"),
		),
	}
	if cfg.Signals.ExecuteOrders {
		if store == nil {
			logger.Fatal().Msg("Order execution requires database.postgres_dsn")
		}
		l.executor = order.NewExecutor(client, store, cfg.Signals.RiskPerTrade, logging.Component("order"))
	}

	// 4. Warm the predictor with recent history.
	history, err := client.GetCandles(ctx, cfg.Pair, cfg.Timeframe, time.Now().UTC(), predictor.MinHistory())
	if err != nil {
		logger.Fatal().Err(err).Msg("History warmup failed")
	}
	predictor.Warm(history)
	logger.Info().Int("candles", len(history)).Msg("Predictor warmed")

	// 5. Live candle stream.
	candles, err := client.SubscribeCandles(ctx, cfg.Pair, cfg.Timeframe)
	if err != nil {
		logger.Fatal().Err(err).Msg("Candle subscription failed")
	}
	if l.executor != nil {
		go l.settlementLoop(client.Settlements())
	}

	logger.Info().Str("pair", cfg.Pair).Int("timeframe", cfg.Timeframe).Msg("Realtime loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Realtime loop stopped")
			return
		case err := <-client.Errors():
			logger.Error().Err(err).Msg("Broker stream error")
			notifier.Error("broker", err)
			return
		case candle, ok := <-candles:
			if !ok {
				logger.Warn().Msg("Candle stream closed")
				return
			}
			l.handleCandle(ctx, candle)
		}
	}
}

func (l *loop) handleCandle(ctx context.Context, candle model.Candle) {
	if l.store != nil {
		if err := l.store.SaveCandles(l.cfg.Pair, l.cfg.Timeframe, []model.Candle{candle}); err != nil {
			l.logger.Error().Err(err).Msg("Persist candle failed")
		}
	}

	pred, err := l.predictor.OnCandle(candle)
	if err != nil {
		l.logger.Error().Err(err).Msg("Prediction failed")
		return
	}
	if pred == nil {
		return
	}
	if l.store != nil {
		if err := l.store.SavePrediction(*pred); err != nil {
			l.logger.Error().Err(err).Msg("Persist prediction failed")
		}
	}

	sig := l.manager.Evaluate(pred)
	if sig == nil {
		return
	}
	if l.store != nil {
		if err := l.store.SaveSignal(*sig); err != nil {
			l.logger.Error().Err(err).Msg("Persist signal failed")
		}
	}
	l.notifier.Signal(sig)

	if l.executor != nil {
		if _, err := l.executor.Execute(ctx, sig); err != nil {
			l.logger.Error().Err(err).Msg("Order execution failed")
			l.notifier.Error("ordem", err)
		}
	}
}

func (l *loop) settlementLoop(settlements <-chan iqoption.Settlement) {
	for s := range settlements {
		o, err := l.executor.HandleSettlement(s)
		if err != nil {
			l.logger.Error().Err(err).Msg("Settlement handling failed")
			continue
		}
		if o != nil {
			l.notifier.OrderSettled(o)
		}
	}
}

func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, exiting...")
		cancel()
	}()
}
