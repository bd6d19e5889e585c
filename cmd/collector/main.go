package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/indicador-preditivo/preditor/internal/broker/iqoption"
	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/logging"
	"github.com/indicador-preditivo/preditor/internal/notify"
	"github.com/indicador-preditivo/preditor/internal/pipeline"
	"github.com/indicador-preditivo/preditor/internal/scheduler"
)

// The collector daemon keeps the datasets fresh on the collect cron and
// retrains on the train cron. RUN_ON_START=true triggers an immediate
// refresh before the first scheduled tick.
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
	logger := logging.Component("collector")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

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

	pipe := pipeline.New(cfg, client, logging.Component("pipeline"))
	sched := scheduler.New(cfg, pipe, logging.Component("scheduler"))
	sched.OnEvent(notifier.Event)
	sched.OnTraining(notifier.TrainingDone)

	if os.Getenv("RUN_ON_START") == "true" {
		if _, err := pipe.Collect(ctx); err != nil {
			logger.Error().Err(err).Msg("Initial collection failed")
		} else if _, err := pipe.Transform(); err != nil {
			logger.Error().Err(err).Msg("Initial transformation failed")
		} else if _, err := pipe.Prepare(); err != nil {
			logger.Error().Err(err).Msg("Initial preparation failed")
		}
	}

	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Scheduler start failed")
	}
	<-ctx.Done()
	sched.Stop()
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
