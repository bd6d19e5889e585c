package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/indicador-preditivo/preditor/internal/broker/iqoption"
	"github.com/indicador-preditivo/preditor/internal/collector"
	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/logging"
	"github.com/indicador-preditivo/preditor/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "config/settings.yaml", "path to the YAML config")
	step := flag.String("step", "all", "pipeline step: all, collect, transform, prepare, train")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.Paths.Root)
	logger := logging.Component("pipeline")

	if err := cfg.ValidatePipeline(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	// The broker connection is only needed when collection runs.
	var source collector.CandleSource
	needsBroker := *step == "all" || *step == "collect"
	if needsBroker {
		if err := cfg.Validate(); err != nil {
			logger.Fatal().Err(err).Msg("Broker credentials required for collection")
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
		source = client
	}

	pipe := pipeline.New(cfg, source, logger)

	switch *step {
	case "all":
		res, err := pipe.Run(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Pipeline failed")
		}
		logger.Info().
			Str("checkpoint", res.Checkpoint).
			Float64("rmse", res.RMSE).
			Float64("r2", res.R2).
			Msg("Pipeline finished")
	case "collect":
		if _, err := pipe.Collect(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Collection failed")
		}
	case "transform":
		if _, err := pipe.Transform(); err != nil {
			logger.Fatal().Err(err).Msg("Transformation failed")
		}
	case "prepare":
		if _, err := pipe.Prepare(); err != nil {
			logger.Fatal().Err(err).Msg("Preparation failed")
		}
	case "train":
		res, err := pipe.Train(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Training failed")
		}
		logger.Info().Str("checkpoint", res.Checkpoint).Float64("rmse", res.RMSE).Msg("Training finished")
	default:
		logger.Fatal().Str("step", *step).Msg("Unknown pipeline step")
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
