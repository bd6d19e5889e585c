package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/dashboard"
	"github.com/indicador-preditivo/preditor/internal/logging"
	"github.com/indicador-preditivo/preditor/internal/storage"
)

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
	logger := logging.Component("dashboard")

	// The dashboard degrades to reports-only when no database is configured.
	var store *storage.Store
	if cfg.Database.PostgresDSN != "" {
		if store, err = storage.Open(cfg.Database.PostgresDSN); err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer store.Close()
	}

	server := dashboard.NewServer(cfg, store, logger)
	if err := server.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Dashboard server failed")
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
