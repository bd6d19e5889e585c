package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/indicador-preditivo/preditor/internal/backlog"
	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/logging"
)

func main() {
	configPath := flag.String("config", "config/settings.yaml", "path to the YAML config")
	backlogPath := flag.String("backlog", "backlog.csv", "path to the backlog CSV")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.Paths.Root)
	logger := logging.Component("backlog")

	items, err := backlog.Read(*backlogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to read backlog")
	}
	if len(items) == 0 {
		logger.Info().Msg("Backlog is empty, nothing to sync")
		return
	}

	syncer, err := backlog.NewSyncer(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Token, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("GitHub sync not configured")
	}
	if err := syncer.Sync(context.Background(), items); err != nil {
		logger.Fatal().Err(err).Msg("Backlog sync failed")
	}
	logger.Info().Int("items", len(items)).Msg("Backlog synced")
}
