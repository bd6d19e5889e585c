package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/collector"
	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/dataset"
	"github.com/indicador-preditivo/preditor/internal/model"
	"github.com/indicador-preditivo/preditor/internal/train"
)

// Pipeline is the slice of the batch pipeline the scheduler drives.
type Pipeline interface {
	Collect(ctx context.Context) ([]model.Candle, error)
	Transform() (string, error)
	Prepare() (*dataset.Prepared, error)
	Run(ctx context.Context) (*train.Result, error)
	RawPath() string
}

// Scheduler drives the batch pipeline on cron expressions: a frequent data
// refresh (collect, transform, prepare) and a periodic full retrain.
type Scheduler struct {
	cron     *cron.Cron
	pipe     Pipeline
	cfg      *config.Config
	logger   zerolog.Logger
	mu       sync.Mutex // one pipeline stage at a time
	notifyFn func(string)
	trainFn  func(model.TrainReport)
}

func New(cfg *config.Config, pipe Pipeline, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		pipe:   pipe,
		cfg:    cfg,
		logger: logger,
	}
}

// OnEvent registers a callback for human-readable job outcomes.
func (s *Scheduler) OnEvent(fn func(string)) { s.notifyFn = fn }

// OnTraining registers a callback for the report of each finished retrain.
func (s *Scheduler) OnTraining(fn func(model.TrainReport)) { s.trainFn = fn }

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule.CollectCron, func() { s.refresh(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.Schedule.TrainCron, func() { s.retrain(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().
		Str("collect", s.cfg.Schedule.CollectCron).
		Str("train", s.cfg.Schedule.TrainCron).
		Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// refresh keeps the datasets current without retraining. A dataset whose
// newest candle is younger than one timeframe has nothing new to collect.
func (s *Scheduler) refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxAge := time.Duration(s.cfg.Timeframe) * time.Second
	if fresh, err := collector.Fresh(s.pipe.RawPath(), maxAge); err == nil && fresh {
		s.logger.Debug().Msg("raw dataset still fresh, skipping refresh")
		return
	}
	s.logger.Info().Msg("scheduled data refresh")

	if _, err := s.pipe.Collect(ctx); err != nil {
		s.logger.Error().Err(err).Msg("collect failed")
		s.event("coleta falhou: " + err.Error())
		return
	}
	if _, err := s.pipe.Transform(); err != nil {
		s.logger.Error().Err(err).Msg("transform failed")
		return
	}
	if _, err := s.pipe.Prepare(); err != nil {
		s.logger.Error().Err(err).Msg("prepare failed")
		return
	}
}

// retrain runs the full pipeline including model training.
func (s *Scheduler) retrain(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().Msg("scheduled retrain")

	res, err := s.pipe.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("retrain failed")
		s.event("retreino falhou: " + err.Error())
		return
	}
	s.logger.Info().Str("checkpoint", res.Checkpoint).Float64("rmse", res.RMSE).Msg("retrain finished")
	s.event("retreino concluído: " + res.Checkpoint)
	if s.trainFn != nil {
		s.trainFn(res.Report)
	}
}

func (s *Scheduler) event(msg string) {
	if s.notifyFn != nil {
		s.notifyFn(msg)
	}
}
