package dashboard

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/config"
	"github.com/indicador-preditivo/preditor/internal/storage"
	"github.com/indicador-preditivo/preditor/internal/train"
)

const defaultLimit = 100

// Server exposes a read-only HTTP view over the stored candles, predictions,
// signals and training reports.
type Server struct {
	cfg    *config.Config
	store  *storage.Store
	logger zerolog.Logger
	http   *http.Server
}

func NewServer(cfg *config.Config, store *storage.Store, logger zerolog.Logger) *Server {
	s := &Server{cfg: cfg, store: store, logger: logger}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", s.health)
	r.GET("/", s.index)

	api := r.Group("/api")
	{
		api.GET("/candles", s.candles)
		api.GET("/predictions", s.predictions)
		api.GET("/signals", s.signals)
		api.GET("/reports", s.reports)
	}

	s.http = &http.Server{
		Addr:              cfg.Dashboard.Listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.http.Addr).Msg("dashboard listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutCtx)
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) health(c *gin.Context) {
	status := gin.H{"status": "ok", "pair": s.cfg.Pair}
	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) limit(c *gin.Context) int {
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 1000 {
		return v
	}
	return defaultLimit
}

func (s *Server) pair(c *gin.Context) string {
	if p := c.Query("pair"); p != "" {
		return p
	}
	return s.cfg.Pair
}

func (s *Server) candles(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	candles, err := s.store.RecentCandles(s.pair(c), s.cfg.Timeframe, s.limit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair": s.pair(c), "candles": candles})
}

func (s *Server) predictions(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	preds, err := s.store.RecentPredictions(s.pair(c), s.limit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair": s.pair(c), "predictions": preds})
}

func (s *Server) signals(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}
	sigs, err := s.store.RecentSignals(s.pair(c), s.limit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pair": s.pair(c), "signals": sigs})
}

func (s *Server) reports(c *gin.Context) {
	reports, err := train.ReadReports(filepath.Join(s.cfg.Path("models"), train.ReportFileName))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (s *Server) index(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, indexHTML)
}
