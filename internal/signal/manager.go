package signal

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/model"
)

// Manager filters predictions into tradeable signals: a minimum confidence
// gate plus a per-pair cooldown so one trend does not spam entries.
type Manager struct {
	minConfidence float64
	cooldown      time.Duration
	timeframe     int
	logger        zerolog.Logger

	lastSignal map[string]time.Time
	now        func() time.Time
}

func NewManager(minConfidence float64, cooldown time.Duration, timeframe int, logger zerolog.Logger) *Manager {
	return &Manager{
		minConfidence: minConfidence,
		cooldown:      cooldown,
		timeframe:     timeframe,
		logger:        logger,
		lastSignal:    make(map[string]time.Time),
		now:           time.Now,
	}
}

// Evaluate turns a prediction into a signal, or nil when the prediction does
// not clear the confidence gate or the pair is still cooling down.
func (m *Manager) Evaluate(p *model.Prediction) *model.Signal {
	if p == nil {
		return nil
	}
	if p.Confidence < m.minConfidence {
		m.logger.Debug().
			Str("pair", p.Pair).
			Float64("confidence", p.Confidence).
			Float64("min", m.minConfidence).
			Msg("prediction below confidence gate")
		return nil
	}
	now := m.now()
	if last, ok := m.lastSignal[p.Pair]; ok && now.Sub(last) < m.cooldown {
		m.logger.Debug().
			Str("pair", p.Pair).
			Time("last", last).
			Msg("pair cooling down")
		return nil
	}
	m.lastSignal[p.Pair] = now

	sig := &model.Signal{
		ID:             uuid.NewString(),
		Pair:           p.Pair,
		Direction:      p.Direction,
		Confidence:     p.Confidence,
		ReferenceClose: p.ReferenceClose,
		PredictedClose: p.PredictedClose,
		CreatedAt:      now,
		ExpiresAt:      nextBoundary(now, m.timeframe),
	}
	m.logger.Info().
		Str("id", sig.ID).
		Str("pair", sig.Pair).
		Str("direction", string(sig.Direction)).
		Float64("confidence", sig.Confidence).
		Time("expires", sig.ExpiresAt).
		Msg("signal emitted")
	return sig
}

// nextBoundary returns the next timeframe boundary strictly after now, the
// earliest expiry the gateway accepts for a turbo option.
func nextBoundary(now time.Time, timeframe int) time.Time {
	d := time.Duration(timeframe) * time.Second
	return now.Truncate(d).Add(d)
}
