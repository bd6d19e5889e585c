package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/indicador-preditivo/preditor/internal/model"
)

// Store is the Postgres persistence layer shared by the realtime loop and
// the dashboard.
type Store struct {
	*sql.DB
}

// Open connects to Postgres and runs migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &Store{db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			pair TEXT NOT NULL,
			timeframe INT NOT NULL,
			open_time TIMESTAMPTZ NOT NULL,
			abertura DOUBLE PRECISION NOT NULL,
			maxima DOUBLE PRECISION NOT NULL,
			minima DOUBLE PRECISION NOT NULL,
			fechamento DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (pair, timeframe, open_time)
		)`,
		`CREATE TABLE IF NOT EXISTS predictions (
			pair TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL,
			reference_close DOUBLE PRECISION NOT NULL,
			predicted_close DOUBLE PRECISION NOT NULL,
			direction TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			model_version TEXT,
			PRIMARY KEY (pair, at)
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			pair TEXT NOT NULL,
			direction TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			reference_close DOUBLE PRECISION NOT NULL,
			predicted_close DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			signal_id TEXT,
			broker_id BIGINT,
			pair TEXT NOT NULL,
			direction TEXT NOT NULL,
			stake NUMERIC NOT NULL,
			payout NUMERIC NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveCandles upserts a batch of candles.
func (s *Store) SaveCandles(pair string, timeframe int, candles []model.Candle) error {
	for _, c := range candles {
		_, err := s.Exec(`
			INSERT INTO candles (pair, timeframe, open_time, abertura, maxima, minima, fechamento, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (pair, timeframe, open_time)
			DO UPDATE SET
				abertura = EXCLUDED.abertura,
				maxima = EXCLUDED.maxima,
				minima = EXCLUDED.minima,
				fechamento = EXCLUDED.fechamento,
				volume = EXCLUDED.volume
		`, pair, timeframe, c.From, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return fmt.Errorf("save candle %s: %w", c.From, err)
		}
	}
	return nil
}

// RecentCandles returns the newest candles, oldest first.
func (s *Store) RecentCandles(pair string, timeframe, limit int) ([]model.Candle, error) {
	rows, err := s.Query(`
		SELECT open_time, abertura, maxima, minima, fechamento, volume
		FROM candles
		WHERE pair = $1 AND timeframe = $2
		ORDER BY open_time DESC
		LIMIT $3
	`, pair, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.From, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SavePrediction upserts one prediction per pair and candle.
func (s *Store) SavePrediction(p model.Prediction) error {
	_, err := s.Exec(`
		INSERT INTO predictions (pair, at, reference_close, predicted_close, direction, confidence, model_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (pair, at)
		DO UPDATE SET
			reference_close = EXCLUDED.reference_close,
			predicted_close = EXCLUDED.predicted_close,
			direction = EXCLUDED.direction,
			confidence = EXCLUDED.confidence,
			model_version = EXCLUDED.model_version
	`, p.Pair, p.At, p.ReferenceClose, p.PredictedClose, p.Direction, p.Confidence, p.ModelVersion)
	return err
}

// RecentPredictions returns the newest predictions, newest first.
func (s *Store) RecentPredictions(pair string, limit int) ([]model.Prediction, error) {
	rows, err := s.Query(`
		SELECT pair, at, reference_close, predicted_close, direction, confidence, COALESCE(model_version, '')
		FROM predictions
		WHERE pair = $1
		ORDER BY at DESC
		LIMIT $2
	`, pair, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		if err := rows.Scan(&p.Pair, &p.At, &p.ReferenceClose, &p.PredictedClose, &p.Direction, &p.Confidence, &p.ModelVersion); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveSignal inserts a signal.
func (s *Store) SaveSignal(sig model.Signal) error {
	_, err := s.Exec(`
		INSERT INTO signals (id, pair, direction, confidence, reference_close, predicted_close, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sig.ID, sig.Pair, sig.Direction, sig.Confidence, sig.ReferenceClose, sig.PredictedClose, sig.CreatedAt, sig.ExpiresAt)
	return err
}

// RecentSignals returns the newest signals, newest first.
func (s *Store) RecentSignals(pair string, limit int) ([]model.Signal, error) {
	rows, err := s.Query(`
		SELECT id, pair, direction, confidence, reference_close, predicted_close, created_at, expires_at
		FROM signals
		WHERE pair = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, pair, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		if err := rows.Scan(&sig.ID, &sig.Pair, &sig.Direction, &sig.Confidence,
			&sig.ReferenceClose, &sig.PredictedClose, &sig.CreatedAt, &sig.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// SaveOrder inserts a new order.
func (s *Store) SaveOrder(o model.Order) error {
	_, err := s.Exec(`
		INSERT INTO orders (id, signal_id, broker_id, pair, direction, stake, payout, status, opened_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, o.ID, o.SignalID, o.BrokerID, o.Pair, o.Direction, o.Stake.String(), o.Payout.String(), o.Status, o.OpenedAt, o.ExpiresAt)
	return err
}

// SettleOrder records the outcome of an expired option.
func (s *Store) SettleOrder(id string, status model.OrderStatus, payout decimal.Decimal, closedAt time.Time) error {
	res, err := s.Exec(`
		UPDATE orders
		SET status = $1, payout = $2, closed_at = $3
		WHERE id = $4
	`, status, payout.String(), closedAt, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("order %s not found", id)
	}
	return err
}

// OrderByBrokerID resolves the local order for a broker option id.
func (s *Store) OrderByBrokerID(brokerID int64) (*model.Order, error) {
	var o model.Order
	var stake, payout string
	var closedAt sql.NullTime
	err := s.QueryRow(`
		SELECT id, COALESCE(signal_id, ''), broker_id, pair, direction, stake, payout, status, opened_at, expires_at, closed_at
		FROM orders
		WHERE broker_id = $1
	`, brokerID).Scan(&o.ID, &o.SignalID, &o.BrokerID, &o.Pair, &o.Direction, &stake, &payout, &o.Status, &o.OpenedAt, &o.ExpiresAt, &closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if o.Stake, err = decimal.NewFromString(stake); err != nil {
		return nil, fmt.Errorf("order %s stake: %w", o.ID, err)
	}
	if o.Payout, err = decimal.NewFromString(payout); err != nil {
		return nil, fmt.Errorf("order %s payout: %w", o.ID, err)
	}
	if closedAt.Valid {
		o.ClosedAt = closedAt.Time
	}
	return &o, nil
}
