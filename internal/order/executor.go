package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/indicador-preditivo/preditor/internal/broker/iqoption"
	"github.com/indicador-preditivo/preditor/internal/model"
)

// minStake is the smallest binary-option stake the gateway accepts.
var minStake = decimal.NewFromInt(1)

// Broker is the slice of the trading client the executor needs.
type Broker interface {
	Balance() float64
	PlaceBinaryOption(ctx context.Context, pair string, direction model.Direction, stake float64, expiry time.Time) (int64, error)
}

// Store persists orders and their settlements.
type Store interface {
	SaveOrder(model.Order) error
	SettleOrder(id string, status model.OrderStatus, payout decimal.Decimal, closedAt time.Time) error
	OrderByBrokerID(brokerID int64) (*model.Order, error)
}

// Executor sizes and places binary options from signals and records the
// broker's settlements.
type Executor struct {
	broker       Broker
	store        Store
	riskPerTrade float64
	logger       zerolog.Logger
}

func NewExecutor(broker Broker, store Store, riskPerTrade float64, logger zerolog.Logger) *Executor {
	return &Executor{broker: broker, store: store, riskPerTrade: riskPerTrade, logger: logger}
}

// Execute places one option for a signal, staking a fixed fraction of the
// current balance. The order is persisted as OPEN before the settlement
// arrives, or FAILED when the broker rejects it.
func (e *Executor) Execute(ctx context.Context, sig *model.Signal) (*model.Order, error) {
	stake := decimal.NewFromFloat(e.broker.Balance()).
		Mul(decimal.NewFromFloat(e.riskPerTrade)).
		Round(2)
	if stake.LessThan(minStake) {
		return nil, fmt.Errorf("stake %s below broker minimum %s", stake, minStake)
	}

	o := model.Order{
		ID:        uuid.NewString(),
		SignalID:  sig.ID,
		Pair:      sig.Pair,
		Direction: sig.Direction,
		Stake:     stake,
		Status:    model.OrderStatusOpen,
		OpenedAt:  time.Now().UTC(),
		ExpiresAt: sig.ExpiresAt,
	}

	stakeF, _ := stake.Float64()
	brokerID, err := e.broker.PlaceBinaryOption(ctx, sig.Pair, sig.Direction, stakeF, sig.ExpiresAt)
	if err != nil {
		o.Status = model.OrderStatusFailed
		o.ClosedAt = time.Now().UTC()
		if saveErr := e.store.SaveOrder(o); saveErr != nil {
			e.logger.Error().Err(saveErr).Str("order", o.ID).Msg("persist failed order")
		}
		return nil, fmt.Errorf("place option: %w", err)
	}
	o.BrokerID = brokerID

	if err := e.store.SaveOrder(o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	e.logger.Info().
		Str("order", o.ID).
		Int64("broker_id", brokerID).
		Str("pair", o.Pair).
		Str("direction", string(o.Direction)).
		Str("stake", stake.String()).
		Time("expires", o.ExpiresAt).
		Msg("option placed")
	return &o, nil
}

// HandleSettlement resolves a broker settlement to the local order and
// records the outcome. Unknown broker ids are ignored, the gateway also
// reports options placed outside this process.
func (e *Executor) HandleSettlement(s iqoption.Settlement) (*model.Order, error) {
	o, err := e.store.OrderByBrokerID(s.BrokerID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		e.logger.Debug().Int64("broker_id", s.BrokerID).Msg("settlement for unknown order")
		return nil, nil
	}

	var status model.OrderStatus
	switch s.Result {
	case "win":
		status = model.OrderStatusWon
	case "equal":
		status = model.OrderStatusEqual
	default:
		status = model.OrderStatusLost
	}
	payout := decimal.NewFromFloat(s.Amount).Round(2)
	closedAt := time.Now().UTC()
	if err := e.store.SettleOrder(o.ID, status, payout, closedAt); err != nil {
		return nil, fmt.Errorf("settle order %s: %w", o.ID, err)
	}

	o.Status = status
	o.Payout = payout
	o.ClosedAt = closedAt
	e.logger.Info().
		Str("order", o.ID).
		Str("status", string(status)).
		Str("payout", payout.String()).
		Msg("option settled")
	return o, nil
}
