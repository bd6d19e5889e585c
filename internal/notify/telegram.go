package notify

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/indicador-preditivo/preditor/internal/model"
)

// ParseChatID converts the configured chat id, returning 0 for empty or
// malformed values so the notifier stays a no-op.
func ParseChatID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Notifier pushes signals and settlements to a Telegram chat. A notifier
// built without a token is a no-op, so callers never need to branch.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// New connects to the Telegram bot API. An empty token disables delivery.
func New(token string, chatID int64, logger zerolog.Logger) (*Notifier, error) {
	n := &Notifier{chatID: chatID, logger: logger}
	if token == "" {
		logger.Info().Msg("telegram token not set, notifications disabled")
		return n, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	n.bot = bot
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier ready")
	return n, nil
}

// Signal announces a new tradeable signal.
func (n *Notifier) Signal(sig *model.Signal) {
	arrow := "🔻"
	if sig.Direction == model.DirectionCall {
		arrow = "🔺"
	}
	n.send(fmt.Sprintf(
		"%s %s %s\nconfiança: %.0f%%\nfechamento: %.5f\nprevisto: %.5f\nexpira: %s",
		arrow, sig.Pair, sig.Direction,
		sig.Confidence*100, sig.ReferenceClose, sig.PredictedClose,
		sig.ExpiresAt.Format("15:04:05"),
	))
}

// OrderSettled announces the outcome of an option.
func (n *Notifier) OrderSettled(o *model.Order) {
	var head string
	switch o.Status {
	case model.OrderStatusWon:
		head = "✅ GANHOU"
	case model.OrderStatusEqual:
		head = "➖ EMPATE"
	default:
		head = "❌ PERDEU"
	}
	n.send(fmt.Sprintf(
		"%s %s %s\nentrada: %s\nretorno: %s",
		head, o.Pair, o.Direction, o.Stake.String(), o.Payout.String(),
	))
}

// TrainingDone announces the metrics of a finished training run.
func (n *Notifier) TrainingDone(report model.TrainReport) {
	n.send(fmt.Sprintf(
		"🧠 treino concluído (%s)\nMAE: %.6f\nRMSE: %.6f\nR²: %.4f",
		report.Checkpoint, report.MAE, report.RMSE, report.R2,
	))
}

// Event delivers a free-form status message.
func (n *Notifier) Event(text string) {
	n.send(text)
}

// Error reports a failure in the realtime loop.
func (n *Notifier) Error(context string, err error) {
	n.send(fmt.Sprintf("⚠️ %s: %v", context, err))
}

func (n *Notifier) send(text string) {
	if n.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error().Err(err).Msg("telegram send failed")
	}
}
