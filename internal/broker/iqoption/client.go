package iqoption

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/indicador-preditivo/preditor/internal/model"
)

const (
	defaultLoginURL  = "https://auth.iqoption.com/api/v2/login"
	defaultGatewayWS = "wss://iqoption.com/echo/websocket"

	requestTimeout = 30 * time.Second
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 20 * time.Second
)

// Config for the broker session.
type Config struct {
	Email    string
	Password string
	Demo     bool // use the practice balance
	LoginURL string
	WSURL    string
}

// Client is a websocket session against the broker's trading gateway. One
// client owns one socket; requests are correlated with responses by
// request id, and stream subscriptions fan out over channels.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.RWMutex
	connected bool
	closed    bool
	ssid      string

	balanceID  int64
	balance    atomic.Value // float64

	reqID   atomic.Int64
	pending map[string]chan json.RawMessage
	pendMu  sync.Mutex

	candleSubs  map[string]*candleSub // key: activeID/size
	candleSubMu sync.Mutex

	settlements chan optionClosed
	errs        chan error
	done        chan struct{}
}

type candleSub struct {
	activeID, size int
	ch             chan model.Candle
	last           *model.Candle
}

// New builds an unconnected client.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.LoginURL == "" {
		cfg.LoginURL = defaultLoginURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = defaultGatewayWS
	}
	c := &Client{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: requestTimeout},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 5),
		logger:      logger,
		pending:     make(map[string]chan json.RawMessage),
		candleSubs:  make(map[string]*candleSub),
		settlements: make(chan optionClosed, 64),
		errs:        make(chan error, 8),
		done:        make(chan struct{}),
	}
	c.balance.Store(0.0)
	return c
}

// Connect authenticates over HTTPS, dials the websocket and starts the read
// loop.
func (c *Client) Connect(ctx context.Context) error {
	ssid, err := c.login(ctx)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.mu.Lock()
	c.ssid = ssid
	c.mu.Unlock()

	return c.dial(ctx)
}

// login posts credentials and returns the session id. Retried with
// exponential backoff, rate limited like every other HTTP call we make.
func (c *Client) login(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"identifier": c.cfg.Email,
		"password":   c.cfg.Password,
	})

	var ssid string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.LoginURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			return backoff.Permanent(fmt.Errorf("credentials rejected (%d)", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}

		var parsed struct {
			SSID string `json:"ssid"`
			Data struct {
				SSID string `json:"ssid"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("parsing login response: %w", err))
		}
		ssid = parsed.SSID
		if ssid == "" {
			ssid = parsed.Data.SSID
		}
		if ssid == "" {
			return backoff.Permanent(fmt.Errorf("login response carries no session id"))
		}
		return nil
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(strategy, ctx)); err != nil {
		return "", err
	}
	c.logger.Info().Msg("authenticated with broker")
	return ssid, nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.WSURL, err)
	}
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("client closed")
	}
	c.conn = conn
	c.connected = true
	ssid := c.ssid
	c.mu.Unlock()

	if err := c.send(outMessage{Name: "ssid", Msg: ssid}); err != nil {
		return fmt.Errorf("send ssid: %w", err)
	}
	if err := c.resubscribe(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	go c.readLoop()
	go c.pingLoop()
	c.logger.Info().Str("url", c.cfg.WSURL).Msg("gateway socket connected")
	return nil
}

// reconnect re-establishes a dropped session: fresh login, new socket and a
// re-issued subscription for every registered candle stream. Waiters on
// in-flight requests are left to time out; candle channels survive the gap.
func (c *Client) reconnect() {
	ctx := context.Background()

	attempt := func() error {
		select {
		case <-c.done:
			return backoff.Permanent(fmt.Errorf("client closed"))
		default:
		}
		ssid, err := c.login(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.ssid = ssid
		c.mu.Unlock()
		return c.dial(ctx)
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = 5 * time.Minute
	if err := backoff.Retry(attempt, strategy); err != nil {
		c.logger.Error().Err(err).Msg("reconnect failed")
		select {
		case c.errs <- fmt.Errorf("reconnect: %w", err):
		default:
		}
		return
	}
	c.logger.Info().Msg("gateway session restored")
}

// resubscribe re-issues the candle subscriptions on a new socket. The bar
// that was forming before the drop is discarded so the first emitted candle
// is a complete one.
func (c *Client) resubscribe() error {
	c.candleSubMu.Lock()
	defer c.candleSubMu.Unlock()
	for _, sub := range c.candleSubs {
		sub.last = nil
		body := subscribeBody{Name: "candle-generated"}
		body.Params.RoutingFilters.ActiveID = sub.activeID
		body.Params.RoutingFilters.Size = sub.size
		if err := c.send(outMessage{Name: "subscribeMessage", Msg: body}); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the session down. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// IsConnected reports the socket state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Errors exposes fatal session errors, emitted once reconnection gives up.
func (c *Client) Errors() <-chan error { return c.errs }

func (c *Client) send(msg outMessage) error {
	c.mu.RLock()
	conn := c.conn
	ok := c.connected
	c.mu.RUnlock()
	if !ok || conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

func (c *Client) nextRequestID() string {
	return strconv.FormatInt(c.reqID.Add(1), 10)
}

// request sends a sendMessage command and waits for its correlated reply.
func (c *Client) request(ctx context.Context, name, version string, body any) (json.RawMessage, error) {
	id := c.nextRequestID()
	ch := make(chan json.RawMessage, 1)
	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		delete(c.pending, id)
		c.pendMu.Unlock()
	}()

	err := c.send(outMessage{
		Name:      "sendMessage",
		RequestID: id,
		Msg:       sendMessageBody{Name: name, Version: version, Body: body},
	})
	if err != nil {
		return nil, err
	}

	select {
	case raw := <-ch:
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("connection closed")
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("%s: timed out waiting for reply", name)
	}
}

func (c *Client) readLoop() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.connected = false
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Warn().Err(err).Msg("gateway socket dropped")
				go c.reconnect()
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("undecodable gateway message")
			continue
		}
		c.route(msg)
	}
}

func (c *Client) route(msg wsMessage) {
	if msg.RequestID != "" {
		c.pendMu.Lock()
		ch, ok := c.pending[msg.RequestID]
		c.pendMu.Unlock()
		if ok {
			// Non-blocking: a duplicated reply must not stall the reader.
			select {
			case ch <- msg.Msg:
			default:
			}
			return
		}
	}

	switch msg.Name {
	case "candle-generated":
		var cg candleGenerated
		if err := json.Unmarshal(msg.Msg, &cg); err != nil {
			c.logger.Warn().Err(err).Msg("bad candle-generated payload")
			return
		}
		c.dispatchCandle(cg)
	case "option-closed":
		var oc optionClosed
		if err := json.Unmarshal(msg.Msg, &oc); err != nil {
			c.logger.Warn().Err(err).Msg("bad option-closed payload")
			return
		}
		select {
		case c.settlements <- oc:
		default:
			c.logger.Warn().Int64("option", oc.ID).Msg("settlement channel full, dropping")
		}
	case "profile":
		var p profileMessage
		if err := json.Unmarshal(msg.Msg, &p); err != nil {
			return
		}
		wantType := 1
		if c.cfg.Demo {
			wantType = 4
		}
		for _, b := range p.Balances {
			if b.Type == wantType {
				c.mu.Lock()
				c.balanceID = b.ID
				c.mu.Unlock()
				c.balance.Store(b.Amount)
				c.logger.Info().Float64("amount", b.Amount).Str("currency", b.Currency).Bool("demo", c.cfg.Demo).Msg("balance selected")
			}
		}
	case "balance-changed":
		var bc balanceChanged
		if err := json.Unmarshal(msg.Msg, &bc); err != nil {
			return
		}
		c.mu.RLock()
		match := bc.CurrentBalance.ID == c.balanceID
		c.mu.RUnlock()
		if match {
			c.balance.Store(bc.CurrentBalance.Amount)
		}
	case "timeSync", "heartbeat":
		// server clock chatter, nothing to do
	}
}

// dispatchCandle forwards closed candles: the gateway streams every tick of
// the forming candle, so a bar is emitted once a newer open time appears.
func (c *Client) dispatchCandle(cg candleGenerated) {
	key := subKey(cg.ActiveID, cg.Size)
	c.candleSubMu.Lock()
	sub, ok := c.candleSubs[key]
	if !ok {
		c.candleSubMu.Unlock()
		return
	}
	current := cg.toModel()
	var finished *model.Candle
	if sub.last != nil && current.From.After(sub.last.From) {
		done := *sub.last
		finished = &done
	}
	sub.last = &current
	ch := sub.ch
	c.candleSubMu.Unlock()

	if finished != nil {
		select {
		case ch <- *finished:
		default:
			c.logger.Warn().Str("sub", key).Msg("candle channel full, dropping bar")
		}
	}
}

// GetCandles fetches up to count candles of the given size ending at `to`.
func (c *Client) GetCandles(ctx context.Context, pair string, size int, to time.Time, count int) ([]model.Candle, error) {
	activeID, err := ActiveID(pair)
	if err != nil {
		return nil, err
	}
	raw, err := c.request(ctx, "get-candles", "2.0", getCandlesBody{
		ActiveID: activeID,
		Size:     size,
		To:       to.Unix(),
		Count:    count,
	})
	if err != nil {
		return nil, fmt.Errorf("get-candles: %w", err)
	}
	var resp candlesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("get-candles: parse reply: %w", err)
	}
	candles := make([]model.Candle, 0, len(resp.Candles))
	for _, w := range resp.Candles {
		candles = append(candles, w.toModel())
	}
	model.SortCandles(candles)
	return candles, nil
}

// SubscribeCandles streams closed candles for a pair. The returned channel
// is owned by the client and closes with the connection.
func (c *Client) SubscribeCandles(ctx context.Context, pair string, size int) (<-chan model.Candle, error) {
	activeID, err := ActiveID(pair)
	if err != nil {
		return nil, err
	}

	body := subscribeBody{Name: "candle-generated"}
	body.Params.RoutingFilters.ActiveID = activeID
	body.Params.RoutingFilters.Size = size
	if err := c.send(outMessage{Name: "subscribeMessage", Msg: body}); err != nil {
		return nil, fmt.Errorf("subscribe candles: %w", err)
	}

	key := subKey(activeID, size)
	c.candleSubMu.Lock()
	defer c.candleSubMu.Unlock()
	if sub, ok := c.candleSubs[key]; ok {
		return sub.ch, nil
	}
	sub := &candleSub{activeID: activeID, size: size, ch: make(chan model.Candle, 64)}
	c.candleSubs[key] = sub
	return sub.ch, nil
}

// Balance returns the cached account balance for the selected profile.
func (c *Client) Balance() float64 {
	v, _ := c.balance.Load().(float64)
	return v
}

// PlaceBinaryOption opens a turbo binary option and returns the broker's
// option id.
func (c *Client) PlaceBinaryOption(ctx context.Context, pair string, direction model.Direction, stake float64, expiry time.Time) (int64, error) {
	activeID, err := ActiveID(pair)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	balanceID := c.balanceID
	c.mu.RUnlock()
	if balanceID == 0 {
		return 0, fmt.Errorf("no balance selected yet")
	}

	dir := "call"
	if direction == model.DirectionPut {
		dir = "put"
	}
	raw, err := c.request(ctx, "binary-options.open-option", "1.0", openOptionBody{
		UserBalanceID: balanceID,
		ActiveID:      activeID,
		OptionTypeID:  3,
		Direction:     dir,
		Expired:       expiry.Unix(),
		Price:         stake,
	})
	if err != nil {
		return 0, fmt.Errorf("open option: %w", err)
	}
	var resp openOptionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return 0, fmt.Errorf("open option: parse reply: %w", err)
	}
	if resp.ID == 0 {
		return 0, fmt.Errorf("broker rejected the option")
	}
	return resp.ID, nil
}

// Settlement is the outcome of an expired option.
type Settlement struct {
	BrokerID int64
	Result   string // "win", "loose", "equal"
	Amount   float64
}

// Settlements streams option outcomes as the gateway reports them.
func (c *Client) Settlements() <-chan Settlement {
	out := make(chan Settlement, 16)
	go func() {
		defer close(out)
		for {
			select {
			case oc, ok := <-c.settlements:
				if !ok {
					return
				}
				out <- Settlement{BrokerID: oc.ID, Result: oc.Result, Amount: oc.WinAmount}
			case <-c.done:
				return
			}
		}
	}()
	return out
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			ok := c.connected
			c.mu.RUnlock()
			if !ok || conn == nil {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func subKey(activeID, size int) string {
	return strconv.Itoa(activeID) + "/" + strconv.Itoa(size)
}

func unixUTC(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
