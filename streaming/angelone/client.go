// Package angelone implements the live market-data client for Vendor-B's
// SmartStream WebSocket: a reconnecting binary-tick decoder whose single
// read loop decodes and dispatches each frame inline, adapted from Saxo's
// JSON/binary envelope to SmartStream's fixed binary layout.
package angelone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bjoelf/ttconnect-go/broker"
	"github.com/bjoelf/ttconnect-go/model"
)

const (
	wsURL = "wss://smartapisocket.angelone.in/smart-stream"

	pingInterval     = 10 * time.Second
	initialDelay     = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// exchangeType maps a resolved instrument's exchange onto SmartStream's
// exchangeType integer, used to group the subscribe payload.
var exchangeType = map[model.Exchange]int{
	model.NSE: 1,
	model.NFO: 2,
	model.BSE: 3,
	model.BFO: 4,
	model.MCX: 5,
}

// Credentials is the live session state the client needs to open and
// maintain a connection; the adapter supplies a fresh value on every
// (re)connect since the underlying jwt/feed token can rotate.
type Credentials struct {
	JWT       string
	APIKey    string
	ClientID  string
	FeedToken string
}

// CredentialsFunc fetches the current session credentials, going back
// through the adapter's auth so a reconnect always uses the live token
// rather than one captured at subscribe time.
type CredentialsFunc func(ctx context.Context) (Credentials, error)

// Client is a broker.StreamingClient for Vendor-B.
type Client struct {
	creds CredentialsFunc
	log   zerolog.Logger

	mu                sync.Mutex
	tokenInstrument   map[string]model.Instrument
	tokenExchangeType map[string]int
	onTick            func(model.Tick)

	connMu sync.Mutex
	conn   *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

var _ broker.StreamingClient = (*Client)(nil)

func New(creds CredentialsFunc, log zerolog.Logger) *Client {
	return &Client{
		creds:             creds,
		log:               log,
		tokenInstrument:   make(map[string]model.Instrument),
		tokenExchangeType: make(map[string]int),
	}
}

func (c *Client) Subscribe(ctx context.Context, subscriptions []broker.Subscription, onTick func(model.Tick)) error {
	c.mu.Lock()
	c.onTick = onTick
	newTokens := make([]string, 0, len(subscriptions))
	for _, s := range subscriptions {
		c.tokenInstrument[s.Resolved.Token] = s.Instrument
		et, ok := exchangeType[model.Exchange(s.Resolved.Exchange)]
		if !ok {
			et = 1
		}
		c.tokenExchangeType[s.Resolved.Token] = et
		newTokens = append(newTokens, s.Resolved.Token)
	}
	running := c.cancel != nil
	c.mu.Unlock()

	if !running {
		runCtx, cancel := context.WithCancel(context.Background())
		c.ctx = runCtx
		c.cancel = cancel
		c.done = make(chan struct{})
		go c.runLoop()
		return nil
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn != nil {
		return c.sendSubscribe(conn, newTokens, modeQuote)
	}
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, instruments []model.Instrument) error {
	drop := make(map[model.Instrument]bool, len(instruments))
	for _, i := range instruments {
		drop[i] = true
	}

	c.mu.Lock()
	var tokens []string
	for token, inst := range c.tokenInstrument {
		if drop[inst] {
			tokens = append(tokens, token)
		}
	}
	for _, t := range tokens {
		delete(c.tokenInstrument, t)
		delete(c.tokenExchangeType, t)
	}
	c.mu.Unlock()

	if len(tokens) == 0 {
		return nil
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return nil
	}
	return c.sendUnsubscribe(conn, tokens, modeQuote)
}

func (c *Client) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	// Closing the live socket unblocks a pending ReadMessage so the loop
	// sees the cancelled context and exits.
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}

// runLoop is the reconnect loop: exponential backoff 2s doubling to a 60s
// ceiling. connectAndRun reports a clean end only once the client is
// closed, and the loop then returns, so the delay is not reset to 2s while
// the client keeps running.
func (c *Client) runLoop() {
	defer close(c.done)
	delay := initialDelay

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		clean, err := c.connectAndRun()
		if err != nil {
			c.log.Warn().Err(err).Msg("angelone ws: connection error")
		}
		if clean {
			delay = initialDelay
		}

		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.log.Info().Dur("delay", delay).Msg("angelone ws: reconnecting")
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// connectAndRun opens one connection, resubscribes everything currently
// tracked, and dispatches frames until the socket closes or the client is
// closed. Returns whether the session ended cleanly (client closed, not
// an I/O error).
func (c *Client) connectAndRun() (bool, error) {
	creds, err := c.creds(c.ctx)
	if err != nil {
		return false, fmt.Errorf("angelone ws: credentials: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", creds.JWT)
	header.Set("x-api-key", creds.APIKey)
	header.Set("x-client-code", creds.ClientID)
	header.Set("x-feed-token", creds.FeedToken)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(c.ctx, wsURL, header)
	if err != nil {
		return false, fmt.Errorf("angelone ws: dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	defer func() {
		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()
		conn.Close()
	}()

	c.mu.Lock()
	tokens := make([]string, 0, len(c.tokenInstrument))
	for t := range c.tokenInstrument {
		tokens = append(tokens, t)
	}
	c.mu.Unlock()
	if len(tokens) > 0 {
		if err := c.sendSubscribe(conn, tokens, modeQuote); err != nil {
			return false, fmt.Errorf("angelone ws: resubscribe: %w", err)
		}
	}

	pingDone := make(chan struct{})
	go c.pingLoop(conn, pingDone)
	defer close(pingDone)

	// Separated read step: the blocking ReadMessage call lives here; frame
	// decoding and dispatch happen inline per message, same as the
	// reference client's async-for loop.
	for {
		select {
		case <-c.ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true, nil
		default:
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return false, fmt.Errorf("angelone ws: read: %w", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		c.mu.Lock()
		tick, ok := decodeTick(data, c.tokenInstrument)
		onTick := c.onTick
		c.mu.Unlock()
		if ok && onTick != nil {
			go onTick(tick)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.connMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
			c.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type tokenGroup struct {
	ExchangeType int      `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

type subscribeMessage struct {
	CorrelationID string `json:"correlationID"`
	Action        int    `json:"action"`
	Params        struct {
		Mode      int          `json:"mode"`
		TokenList []tokenGroup `json:"tokenList"`
	} `json:"params"`
}

func (c *Client) sendSubscribe(conn *websocket.Conn, tokens []string, mode int) error {
	return c.send(conn, tokens, mode, 1)
}

func (c *Client) sendUnsubscribe(conn *websocket.Conn, tokens []string, mode int) error {
	return c.send(conn, tokens, mode, 0)
}

func (c *Client) send(conn *websocket.Conn, tokens []string, mode, action int) error {
	if len(tokens) == 0 {
		return nil
	}
	c.mu.Lock()
	byExchange := make(map[int][]string)
	for _, t := range tokens {
		et := c.tokenExchangeType[t]
		if et == 0 {
			et = 1
		}
		byExchange[et] = append(byExchange[et], t)
	}
	c.mu.Unlock()

	// A fresh correlation id per message, not a timestamp suffix: under a
	// rapid reconnect storm a timestamp-suffix id can collide, a uuid can't.
	msg := subscribeMessage{CorrelationID: uuid.NewString(), Action: action}
	msg.Params.Mode = mode
	for et, toks := range byExchange {
		msg.Params.TokenList = append(msg.Params.TokenList, tokenGroup{ExchangeType: et, Tokens: toks})
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, encoded)
}
