/**
 * @description
 * WebSocket client for the external market-data feed.
 * Manages the persistent connection, symbol subscriptions and keep-alive.
 *
 * Key features:
 * - Automatic reconnection with exponential backoff.
 * - Resubscribes to every tracked symbol after a reconnect.
 * - Thread-safe writing.
 * - Accepts single ticks or JSON arrays of ticks.
 *
 * @dependencies
 * - github.com/gorilla/websocket
 * - backend/internal/pricing: Quote
 */

package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stocky-project/backend/internal/logger"
	"github.com/stocky-project/backend/internal/pricing"
)

const (
	WriteWait         = 10 * time.Second
	PongWait          = 60 * time.Second
	PingPeriod        = (PongWait * 9) / 10
	MaxConnectRetries = 5
	maxMessageSize    = 1 << 20
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("feed client closed")

// Handler consumes one decoded tick.
type Handler func(ctx context.Context, q pricing.Quote) error

// SubscriptionMessage asks the feed to stream ticks for Symbols.
type SubscriptionMessage struct {
	Type    string   `json:"type"` // "subscribe"
	Symbols []string `json:"symbols"`
}

type Client struct {
	url       string
	conn      *websocket.Conn
	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	handler   Handler

	// subscriptions holds every symbol tracked so far
	subscriptions map[string]struct{}
	subMu         sync.Mutex

	// reconnecting prevents multiple simultaneous reconnection attempts
	reconnecting bool
	reconnectMu  sync.Mutex

	initialBackoff time.Duration
}

func NewClient(url string, handler Handler) *Client {
	return &Client{
		url:            url,
		handler:        handler,
		done:           make(chan struct{}),
		subscriptions:  make(map[string]struct{}),
		initialBackoff: time.Second,
	}
}

// Connect establishes the WebSocket connection and starts the read loop
func (c *Client) Connect(ctx context.Context) error {
	return c.connectWithRetry(ctx)
}

func (c *Client) connectWithRetry(ctx context.Context) error {
	var err error
	backoff := c.initialBackoff

	for i := 0; i < MaxConnectRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		default:
		}

		logger.Info("Connecting to price feed: %s (Attempt %d)", c.url, i+1)
		var conn *websocket.Conn
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			logger.Info("Connected to price feed")

			// Resubscribe if we have existing subscriptions (reconnection scenario)
			if symbols := c.trackedSymbols(); len(symbols) > 0 {
				if err := c.sendSubscribe(symbols); err != nil {
					logger.Warn("price feed resubscribe failed: %v", err)
				}
			}

			go c.readLoop(ctx, conn)
			go c.pingLoop(ctx, conn)
			return nil
		}

		logger.Warn("Failed to connect to price feed: %v. Retrying in %v...", err, backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", MaxConnectRetries, err)
}

// Subscribe adds symbols to the tracking list and sends the subscription message
func (c *Client) Subscribe(symbols []string) error {
	var fresh []string
	c.subMu.Lock()
	for _, s := range symbols {
		if _, ok := c.subscriptions[s]; !ok {
			c.subscriptions[s] = struct{}{}
			fresh = append(fresh, s)
		}
	}
	c.subMu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	return c.sendSubscribe(fresh)
}

func (c *Client) trackedSymbols() []string {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]string, 0, len(c.subscriptions))
	for s := range c.subscriptions {
		out = append(out, s)
	}
	return out
}

func (c *Client) sendSubscribe(symbols []string) error {
	return c.WriteJSON(SubscriptionMessage{Type: "subscribe", Symbols: symbols})
}

// WriteJSON sends a JSON message to the websocket thread-safely
func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.conn.WriteJSON(v)
}

// Close gracefully closes the connection
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()

		// Trigger reconnection if context is not done and client is not closed
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		c.reconnectMu.Lock()
		if c.reconnecting {
			c.reconnectMu.Unlock()
			return
		}
		c.reconnecting = true
		c.reconnectMu.Unlock()

		logger.Warn("Price feed connection lost, reconnecting...")
		go func() {
			defer func() {
				c.reconnectMu.Lock()
				c.reconnecting = false
				c.reconnectMu.Unlock()
			}()
			if err := c.connectWithRetry(ctx); err != nil && !errors.Is(err, ErrClosed) {
				logger.Error("Price feed reconnection failed: %v", err)
			}
		}()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Price feed read error: %v", err)
			}
			return
		}

		// Ticks are applied in arrival order; the store ignores older quotes anyway.
		if err := c.handleMessage(ctx, message); err != nil {
			logger.Warn("Error handling price feed message: %v", err)
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != conn {
				c.mu.Unlock()
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(WriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleMessage decodes a tick (or a batch of ticks) and passes each to the handler.
func (c *Client) handleMessage(ctx context.Context, msg []byte) error {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return nil
	}

	switch msg[0] {
	case '{':
	case '[':
		var batch []json.RawMessage
		if err := json.Unmarshal(msg, &batch); err != nil {
			return fmt.Errorf("failed to parse batched ticks: %w", err)
		}
		for _, raw := range batch {
			if err := c.handleMessage(ctx, raw); err != nil {
				logger.Warn("price feed batch item failed: %v", err)
			}
		}
		return nil
	default:
		text := strings.ToUpper(string(msg))
		if text != "PING" && text != "PONG" {
			logger.Debug("price feed ignoring non-JSON frame: %s", text)
		}
		return nil
	}

	var q pricing.Quote
	if err := json.Unmarshal(msg, &q); err != nil {
		return fmt.Errorf("failed to parse tick: %w", err)
	}
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Symbol == "" || !q.Price.IsPositive() {
		// Control messages such as subscription acks carry no price
		return nil
	}
	if q.AsOf.IsZero() {
		q.AsOf = time.Now().UTC()
	}
	return c.handler(ctx, q)
}
