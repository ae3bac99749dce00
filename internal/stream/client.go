package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leocder07/tavily-stock-research-sub002/internal/router"
)

// Connection states.
const (
	StateDisconnected int32 = iota
	StateConnecting
	StateConnected
)

// StateName returns a readable name for a connection state.
func StateName(s int32) string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

var errStaleConnection = errors.New("connection stale (no pong)")

// Config configures the push channel client.
type Config struct {
	URL                string
	Token              string        // Bearer token for the dial handshake
	HandshakeTimeout   time.Duration
	PingInterval       time.Duration
	PongTimeout        time.Duration // Max silence before the connection is considered stale
	WriteTimeout       time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:   10 * time.Second,
		PingInterval:       15 * time.Second,
		PongTimeout:        60 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
	}
}

// Stats contains push channel counters.
type Stats struct {
	Messages   int64 // Envelopes delivered to the handler
	Malformed  int64 // Frames dropped because they failed to decode
	Reconnects int64 // Successful reconnections after the first connect
}

// Handler receives each decoded envelope, in arrival order.
type Handler func(router.Envelope)

// Client is the push channel: one WebSocket connection with automatic
// reconnection.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	handler Handler

	state atomic.Int32

	mu       sync.Mutex
	conn     *websocket.Conn
	lastPong time.Time

	messages   atomic.Int64
	malformed  atomic.Int64
	reconnects atomic.Int64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a push channel client. handler must be non-nil.
func New(cfg Config, handler Handler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}

	return &Client{
		cfg:     cfg,
		logger:  logger,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start begins the connect/read/reconnect loop in the background.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.wg.Add(1)
		go c.run(ctx)
	})
}

// Close tears down the connection and stops reconnecting. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	c.wg.Wait()
	c.state.Store(StateDisconnected)
}

// State returns the current connection state.
func (c *Client) State() int32 {
	return c.state.Load()
}

// Stats returns current counters.
func (c *Client) Stats() Stats {
	return Stats{
		Messages:   c.messages.Load(),
		Malformed:  c.malformed.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// run connects and reads until closed, reconnecting with exponential
// backoff. The wait resets after each successful connect.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()
	defer c.state.Store(StateDisconnected)

	wait := c.cfg.ReconnectBaseDelay
	connectedBefore := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		c.state.Store(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			c.state.Store(StateDisconnected)
			c.logger.Warn("push channel connect failed",
				"url", c.cfg.URL,
				"retry_in", wait,
				"err", err,
			)

			// Jitter: wait * (0.5 to 1.5)
			sleep := wait/2 + time.Duration(rand.Int64N(int64(wait)))
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-time.After(sleep):
			}

			wait *= 2
			if wait > c.cfg.ReconnectMaxDelay {
				wait = c.cfg.ReconnectMaxDelay
			}
			continue
		}

		c.state.Store(StateConnected)
		wait = c.cfg.ReconnectBaseDelay
		if connectedBefore {
			c.reconnects.Add(1)
		}
		connectedBefore = true
		c.logger.Info("push channel connected", "url", c.cfg.URL)

		c.serve(ctx, conn)

		c.state.Store(StateDisconnected)

		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
			c.logger.Info("push channel disconnected, will reconnect")
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.lastPong = time.Now()
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	return conn, nil
}

// serve reads frames from one connection until it fails, with a
// heartbeat goroutine alongside. Returns once the connection is dead.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	heartbeatDone := make(chan struct{})
	var hb sync.WaitGroup
	hb.Add(1)
	go func() {
		defer hb.Done()
		c.heartbeat(conn, heartbeatDone)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case <-ctx.Done():
			default:
				c.logger.Debug("push channel read failed", "err", err)
			}
			break
		}

		var env router.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			c.malformed.Add(1)
			c.logger.Warn("dropping undecodable frame", "err", err)
			continue
		}

		c.messages.Add(1)
		c.handler(env)
	}

	close(heartbeatDone)
	conn.Close()
	hb.Wait()
}

// heartbeat pings the server and closes the connection when the peer
// has been silent past PongTimeout, which unblocks the read loop.
func (c *Client) heartbeat(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "err", err)
			}

			c.mu.Lock()
			silent := time.Since(c.lastPong)
			c.mu.Unlock()

			if silent > c.cfg.PongTimeout {
				c.logger.Warn("push channel stale, forcing reconnect",
					"silent", silent,
					"err", errStaleConnection,
				)
				conn.Close()
				return
			}
		}
	}
}
