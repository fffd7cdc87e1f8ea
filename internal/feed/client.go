// Package feed ingests the upstream chat-classification stream over
// WebSocket and turns wire frames into engine events.
package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"flowstate/internal/domain"
	"flowstate/internal/metrics"
	"flowstate/pkg/errors"
	"flowstate/pkg/logger"
	"flowstate/pkg/reconnect"
)

const (
	defaultDialTimeout = 10 * time.Second
	writeTimeout       = 5 * time.Second
	readTimeout        = 10 * time.Second
	statsEvery         = 500 // frames between stats lines
)

// Config configures the upstream client
type Config struct {
	URL         string
	StreamID    string // stream to subscribe to after connecting
	DialTimeout time.Duration
	Reconnect   reconnect.Config
}

// Handler receives each decoded event envelope
type Handler func(env domain.Envelope) error

// Client maintains one supervised connection to the upstream backend.
// Decoded events flow to the handler in connection order.
type Client struct {
	cfg     Config
	handler Handler
	log     *logger.Logger
	sup     *reconnect.Manager

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	framesTotal  atomic.Int64
	framesBroken atomic.Int64
}

// NewClient creates a client; Run establishes the connection
func NewClient(cfg Config, handler Handler, log *logger.Logger) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	l := log.With("component", "feed", "url", cfg.URL)
	return &Client{
		cfg:     cfg,
		handler: handler,
		log:     l,
		sup:     reconnect.NewManager(cfg.Reconnect, l),
	}
}

// Run connects and pumps frames until the context is canceled, reconnecting
// through the supervisor on any connection loss
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.connect(ctx); err != nil {
			metrics.FeedReconnects.WithLabelValues("failed").Inc()
			if errors.Is(err, errors.ErrFeedReconnectFailed) || errors.Is(err, errors.ErrFeedMaxReconnectAttempts) {
				c.log.Error("Giving up on upstream feed", "error", err)
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		metrics.FeedReconnects.WithLabelValues("success").Inc()

		err := c.readLoop(ctx)
		c.closeConn()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("Feed connection lost", "error", err)
	}
}

// IsConnected reports whether the client currently holds a live connection
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stats exposes supervisor state for health reporting
func (c *Client) Stats() reconnect.Stats {
	return c.sup.GetStats()
}

// connect dials and subscribes through the supervisor's backoff
func (c *Client) connect(ctx context.Context) error {
	return c.sup.Attempt(ctx, func(ctx context.Context) error {
		dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}

		conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			return errors.Wrap(err, "dial upstream feed")
		}

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()

		if err := c.subscribe(); err != nil {
			c.closeConn()
			return errors.Wrap(errors.ErrFeedSubscriptionFailed, err.Error())
		}

		c.log.Info("✓ Feed connected", "stream", c.cfg.StreamID)
		return nil
	})
}

// subscribe announces the stream this client wants to follow
func (c *Client) subscribe() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return errors.ErrFeedNotConnected
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(map[string]string{
		"type":    "SUBSCRIBE",
		"videoId": c.cfg.StreamID,
	})
}

// readLoop pumps frames until the connection breaks or ctx ends
func (c *Client) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return err
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.Wrap(err, "feed closed by upstream")
			}
			if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
				if c.sup.Stale() {
					return errors.Wrap(errors.ErrTimeout, "feed heartbeat expired")
				}
				continue
			}
			return errors.Wrap(err, "feed read")
		}

		c.sup.NoteActivity()
		c.dispatch(raw)
	}
}

// dispatch decodes one frame and forwards events to the handler
func (c *Client) dispatch(raw []byte) {
	total := c.framesTotal.Add(1)

	env, ctl, err := DecodeFrame(raw)
	switch {
	case err != nil:
		c.framesBroken.Add(1)
		metrics.FeedFrames.WithLabelValues("unknown", "invalid").Inc()
		c.log.Debug("Dropping undecodable frame", "error", err)

	case ctl != nil:
		metrics.FeedFrames.WithLabelValues(ctl.Type, "decoded").Inc()
		c.handleControl(ctl)

	default:
		metrics.FeedFrames.WithLabelValues(string(env.Kind), "decoded").Inc()
		if err := c.handler(*env); err != nil {
			c.framesBroken.Add(1)
			c.log.Debug("Handler rejected event", "kind", env.Kind, "error", err)
		}
	}

	if total%statsEvery == 0 {
		c.log.Info("📊 Feed stats",
			"frames", humanize.Comma(total),
			"broken", humanize.Comma(c.framesBroken.Load()),
		)
	}
}

func (c *Client) handleControl(ctl *Control) {
	switch ctl.Type {
	case frameConnected:
		c.log.Info("Upstream handshake complete", "message", ctl.Message)
	case frameSubscribed:
		c.log.Info("✅ Subscribed to stream", "stream", ctl.StreamID)
	case frameUnsubscribed:
		c.log.Info("Unsubscribed from stream")
	case frameError:
		c.log.Warn("Upstream reported error", "message", ctl.Message)
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		// Best effort: tell the backend we are leaving the stream before
		// closing. On a broken connection both writes simply fail.
		_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.conn.WriteJSON(map[string]string{
			"type":    "UNSUBSCRIBE",
			"videoId": c.cfg.StreamID,
		})
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
