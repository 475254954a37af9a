// Package relay owns the single realtime channel to the external chat relay.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/shopstack-oss/shopstack/support-bridge/internal/domain"
	"github.com/shopstack-oss/shopstack/support-bridge/internal/wire"
)

// ErrNotConnected is returned by Emit while the channel is down. Callers
// that must not create local state (optimistic sends) check IsConnected
// before acting.
var ErrNotConnected = errors.New("relay: not connected")

const writeTimeout = 10 * time.Second

// Handler processes one inbound frame. Handlers run to completion on the
// read loop before the next frame is decoded.
type Handler func(data json.RawMessage)

// Client is the process-scoped connection manager. At most one websocket
// exists at a time; Connect is idempotent and Disconnect is a no-op once
// the channel is released.
type Client struct {
	url    string
	bus    domain.EventBus
	logger zerolog.Logger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	mu        sync.Mutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	connected bool
}

func NewClient(url string, bus domain.EventBus, logger zerolog.Logger) *Client {
	return &Client{
		url:      url,
		bus:      bus,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for an inbound event type. The registry
// holds exactly one handler per event; re-registration replaces rather
// than duplicates.
func (c *Client) Handle(event string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = h
}

// ResetHandlers clears the registry so a fresh subscription pass cannot
// stack handlers on top of a previous one.
func (c *Client) ResetHandlers() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = make(map[string]Handler)
}

// Connect dials the relay. If a channel already exists it returns
// immediately without creating a second one.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}

	// The channel outlives the dial context; it is torn down by
	// Disconnect or a read failure, not by the caller.
	lifeCtx, cancel := context.WithCancel(context.Background())

	c.conn = conn
	c.cancel = cancel
	c.connected = true

	go c.readLoop(lifeCtx, conn)

	c.logger.Info().Str("url", c.url).Msg("connected to chat relay")
	c.bus.Publish(domain.ConnectionStatusEvent{Connected: true, EventTime: time.Now()})

	return nil
}

// Disconnect releases the channel. Subsequent calls are no-ops.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
	c.conn = nil
	c.connected = false

	c.bus.Publish(domain.ConnectionStatusEvent{Connected: false, Reason: "disconnect requested", EventTime: time.Now()})
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit writes one frame to the relay. While disconnected it logs and
// returns ErrNotConnected; it never panics into callers.
func (c *Client) Emit(ctx context.Context, event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Warn().Str("event", event).Msg("emit dropped: channel is down")
		return ErrNotConnected
	}

	env, err := wire.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("emit failed")
		return err
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				ctx.Err() == nil {
				c.logger.Warn().Err(err).Msg("relay channel lost")
			}
			c.markDisconnected(conn, "channel closed")
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("discarding undecodable frame")
			continue
		}

		c.handlersMu.RLock()
		h := c.handlers[env.Event]
		c.handlersMu.RUnlock()

		if h == nil {
			c.logger.Debug().Str("event", env.Event).Msg("no handler for inbound event")
			continue
		}

		// Handlers run synchronously so store mutations complete before
		// the next frame is processed.
		h(env.Data)
	}
}

// markDisconnected flips the connectivity flag after a read failure. The
// loss is not fatal: buffered state is preserved and the user may retry
// manually once reconnected.
func (c *Client) markDisconnected(conn *websocket.Conn, reason string) {
	c.mu.Lock()
	if c.conn != conn {
		// Disconnect already ran, or a newer channel exists.
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, reason)
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	c.bus.Publish(domain.ConnectionStatusEvent{Connected: false, Reason: reason, EventTime: time.Now()})
}
