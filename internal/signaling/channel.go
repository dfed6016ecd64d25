package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/martian56/videoo-call/internal/core"
)

const writeWait = 5 * time.Second

// Channel owns one logical websocket connection to the meeting server.
// On unexpected closure it redials after a fixed delay until the context is
// cancelled, preserving the client identity (the URL embeds it). Send is
// fire-and-forget: while the channel is closed it drops the message instead
// of queueing, because a queued stale offer or answer could arrive after a
// new session epoch.
type Channel struct {
	url            string
	reconnectDelay time.Duration

	handler  func(Envelope)
	onOpen   func(reconnect bool)
	onClosed func()

	mu        sync.RWMutex
	conn      *websocket.Conn
	send      chan []byte
	open      bool
	connected bool // at least one successful dial
	closing   bool
}

func NewChannel(url string, reconnectDelay time.Duration) *Channel {
	return &Channel{url: url, reconnectDelay: reconnectDelay}
}

// OnEnvelope sets the inbound message handler. Must be set before Connect.
func (c *Channel) OnEnvelope(handler func(Envelope)) { c.handler = handler }

// OnOpen sets the callback invoked after every successful (re)connect.
// The server forgets everything about the previous socket, so the caller
// must re-announce presence from this callback.
func (c *Channel) OnOpen(fn func(reconnect bool)) { c.onOpen = fn }

// OnClosed sets the callback invoked when the transport drops unexpectedly.
func (c *Channel) OnClosed(fn func()) { c.onClosed = fn }

// Connect dials the server and starts the read/write pumps. Subsequent
// reconnects are automatic; the first dial failing is returned to the
// caller so a bad URL or dead server surfaces at join time.
func (c *Channel) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return fmt.Errorf("signaling connect: %w", err)
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	reconnect := c.connected
	c.conn = conn
	// Fresh outbound queue per connection; nothing survives a reconnect.
	c.send = make(chan []byte, 32)
	c.open = true
	c.connected = true
	send := c.send
	c.mu.Unlock()

	log.Info().Str("module", "signaling").Str("url", c.url).Bool("reconnect", reconnect).Msg("channel open")

	go c.writePump(conn, send)
	go c.readPump(ctx, conn)

	if c.onOpen != nil {
		c.onOpen(reconnect)
	}
	return nil
}

// IsOpen reports whether the underlying transport is currently up.
func (c *Channel) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// Send marshals and enqueues one envelope. While the channel is closed it
// returns ErrChannelClosed and the message is gone; callers treat delivery
// as unreliable.
func (c *Channel) Send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("signaling send: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		log.Warn().Str("module", "signaling").Str("type", env.Type).Msg("send while closed, dropped")
		return core.ErrChannelClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().Str("module", "signaling").Str("type", env.Type).Msg("send queue full, dropped")
		return core.ErrChannelClosed
	}
}

// Close tears the channel down for good; no reconnect follows.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closing = true
	c.open = false
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Channel) writePump(conn *websocket.Conn, send chan []byte) {
	for data := range send {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Error().Err(err).Str("module", "signaling").Msg("writePump set deadline")
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signaling").Msg("writePump write error")
			return
		}
	}
}

func (c *Channel) readPump(ctx context.Context, conn *websocket.Conn) {
	defer c.teardown(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signaling").Msg("readPump read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "signaling").Msg("bad json, skipped")
			continue
		}
		if c.handler != nil {
			c.handler(env)
		}
	}
}

// teardown closes the dead connection and, unless the channel was closed
// deliberately or the context is done, schedules a redial.
func (c *Channel) teardown(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.open = false
		close(c.send)
		c.conn = nil
	}
	closing := c.closing
	c.mu.Unlock()
	_ = conn.Close()

	if closing || ctx.Err() != nil {
		log.Info().Str("module", "signaling").Msg("channel closed")
		return
	}

	log.Warn().Str("module", "signaling").Dur("delay", c.reconnectDelay).Msg("channel lost, reconnecting")
	if c.onClosed != nil {
		c.onClosed()
	}
	c.redialLoop(ctx)
}

func (c *Channel) redialLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay):
		}

		c.mu.RLock()
		closing := c.closing
		c.mu.RUnlock()
		if closing {
			return
		}

		if err := c.dial(ctx); err != nil {
			log.Warn().Err(err).Str("module", "signaling").Msg("redial failed, retrying")
			continue
		}
		return
	}
}
