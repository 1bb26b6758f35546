package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codewired/razorwire/internal/hub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Streams are one-way, so
	// inbound frames are control traffic only.
	maxMessageSize = 512
)

// client bridges one WebSocket connection to one subscription.
//
// readPump discards inbound frames and detects disconnects; writePump
// drains the subscription and keeps the connection alive with pings.
// Whichever pump exits first triggers unsubscription and closes the
// connection; close is safe to reach from both.
type client struct {
	conn *websocket.Conn
	sub  *hub.Subscription

	closeOnce sync.Once
	onClose   func()
}

func newClient(conn *websocket.Conn, sub *hub.Subscription, onClose func()) *client {
	return &client{
		conn:    conn,
		sub:     sub,
		onClose: onClose,
	}
}

func (c *client) start() {
	go c.writePump()
	go c.readPump()
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
		_ = c.conn.Close()
	})
}

// readPump consumes the connection until the peer goes away.
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("subscription_id", c.sub.ID()).Msg("websocket read error")
			}
			return
		}
		// Inbound data frames are ignored; streams are server-push only.
	}
}

// writePump forwards subscription messages to the connection, one text
// frame per message.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
		c.close()
	}()

	for {
		select {
		case msg, ok := <-c.sub.Messages():
			if !ok {
				// Subscription completed hub-side.
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				log.Debug().Err(err).Str("subscription_id", c.sub.ID()).Msg("write error")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("subscription_id", c.sub.ID()).Msg("ping error")
				return
			}
		}
	}
}
