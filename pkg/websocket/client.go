package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Client is a single live connection of a user. One user may hold any
// number of clients at once (tabs, devices); every one of them receives
// the broadcasts addressed to that user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	UserID uint64

	// alive is cleared by each heartbeat tick and set back by the pong
	// handler; a client that stays cleared for a full interval is reaped.
	alive atomic.Bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uint64) *Client {
	c := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.sendBufferSize),
		UserID: userID,
	}
	c.alive.Store(true)
	return c
}

// enqueue hands a serialized frame to the write pump without blocking.
// A full buffer means the client stopped draining and is dropped.
func (c *Client) enqueue(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed",
					zap.Uint64("userID", c.UserID),
					zap.Error(err),
				)
			}
			break
		}
		c.hub.handleFrame(c, raw)
	}
}

func (c *Client) WritePump() {
	defer func() { _ = c.conn.Close() }()

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	// send channel closed: the hub removed us, say goodbye properly
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
