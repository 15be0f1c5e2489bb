package realtime

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Write deadline for one outgoing message.
	writeWait = 10 * time.Second

	// Deadline for receiving the next pong from the client.
	pongWait = 30 * time.Second

	// Ping cadence, must be below pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512

	clientBufferSize = 128
)

// Client wraps one subscriber connection. Clients are read-only consumers of
// engine events; inbound frames beyond control messages are discarded.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// UserID is zero for unauthenticated spectators.
	UserID uint
}

// readPump drains the connection so control frames are processed and closes
// trigger unregistration.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Realtime] unexpected close from user %d: %v", c.UserID, err)
			}
			return
		}
	}
}

// writePump forwards queued events to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
