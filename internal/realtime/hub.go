package realtime

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yourusername/competition-api/internal/events"
)

// Hub fans engine events out to websocket subscribers. It is intentionally a
// single broadcast domain: clients receive every event and filter client-side.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	upgrader websocket.Upgrader
}

// NewHub creates a hub; call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is token-guarded; origin checks are the proxy's job.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run processes registrations and broadcasts until Close.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("[Realtime] client registered (user %d), %d connected", client.UserID, len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("[Realtime] client unregistered (user %d), %d connected", client.UserID, len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop the connection rather than block
					// the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Close shuts the hub down and disconnects every client.
func (h *Hub) Close() {
	close(h.done)
}

// HandleEvent is the dispatcher listener: it serializes the event and queues
// it for broadcast. Safe to call from any goroutine.
func (h *Hub) HandleEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Realtime] failed to marshal event %s: %v", event.Kind, err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("[Realtime] broadcast buffer full, dropping event %s", event.Kind)
	}
}

// HandleConnection upgrades the request and attaches the client to the hub.
// The caller's identity, when authenticated, is read from the gin context.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Realtime] upgrade failed: %v", err)
		return
	}

	var userID uint
	if v, exists := c.Get("user_id"); exists {
		userID = v.(uint)
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, clientBufferSize),
		UserID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
