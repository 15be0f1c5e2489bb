package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/competition-api/internal/realtime"
)

// WSHandler serves the realtime event stream endpoint.
type WSHandler struct {
	hub *realtime.Hub
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleConnection handles GET /ws. The connection receives every engine
// event as a JSON frame.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	h.hub.HandleConnection(c)
}
