package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/internal/hub"
	"github.com/pullsense/pullsense/pkg/logger"
)

// upgrader relies on the CORS middleware for origin policy; the upgrade
// itself accepts any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler upgrades clients onto the notification hub
type WSHandler struct {
	hub *hub.Hub
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(h *hub.Hub) *WSHandler {
	return &WSHandler{hub: h}
}

// HandleWS handles GET /ws
func (h *WSHandler) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	conn := hub.NewWSConn(ws)
	h.hub.Register(conn)
	go conn.ReadLoop(h.hub)
}
