package handlers

import (
	"net/http"

	"github.com/CrowderSoup/taskpulse/services"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler upgrades authenticated requests and attaches them to the
// notification hub.
type WebSocketHandler struct {
	hub      *services.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWebSocketHandler allows the given origins; "*" or an empty list allows any.
func NewWebSocketHandler(hub *services.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		log: logger,
	}
}

// HandleWebSocket upgrades the HTTP connection to a WebSocket connection
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Warn("websocket upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}

	// A user may hold several connections, one per tab or device
	client := services.NewClient(h.hub, conn, user.ID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
