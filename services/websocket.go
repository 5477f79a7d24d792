package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings, so inbound frames stay small
	maxMessageSize = 4 * 1024

	sendBuffer  = 256
	queueBuffer = 1024
)

// Client represents a connected WebSocket client
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewClient builds a client for conn owned by userID.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		UserID: userID,
	}
}

// ReadPump reads from the connection until it fails. Only pings are
// answered; the server pushes, clients don't publish.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read failed", zap.String("user_id", c.UserID), zap.Error(err))
			}
			break
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Hub.log.Debug("ignoring malformed websocket message", zap.String("user_id", c.UserID), zap.Error(err))
			continue
		}

		// Replies go through the hub, which owns Send and may already have
		// closed it.
		if msg.Type == "ping" {
			c.Hub.reply(c, WebSocketMessage{
				Type: "pong",
				Data: map[string]string{"timestamp": time.Now().UTC().Format(time.RFC3339)},
			})
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte("\n"))
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type envelope struct {
	client  *Client // set for a reply to a single connection
	userID  string  // empty means every client
	payload []byte
}

// Hub maintains the set of active clients and routes messages to them.
// Only the Run goroutine touches the client set.
type Hub struct {
	clients    map[*Client]bool
	queue      chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *zap.Logger
}

// NewHub creates a new hub instance
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		queue:      make(chan envelope, queueBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logger,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser queues msg for every connection owned by userID. Delivery is
// best effort: when the queue is full the message is dropped.
func (h *Hub) SendToUser(userID string, msg WebSocketMessage) {
	h.enqueue(userID, msg)
}

// Broadcast queues msg for every connected client.
func (h *Hub) Broadcast(msg WebSocketMessage) {
	h.enqueue("", msg)
}

// reply queues msg for one connection. It is delivered only while that
// connection is still registered.
func (h *Hub) reply(client *Client, msg WebSocketMessage) {
	h.push(envelope{client: client, userID: client.UserID}, msg)
}

func (h *Hub) enqueue(userID string, msg WebSocketMessage) {
	h.push(envelope{userID: userID}, msg)
}

func (h *Hub) push(env envelope, msg WebSocketMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	env.payload = payload

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.queue <- env:
	default:
		NotificationsDropped.Inc()
		h.log.Warn("websocket queue full, dropping message", zap.String("type", msg.Type), zap.String("user_id", env.userID))
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			close(client.Send)
			delete(h.clients, client)
		}
		WebsocketClients.Set(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			WebsocketClients.Inc()
			h.log.Debug("websocket client connected", zap.String("user_id", client.UserID))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.log.Debug("websocket client disconnected", zap.String("user_id", client.UserID))
			}
		case env := <-h.queue:
			if env.client != nil {
				if h.clients[env.client] {
					h.deliver(env.client, env.payload)
				}
				continue
			}
			for client := range h.clients {
				if env.userID != "" && client.UserID != env.userID {
					continue
				}
				h.deliver(client, env.payload)
			}
		}
	}
}

func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
	default:
		// Client's send buffer is full, assume disconnected
		h.log.Warn("websocket send buffer full, removing client", zap.String("user_id", client.UserID))
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	WebsocketClients.Dec()
}
