package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// WebSocket constants.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeLocation    = "location"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeNavigate    = "navigate"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// ChannelSessionChanged carries a SessionView after every transition.
	ChannelSessionChanged = "session.changed"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 64
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSLocationPayload reports the path a client is showing.
type WSLocationPayload struct {
	Path string `json:"path"`
}

// WSNavigatePayload tells a client to leave its current path.
type WSNavigatePayload struct {
	Target  string `json:"target"`
	Replace bool   `json:"replace"`
	Rule    string `json:"rule"`
}

// Hub manages WebSocket connections, broadcasts session changes and runs
// the access gate for every client that reported a location.
type Hub struct {
	cfg        config.WebSocketConfig
	logger     *logging.Logger
	table      gate.Table
	snapshot   func() session.Snapshot
	onRedirect RedirectFunc
	clients    map[*WSClient]struct{}
	mu         sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	id            string
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	observer      *gate.Observer
	subscriptions map[string]struct{}
	path          string
	mu            sync.RWMutex
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// withWSDefaults fills unset WebSocket settings.
func withWSDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 8192
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10
	}
	return cfg
}

// NewHub creates a new WebSocket hub. snapshot supplies the current session
// when a client reports its location; onRedirect may be nil.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, table gate.Table, snapshot func() session.Snapshot, onRedirect RedirectFunc) *Hub {
	return &Hub{
		cfg:        withWSDefaults(cfg),
		logger:     logger.With("component", "ws"),
		table:      table,
		snapshot:   snapshot,
		onRedirect: onRedirect,
		clients:    make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "client_id", client.id, "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes the
// send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "client_id", client.id, "clients", h.ClientCount())
}

// SessionChanged broadcasts snap and re-checks every client's location.
// It is meant to be registered with Sessions.Subscribe.
func (h *Hub) SessionChanged(snap session.Snapshot) {
	h.Broadcast(ChannelSessionChanged, NewSessionView(snap))
	for _, client := range h.snapshotClients() {
		client.checkLocation(snap)
	}
}

// Broadcast sends an event to all clients subscribed to the given channel.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	sentCount := 0
	for _, client := range h.snapshotClients() {
		if client.isSubscribed(channel) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", sentCount)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// snapshotClients copies the client list so no hub lock is held while
// per-client locks are taken.
func (h *Hub) snapshotClients() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
// Browsers always send Origin; only same-host origins are accepted.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := s.hub.newClient(conn)
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) newClient(conn *websocket.Conn) *WSClient {
	return &WSClient{
		id:            uuid.NewString(),
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		observer:      gate.NewObserver(h.table),
		subscriptions: make(map[string]struct{}),
	}
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "client_id", c.id, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(message)
	}
}

// writePump writes messages to the WebSocket connection.
func (c *WSClient) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(msg.Payload, &sub); err != nil {
			c.sendError(msg.ID, "invalid "+msg.Type+" payload")
			return
		}
		c.setSubscribed(sub.Channels, msg.Type == WSTypeSubscribe)
		key := "subscribed"
		if msg.Type == WSTypeUnsubscribe {
			key = "unsubscribed"
		}
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{key: sub.Channels})
	case WSTypeLocation:
		var loc WSLocationPayload
		if err := json.Unmarshal(msg.Payload, &loc); err != nil || loc.Path == "" {
			c.sendError(msg.ID, "invalid location payload")
			return
		}
		c.mu.Lock()
		c.path = loc.Path
		c.mu.Unlock()
		c.checkLocation(c.hub.snapshot())
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// checkLocation runs the gate for the client's path and sends a navigate
// command when the path is forbidden.
func (c *WSClient) checkLocation(snap session.Snapshot) {
	c.mu.RLock()
	p := c.path
	c.mu.RUnlock()
	if p == "" {
		return
	}

	d := c.observer.Check(snap, p)
	if !d.Navigate {
		return
	}
	if c.hub.onRedirect != nil {
		c.hub.onRedirect(d, p)
	}
	c.sendResponse("", WSTypeNavigate, WSNavigatePayload{
		Target:  d.Target,
		Replace: d.Replace,
		Rule:    string(d.Rule),
	})
}

func (c *WSClient) setSubscribed(channels []string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if on {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
}

// isSubscribed checks if the client is subscribed to a channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend queues data unless the client is gone or its buffer is full.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		// send was closed by Unregister between the snapshot and this call.
		recover() //nolint:errcheck // closed channel
	}()
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("websocket client buffer full, dropping message", "client_id", c.id)
	}
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
