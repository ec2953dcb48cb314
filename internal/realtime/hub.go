package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/AaronKurian/ChatApp/internal/metrics"
	"github.com/AaronKurian/ChatApp/internal/models"
)

// Event is the wire envelope for the live channel. The client announces its
// identity with {"type":"join","username":...}; the server pushes messages
// with {"type":"message","payload":{...}}.
type Event struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	Payload  *models.Message `json:"payload,omitempty"`
}

const (
	EventJoin    = "join"
	EventMessage = "message"
)

// Hub owns the lifecycle of live connections: accept, join announcement,
// delivery, disconnect. It keeps the presence registry consistent with the
// set of open connections.
//
// A connection that never announces a username stays open but unreachable
// for delivery; messages for its user simply fall back to push. No timeout
// is imposed on that state.
type Hub struct {
	presence *Presence
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client // connection id -> client
}

// NewHub creates a hub bound to the given presence registry.
func NewHub(presence *Presence, logger zerolog.Logger) *Hub {
	return &Hub{
		presence: presence,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The RPC boundary already runs permissive CORS; the live
			// channel matches it.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and runs its
// lifecycle until disconnect.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := newClient(uuid.NewString(), conn)
	h.register(client)

	h.logger.Info().Str("conn_id", client.ID).Str("remote_addr", r.RemoteAddr).Msg("client connected")

	// Prompt the client to announce its identity.
	if frame, err := json.Marshal(Event{Type: EventJoin}); err == nil {
		client.enqueue(frame)
	}

	go client.writePump()
	go h.readPump(client)
}

// register adds a client to the connection table.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

// unregister tears a connection down: removes its presence entry (keyed by
// connection id, so a stale close never evicts a fresh reconnect), drops it
// from the connection table and stops its goroutines. Idempotent.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()

	if !known {
		return
	}

	h.presence.Remove(c.ID)
	c.close()
	metrics.WSConnections.Dec()

	h.logger.Info().Str("conn_id", c.ID).Msg("client disconnected")
}

// readPump consumes inbound events until the connection drops.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("conn_id", c.ID).Msg("websocket read error")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			h.logger.Warn().Err(err).Str("conn_id", c.ID).Msg("malformed live event")
			continue
		}

		switch ev.Type {
		case EventJoin:
			if ev.Username == "" {
				continue
			}
			h.presence.Record(ev.Username, c.ID)
			h.logger.Info().Str("conn_id", c.ID).Str("username", ev.Username).Msg("user joined")
		default:
			// Unknown client events are ignored; the live channel is
			// server-push only beyond the join announcement.
		}
	}
}

// Emit queues a message event to the connection with the given id. Returns
// false when the connection is gone or its queue is full; there is no retry
// and no acknowledgement.
func (h *Hub) Emit(connID string, msg *models.Message) bool {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	frame, err := json.Marshal(Event{Type: EventMessage, Payload: msg})
	if err != nil {
		return false
	}
	return client.enqueue(frame)
}

// Shutdown closes every open connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
