package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/livetemplate/cssplay/internal/playground"
)

// Websocket actions.
const (
	ActionSync   = "sync"
	ActionEdit   = "edit"
	ActionToggle = "toggle"
	ActionState  = "state"
	ActionError  = "error"
)

const (
	// maxMessageSize bounds an incoming message; sources are small.
	maxMessageSize = 1 << 20
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// MessageEnvelope is a websocket message in either direction.
type MessageEnvelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type editData struct {
	Source string `json:"source"`
}

type toggleData struct {
	Key string `json:"key"`
}

type errorData struct {
	Message string `json:"message"`
}

// conn is one browser tab. Writes are serialized since gorilla connections
// allow a single concurrent writer.
type conn struct {
	clientID string
	ws       *websocket.Conn
	mu       sync.Mutex
}

func (c *conn) send(env MessageEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// WebSocketHandler drives playground sessions over websocket connections.
type WebSocketHandler struct {
	sessions *Sessions
	debug    bool

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewWebSocketHandler creates a handler serving sessions.
func NewWebSocketHandler(sessions *Sessions, debug bool) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		debug:    debug,
		conns:    make(map[*conn]struct{}),
	}
}

// ServeHTTP upgrades the request and serves messages until the peer leaves.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := requestClientID(r)
	respHeader := http.Header{}
	if !ok {
		id = uuid.NewString()
		respHeader.Add("Set-Cookie", clientCookie(id).String())
	}

	ws, err := upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c := &conn{clientID: id, ws: ws}
	session := h.sessions.acquire(id)
	h.register(c)
	defer func() {
		h.unregister(c)
		h.sessions.release(id)
		ws.Close()
	}()

	if h.debug {
		log.Printf("[WS] Client %s connected (%d connections)", id, h.ConnectionCount())
	}

	ctx := r.Context()
	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			break
		}
		h.handleMessage(ctx, c, session, message)
	}

	if h.debug {
		log.Printf("[WS] Client %s disconnected", id)
	}
}

// handleMessage applies one client message and answers with the resulting
// state. Edits and toggles are also pushed to the client's other tabs.
func (h *WebSocketHandler) handleMessage(ctx context.Context, c *conn, s *playground.Session, message []byte) {
	var env MessageEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Printf("[WS] Failed to parse message: %v", err)
		h.sendError(c, "invalid message")
		return
	}

	var (
		snap      playground.Snapshot
		broadcast bool
	)
	switch env.Action {
	case ActionSync:
		snap = s.Boot(ctx)

	case ActionEdit:
		var d editData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			h.sendError(c, "invalid edit payload")
			return
		}
		snap = s.Edit(ctx, d.Source)
		broadcast = true

	case ActionToggle:
		var d toggleData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			h.sendError(c, "invalid toggle payload")
			return
		}
		var err error
		snap, err = s.Click(ctx, d.Key)
		if err != nil {
			h.sendError(c, err.Error())
			return
		}
		broadcast = true

	default:
		log.Printf("[WS] Unknown action: %s", env.Action)
		h.sendError(c, "unknown action: "+env.Action)
		return
	}

	if h.debug {
		log.Printf("[WS] %s from %s -> status=%q view=%s", env.Action, c.clientID, snap.Status, snap.View)
	}

	if broadcast {
		h.BroadcastTo(c.clientID, snap)
		return
	}
	h.sendState(c, snap)
}

func (h *WebSocketHandler) sendState(c *conn, snap playground.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[WS] Failed to marshal state: %v", err)
		return
	}
	if err := c.send(MessageEnvelope{Action: ActionState, Data: data}); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("[WS] Failed to send state: %v", err)
	}
}

func (h *WebSocketHandler) sendError(c *conn, msg string) {
	data, _ := json.Marshal(errorData{Message: msg})
	if err := c.send(MessageEnvelope{Action: ActionError, Data: data}); err != nil {
		log.Printf("[WS] Failed to send error: %v", err)
	}
}

// BroadcastTo sends snap to every connection of clientID.
func (h *WebSocketHandler) BroadcastTo(clientID string, snap playground.Snapshot) {
	h.mu.RLock()
	targets := make([]*conn, 0, 1)
	for c := range h.conns {
		if c.clientID == clientID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendState(c, snap)
	}
}

func (h *WebSocketHandler) register(c *conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *WebSocketHandler) unregister(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// ConnectionCount returns the number of open connections.
func (h *WebSocketHandler) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// CloseAll closes every open connection.
func (h *WebSocketHandler) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.mu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.ws.Close()
	}
}
