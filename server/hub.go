package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// ErrSessionNotConnected is returned when an outbound message targets a
// session with no live websocket connection.
var ErrSessionNotConnected = errors.New("session not connected")

// outboundFrame is one bot message pushed to the client. Choice marks the
// yes/no affordance.
type outboundFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Choice bool   `json:"choice,omitempty"`
}

type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeFrame(frame outboundFrame) error {
	payload, err := sonic.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Hub routes outbound messages to the websocket connection of each session.
// It implements flow.Sender.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*conn
}

func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]*conn),
	}
}

func (h *Hub) register(sessionID string, ws *websocket.Conn) *conn {
	c := &conn{ws: ws}
	h.mu.Lock()
	h.conns[sessionID] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(sessionID string, c *conn) {
	h.mu.Lock()
	if h.conns[sessionID] == c {
		delete(h.conns, sessionID)
	}
	h.mu.Unlock()
}

func (h *Hub) lookup(sessionID string) (*conn, bool) {
	h.mu.RLock()
	c, ok := h.conns[sessionID]
	h.mu.RUnlock()
	return c, ok
}

func (h *Hub) SendText(ctx context.Context, sessionID, text string) error {
	return h.send(sessionID, outboundFrame{Type: "message", Text: text})
}

func (h *Hub) SendChoice(ctx context.Context, sessionID, text string) error {
	return h.send(sessionID, outboundFrame{Type: "message", Text: text, Choice: true})
}

func (h *Hub) send(sessionID string, frame outboundFrame) error {
	c, ok := h.lookup(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotConnected, sessionID)
	}
	return c.writeFrame(frame)
}
