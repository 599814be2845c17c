// Package server exposes the chat transport: a session endpoint plus a
// websocket carrying inbound user events and outbound bot messages.
package server

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/andklim/insurebot/flow"
)

// Handler wires HTTP routes to the conversation flow.
type Handler struct {
	flow *flow.Flow
	hub  *Hub
}

func New(f *flow.Flow, hub *Hub) *Handler {
	return &Handler{
		flow: f,
		hub:  hub,
	}
}

// NewRouter builds the full HTTP surface.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		h.RegisterRoutes(api)
	})

	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// handleCreateSession mints a session identifier. The session itself is
// created lazily on the first event.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusCreated, map[string]string{"id": uuid.NewString()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, err := sonic.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = w.Write(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
