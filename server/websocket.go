package server

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/andklim/insurebot/flow"
	"github.com/andklim/insurebot/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundFrame is one user event received over the websocket. Document bytes
// travel base64-encoded.
type inboundFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Accepted bool   `json:"accepted,omitempty"`
	Document string `json:"document,omitempty"`
	Filename string `json:"filename,omitempty"`
	Class    string `json:"class,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session", sessionID, "err", err)
		return
	}

	c := h.hub.register(sessionID, ws)
	defer func() {
		h.hub.unregister(sessionID, c)
		_ = ws.Close()
	}()
	slog.Info("session connected", "session", sessionID)

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("websocket read ended", "session", sessionID, "err", err)
			}
			return
		}

		var frame inboundFrame
		if err := sonic.Unmarshal(payload, &frame); err != nil {
			_ = c.writeFrame(outboundFrame{Type: "error", Text: "invalid frame"})
			continue
		}

		ev, err := frame.toEvent()
		if err != nil {
			_ = c.writeFrame(outboundFrame{Type: "error", Text: err.Error()})
			continue
		}

		// Events are dispatched synchronously: the read loop itself keeps one
		// in-flight event per connection.
		if err := h.flow.HandleEvent(r.Context(), sessionID, ev); err != nil {
			slog.Error("event handling failed", "session", sessionID, "kind", frame.Type, "err", err)
		}
	}
}

func (f inboundFrame) toEvent() (flow.Event, error) {
	switch f.Type {
	case "start":
		return flow.StartEvent(), nil
	case "text":
		return flow.TextEvent(f.Text), nil
	case "choice":
		return flow.ChoiceEvent(f.Accepted), nil
	case "document", "photo":
		data, err := base64.StdEncoding.DecodeString(f.Document)
		if err != nil {
			return flow.Event{}, errors.New("document payload is not valid base64")
		}
		return flow.DocumentEvent(data, f.Filename, types.DocumentClass(f.Class)), nil
	}
	return flow.Event{}, errors.New("unknown frame type " + f.Type)
}
