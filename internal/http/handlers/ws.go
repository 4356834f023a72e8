package handlers

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/suze-ad/finetech/internal/conversation"
)

// wsInbound is what the widget sends over the socket.
type wsInbound struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// wsOutbound is what we send to the widget.
type wsOutbound struct {
	Type      string                           `json:"type"` // "message", "session", "history", "pong"
	Role      string                           `json:"role,omitempty"`
	Text      string                           `json:"text,omitempty"`
	SessionID string                           `json:"session_id,omitempty"`
	Timestamp string                           `json:"timestamp,omitempty"`
	Form      *conversation.FormState          `json:"form,omitempty"`
	Messages  []conversation.TranscriptMessage `json:"messages,omitempty"`
}

// HandleWebSocket upgrades to WebSocket and runs the turn loop over it.
func (h *ChatHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *ChatHandler) serveWS(conn *websocket.Conn, r *http.Request) {
	clientKey := r.URL.Query().Get("client")
	knownSession := r.URL.Query().Get("session")

	engine, sessionID := h.engineFor(r.Context(), clientKey, knownSession)

	// Hand the identifier to the widget so it can persist it.
	_ = websocket.JSON.Send(conn, wsOutbound{
		Type:      "session",
		SessionID: sessionID,
	})

	// Replay history for returning visitors.
	if msgs, err := h.cfg.Transcript.List(r.Context(), sessionID, 50); err == nil && len(msgs) > 0 {
		_ = websocket.JSON.Send(conn, wsOutbound{Type: "history", Messages: msgs})
	}

	h.logger.Info("chat: websocket opened", "session_id", sessionID)

	for {
		var msg wsInbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("chat: websocket closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, wsOutbound{Type: "pong"})
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		h.touch(clientKey, sessionID)
		reply := engine.Send(r.Context(), msg.Text)

		out := wsOutbound{
			Type:      "message",
			Role:      "bot",
			Text:      reply,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if form := engine.Form(); form.Visible {
			out.Form = &form
		}
		_ = websocket.JSON.Send(conn, out)
	}
}
