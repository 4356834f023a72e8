// Package handlers exposes the chat widget API: HTTP and WebSocket turn
// endpoints, transcript readback, and the embeddable widget script.
package handlers

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suze-ad/finetech/internal/booking"
	"github.com/suze-ad/finetech/internal/conversation"
	"github.com/suze-ad/finetech/internal/leads"
	"github.com/suze-ad/finetech/internal/observability/metrics"
	"github.com/suze-ad/finetech/internal/session"
	"github.com/suze-ad/finetech/pkg/logging"
)

//go:embed widget.js
var widgetJS []byte

// ChatHandlerConfig wires the chat handler's collaborators.
type ChatHandlerConfig struct {
	Upstream   conversation.Upstream
	Redis      *redis.Client
	Transcript *conversation.TranscriptStore
	Leads      leads.Repository
	Metrics    *metrics.ChatMetrics
	Logger     *logging.Logger

	SessionKeyPrefix string
	SessionTTL       time.Duration

	// EngineIdleTTL bounds how long an idle visitor's engine stays in
	// memory. The session identifier outlives the engine in Redis, so an
	// evicted visitor resumes the same conversation on their next request.
	EngineIdleTTL time.Duration
}

// ChatHandler manages per-visitor conversation engines and serves the
// widget API.
type ChatHandler struct {
	cfg     ChatHandlerConfig
	logger  *logging.Logger
	adapter *booking.Adapter

	mu      sync.Mutex
	engines map[string]*engineEntry // registry key -> engine
}

type engineEntry struct {
	engine   *conversation.Engine
	lastSeen time.Time
}

// NewChatHandler creates a chat handler.
func NewChatHandler(cfg ChatHandlerConfig) *ChatHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.SessionKeyPrefix == "" {
		cfg.SessionKeyPrefix = "chat_session:"
	}
	if cfg.EngineIdleTTL <= 0 {
		cfg.EngineIdleTTL = 30 * time.Minute
	}
	h := &ChatHandler{
		cfg:     cfg,
		logger:  cfg.Logger,
		adapter: booking.NewAdapter(cfg.Leads, cfg.Logger),
		engines: make(map[string]*engineEntry),
	}
	// Periodically evict idle engines to prevent memory growth.
	go h.janitor()
	return h
}

func (h *ChatHandler) janitor() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		h.evictIdle(time.Now().Add(-h.cfg.EngineIdleTTL))
	}
}

// evictIdle drops engines whose last activity predates cutoff.
func (h *ChatHandler) evictIdle(cutoff time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, entry := range h.engines {
		if entry.lastSeen.Before(cutoff) {
			delete(h.engines, key)
		}
	}
}

// sessionStore picks the persistence for a visitor's conversation
// identifier. clientKey is the stable key the widget keeps in browser
// storage; with Redis configured the identifier survives server restarts.
func (h *ChatHandler) sessionStore(clientKey, knownSessionID string) session.Store {
	var store session.Store
	if h.cfg.Redis != nil && clientKey != "" {
		store = session.NewRedisStore(h.cfg.Redis, h.cfg.SessionKeyPrefix+clientKey, h.cfg.SessionTTL)
	} else {
		store = session.NewMemoryStore()
	}
	if knownSessionID != "" {
		// The widget already holds an identifier; seed it so the manager
		// reuses it instead of generating a new one.
		_ = store.Write(context.Background(), knownSessionID)
	}
	return session.NewFailSoft(store, h.logger)
}

// engineFor returns the engine for a visitor, creating one on first
// contact. The registry is keyed by client key when the widget provides
// one, otherwise by the ensured session identifier.
func (h *ChatHandler) engineFor(ctx context.Context, clientKey, sessionID string) (*conversation.Engine, string) {
	h.mu.Lock()
	key := clientKey
	if key == "" {
		key = sessionID
	}
	if key != "" {
		if entry, ok := h.engines[key]; ok {
			entry.lastSeen = time.Now()
			e := entry.engine
			h.mu.Unlock()
			return e, e.EnsureSession(ctx, true)
		}
	}
	h.mu.Unlock()

	mgr := session.NewManager(h.sessionStore(clientKey, sessionID), h.logger)
	engine := conversation.NewEngine(h.cfg.Upstream, mgr,
		conversation.WithTranscript(h.cfg.Transcript),
		conversation.WithMetrics(h.cfg.Metrics),
		conversation.WithLogger(h.logger),
	)
	id := engine.EnsureSession(ctx, true)

	if key == "" {
		key = id
	}
	h.mu.Lock()
	if existing, ok := h.engines[key]; ok {
		// Lost a race with a concurrent first request.
		existing.lastSeen = time.Now()
		engine = existing.engine
	} else {
		h.engines[key] = &engineEntry{engine: engine, lastSeen: time.Now()}
	}
	h.mu.Unlock()
	return engine, engine.EnsureSession(ctx, true)
}

// touch refreshes a visitor's eviction clock without going through
// engineFor. Long-lived WebSocket turns call this per message.
func (h *ChatHandler) touch(clientKey, sessionID string) {
	key := clientKey
	if key == "" {
		key = sessionID
	}
	h.mu.Lock()
	if entry, ok := h.engines[key]; ok {
		entry.lastSeen = time.Now()
	}
	h.mu.Unlock()
}

type chatRequest struct {
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Reply     string                 `json:"reply"`
	SessionID string                 `json:"session_id"`
	Form      conversation.FormState `json:"form"`
}

// HandleMessage relays one chat turn.
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	engine, sessionID := h.engineFor(r.Context(), req.ClientID, req.SessionID)
	reply := engine.Send(r.Context(), req.Message)

	writeJSON(w, chatResponse{
		Reply:     reply,
		SessionID: sessionID,
		Form:      engine.Form(),
	})
}

type formRequest struct {
	ClientID  string `json:"client_id"`
	SessionID string `json:"session_id"`
	booking.FormSubmission
}

// HandleFormSubmit relays a completed scheduling form.
func (h *ChatHandler) HandleFormSubmit(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	engine, sessionID := h.engineFor(r.Context(), req.ClientID, req.SessionID)
	reply, err := h.adapter.Submit(r.Context(), engine, req.FormSubmission)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, chatResponse{
		Reply:     reply,
		SessionID: sessionID,
		Form:      engine.Form(),
	})
}

// HandleSession pre-warms a session on widget open. With create=false the
// response carries an empty session_id when none exists yet.
func (h *ChatHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	clientKey := r.URL.Query().Get("client")
	sessionID := r.URL.Query().Get("session")
	create := r.URL.Query().Get("create") != "false"

	if !create {
		// Peek without creating: consult only what is already known.
		if sessionID == "" && clientKey != "" {
			mgr := session.NewManager(h.sessionStore(clientKey, ""), h.logger)
			sessionID = mgr.Ensure(r.Context(), false)
		}
		writeJSON(w, map[string]string{"session_id": sessionID})
		return
	}

	_, id := h.engineFor(r.Context(), clientKey, sessionID)
	writeJSON(w, map[string]string{"session_id": id})
}

// HandleClear empties a conversation's message log. The session
// identifier is left intact.
func (h *ChatHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	engine, sessionID := h.engineFor(r.Context(), req.ClientID, req.SessionID)
	engine.ClearMessages()
	if err := h.cfg.Transcript.Clear(r.Context(), sessionID); err != nil {
		h.logger.Warn("chat: transcript clear failed", "error", err)
	}

	writeJSON(w, map[string]string{"status": "cleared", "session_id": sessionID})
}

// HandleHistory returns the persisted transcript for a session.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	msgs, err := h.cfg.Transcript.List(r.Context(), sessionID, 100)
	if err != nil {
		h.logger.Error("chat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []conversation.TranscriptMessage{}
	}

	writeJSON(w, map[string]any{"messages": msgs})
}

// HandleWidgetJS serves the embeddable widget script.
func (h *ChatHandler) HandleWidgetJS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(widgetJS)
}

// HealthCheck reports liveness.
func (h *ChatHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
