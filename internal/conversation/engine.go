// Package conversation owns one logical chat conversation between a site
// visitor and the automation backend: the message log, the scheduling form
// state, and the normalization of whatever shape the backend replies with.
package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/suze-ad/finetech/internal/observability/metrics"
	"github.com/suze-ad/finetech/internal/session"
	"github.com/suze-ad/finetech/pkg/logging"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Payload type tags on the outbound request body.
const (
	PayloadTypeChat       = "chat"
	PayloadTypeFormSubmit = "form_submit"
)

// connectivityApology is shown when the relay to the automation backend
// fails outright.
const connectivityApology = "Sorry, we're having trouble connecting right now. Please try again in a moment."

// formFallbackMessage seeds the scheduling form when the upstream asked
// for it without any reply text.
const formFallbackMessage = "We're ready to schedule your call."

// Message is one entry in the conversation log. Immutable once created;
// ordering is insertion order.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// FormState describes the scheduling form overlay. When Visible is false,
// Slots and InitialMessage are empty.
type FormState struct {
	Visible        bool       `json:"visible"`
	Slots          []TimeSlot `json:"slots,omitempty"`
	InitialMessage string     `json:"initial_message,omitempty"`
}

// Payload is the structured outbound request before the session identifier
// is merged in. Extra fields pass through to the upstream untouched.
type Payload struct {
	Type      string
	ChatInput string
	FormData  map[string]any
	Extra     map[string]any
}

// body assembles the wire shape the automation webhook expects. The
// session identifier is sent under both naming conventions because
// upstream workflows have historically read either.
func (p Payload) body(sessionID string) map[string]any {
	body := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		body[k] = v
	}
	typ := p.Type
	if typ == "" {
		typ = PayloadTypeChat
	}
	body["type"] = typ
	body["chatInput"] = p.ChatInput
	body["session_id"] = sessionID
	body["sessionId"] = sessionID
	if p.FormData != nil {
		body["formData"] = p.FormData
	} else {
		body["formData"] = nil
	}
	return body
}

// Upstream relays a request body to the automation webhook and returns the
// decoded JSON response.
type Upstream interface {
	Relay(ctx context.Context, body map[string]any) (any, error)
}

// Engine drives one conversation: it appends messages, relays turns
// upstream, and applies the normalized response to its state. Failures
// never escape a turn; the worst case is an apology message with the
// loading flag cleared.
type Engine struct {
	upstream   Upstream
	sessions   *session.Manager
	normalizer *Normalizer
	transcript *TranscriptStore
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger

	// sendMu serializes overlapping sends so bot replies cannot reorder
	// against user messages under slow networks.
	sendMu sync.Mutex

	mu       sync.Mutex
	messages []Message
	form     FormState
	loading  bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTranscript mirrors the message log to a persistent transcript.
func WithTranscript(store *TranscriptStore) EngineOption {
	return func(e *Engine) {
		e.transcript = store
	}
}

// WithMetrics attaches chat metrics.
func WithMetrics(m *metrics.ChatMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine bound to one session manager.
func NewEngine(upstream Upstream, sessions *session.Manager, opts ...EngineOption) *Engine {
	e := &Engine{
		upstream: upstream,
		sessions: sessions,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.normalizer = NewNormalizer(e.logger)
	return e
}

// Send relays a plain chat message. The user message is appended to the
// log before any network activity. The returned string is the bot reply,
// or an apology when the relay failed.
func (e *Engine) Send(ctx context.Context, text string) string {
	return e.dispatch(ctx, Payload{Type: PayloadTypeChat, ChatInput: text}, text)
}

// SendPayload relays a pre-built structured payload, e.g. a form
// submission. No user message is appended.
func (e *Engine) SendPayload(ctx context.Context, p Payload) string {
	return e.dispatch(ctx, p, "")
}

func (e *Engine) dispatch(ctx context.Context, p Payload, userText string) string {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	if userText != "" {
		e.appendMessage(ctx, SenderUser, userText)
	}

	e.setLoading(true)
	defer e.setLoading(false)

	sessionID := e.EnsureSession(ctx, true)

	start := time.Now()
	data, err := e.upstream.Relay(ctx, p.body(sessionID))
	e.metrics.ObserveUpstreamLatency(time.Since(start).Seconds())
	if err != nil {
		e.logger.Error("chat: upstream relay failed", "error", err, "session_id", sessionID)
		e.metrics.ObserveUpstreamFailure()
		e.appendMessage(ctx, SenderBot, connectivityApology)
		return connectivityApology
	}

	return e.applyResponse(ctx, e.normalizer.Normalize(data))
}

// applyResponse mutates conversation state from a normalized upstream
// response and returns the reply text.
func (e *Engine) applyResponse(ctx context.Context, res NormalizedResponse) string {
	if res.Action == ActionEnd {
		e.mu.Lock()
		e.form = FormState{}
		e.mu.Unlock()
		if res.ReplyText != "" {
			e.appendMessage(ctx, SenderBot, res.ReplyText)
		}
		return res.ReplyText
	}

	if res.ReplyText != "" {
		e.appendMessage(ctx, SenderBot, res.ReplyText)
	}

	if res.FormIntent {
		initial := res.ReplyText
		if initial == "" {
			initial = formFallbackMessage
		}
		e.mu.Lock()
		e.form = FormState{Visible: true, Slots: res.Slots, InitialMessage: initial}
		e.mu.Unlock()
		e.metrics.ObserveFormOpen()
		e.logger.Info("chat: scheduling form opened", "slots", len(res.Slots))
	}
	return res.ReplyText
}

// EnsureSession returns the conversation identifier, creating one when
// createIfMissing is set. An empty string means none exists yet.
func (e *Engine) EnsureSession(ctx context.Context, createIfMissing bool) string {
	if e.sessions == nil {
		return ""
	}
	return e.sessions.Ensure(ctx, createIfMissing)
}

// Messages returns a copy of the conversation log.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Form returns the current scheduling form state.
func (e *Engine) Form() FormState {
	e.mu.Lock()
	defer e.mu.Unlock()
	form := e.form
	form.Slots = append([]TimeSlot(nil), e.form.Slots...)
	return form
}

// Loading reports whether a relay is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// ClearMessages empties the message log. The session identifier is left
// untouched.
func (e *Engine) ClearMessages() {
	e.mu.Lock()
	e.messages = nil
	e.mu.Unlock()
}

func (e *Engine) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}

func (e *Engine) appendMessage(ctx context.Context, sender Sender, text string) {
	msg := Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}

	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()

	e.metrics.ObserveTurn(string(sender))

	if e.transcript != nil {
		conversationID := e.EnsureSession(ctx, true)
		err := e.transcript.Append(ctx, conversationID, TranscriptMessage{
			ID:        msg.ID,
			Sender:    string(sender),
			Text:      text,
			Timestamp: msg.CreatedAt,
		})
		if err != nil {
			e.logger.Warn("chat: transcript append failed", "error", err)
		}
	}
}
