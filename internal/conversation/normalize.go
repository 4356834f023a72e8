package conversation

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/suze-ad/finetech/pkg/logging"
)

// Action is the normalized instruction extracted from an upstream reply.
type Action string

const (
	// ActionNone means the reply is a plain message.
	ActionNone Action = ""
	// ActionRenderForm and ActionShowForm both open the scheduling form.
	ActionRenderForm Action = "render_form"
	ActionShowForm   Action = "show_form"
	// ActionEnd terminates the conversation and closes any open form.
	ActionEnd Action = "conversation_end"
)

// TimeSlot is a bookable time option offered in the scheduling form. Value
// is the opaque booking token, often an ISO timestamp; Label is what the
// visitor sees.
type TimeSlot struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// NormalizedResponse is the canonical shape every upstream reply is
// reduced to.
type NormalizedResponse struct {
	ReplyText     string
	Action        Action
	Slots         []TimeSlot
	FormIntent    bool
	UpstreamError bool
}

// upstreamErrorApology is shown when the automation backend reports an
// explicit error without a display message.
const upstreamErrorApology = "Sorry, something went wrong on our end. Please try again."

// DefaultSlots is offered when the form should open but the upstream sent
// no usable slots.
var DefaultSlots = []TimeSlot{
	{Value: "morning", Label: "Morning"},
	{Value: "afternoon", Label: "Afternoon"},
	{Value: "evening", Label: "Evening"},
}

// replyFields is the precedence order for extracting the display reply.
var replyFields = []string{"output", "reply", "response", "message", "text"}

// formIntentPhrases trigger the scheduling form even when the upstream
// forgot to set an action. The automation backend does not reliably tag
// form turns, so this text match is load-bearing compatibility behavior.
var formIntentPhrases = []string{"use the form below", "fill out the form"}

// Normalizer reduces arbitrary upstream JSON values to NormalizedResponse.
// Normalization is total: any JSON-representable input yields a result,
// unrecognized shapes degrade to safe defaults. The only side effect is
// diagnostic logging of unparseable slot payloads.
type Normalizer struct {
	logger *logging.Logger
}

// NewNormalizer creates a normalizer. A nil logger falls back to the
// default logger.
func NewNormalizer(logger *logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize extracts reply text, action, and slots from data, which is the
// decoded JSON value returned by the upstream webhook.
func (n *Normalizer) Normalize(data any) NormalizedResponse {
	obj, _ := data.(map[string]any)

	// An explicit top-level error short-circuits everything else: surface
	// a message, never open the form.
	if obj != nil {
		if _, errored := obj["error"]; errored {
			reply := stringField(obj, "message")
			if reply == "" {
				reply = upstreamErrorApology
			}
			return NormalizedResponse{ReplyText: reply, UpstreamError: true}
		}
	}

	res := NormalizedResponse{
		ReplyText: n.extractReply(data, obj),
		Action:    extractAction(obj),
	}

	res.FormIntent = res.Action == ActionRenderForm || res.Action == ActionShowForm
	if !res.FormIntent && res.Action != ActionEnd {
		res.FormIntent = inferFormIntent(res.ReplyText)
	}

	if obj != nil {
		res.Slots = n.normalizeSlots(obj["slots"])
	}
	if res.FormIntent && len(res.Slots) == 0 {
		res.Slots = append([]TimeSlot(nil), DefaultSlots...)
	}
	return res
}

func (n *Normalizer) extractReply(data any, obj map[string]any) string {
	if obj != nil {
		for _, field := range replyFields {
			if s := stringField(obj, field); s != "" {
				return s
			}
		}
		return ""
	}
	if s, ok := data.(string); ok {
		return s
	}
	return ""
}

func extractAction(obj map[string]any) Action {
	if obj == nil {
		return ActionNone
	}
	switch Action(stringField(obj, "action")) {
	case ActionRenderForm:
		return ActionRenderForm
	case ActionShowForm:
		return ActionShowForm
	case ActionEnd:
		return ActionEnd
	default:
		return ActionNone
	}
}

func inferFormIntent(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range formIntentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// normalizeSlots reduces the upstream slots payload, which arrives in at
// least five shapes, to a flat slot list. An empty result is returned for
// anything unrecognizable.
func (n *Normalizer) normalizeSlots(raw any) []TimeSlot {
	if raw == nil {
		return nil
	}

	if s, ok := raw.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			n.logger.Warn("chat: unparseable slots payload", "error", err)
			return nil
		}
		raw = parsed
	}

	switch v := raw.(type) {
	case []any:
		return slotsFromArray(v)
	case map[string]any:
		return slotsFromObject(v)
	default:
		return nil
	}
}

func slotsFromArray(arr []any) []TimeSlot {
	if len(arr) == 0 {
		return nil
	}

	// Wrapped form: each element carries a nested "slot" object with
	// start/end display fields.
	if first, ok := arr[0].(map[string]any); ok {
		if _, wrapped := first["slot"]; wrapped {
			out := make([]TimeSlot, 0, len(arr))
			for _, el := range arr {
				m, ok := el.(map[string]any)
				if !ok {
					continue
				}
				if slot, ok := unwrapSlot(m); ok {
					out = append(out, slot)
					continue
				}
				// Unwrappable elements fall back to their own value/label.
				if slot, ok := plainSlot(m); ok {
					out = append(out, slot)
				}
			}
			return out
		}
	}

	// Already {value,label} shaped.
	out := make([]TimeSlot, 0, len(arr))
	for _, el := range arr {
		if m, ok := el.(map[string]any); ok {
			if slot, ok := plainSlot(m); ok {
				out = append(out, slot)
			}
		}
	}
	return out
}

func slotsFromObject(obj map[string]any) []TimeSlot {
	if inner, ok := obj["slots"].([]any); ok {
		return slotsFromArray(inner)
	}

	if slot, ok := plainSlot(obj); ok {
		return []TimeSlot{slot}
	}

	if slot, ok := unwrapSlot(obj); ok {
		return []TimeSlot{slot}
	}

	// Treat the object as a keyed collection of candidate entries. Keys are
	// sorted so normalization stays deterministic.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []TimeSlot
	for _, k := range keys {
		m, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		if slot, ok := plainSlot(m); ok {
			out = append(out, slot)
			continue
		}
		if slot, ok := unwrapSlot(m); ok {
			out = append(out, slot)
		}
	}
	return out
}

// unwrapSlot converts a wrapped entry, i.e. a map with a nested "slot"
// object carrying start/startTimeDisplay/endTimeDisplay, into a TimeSlot.
func unwrapSlot(m map[string]any) (TimeSlot, bool) {
	slot, ok := m["slot"].(map[string]any)
	if !ok {
		return TimeSlot{}, false
	}

	start := coerceString(slot["start"])
	startDisplay := coerceString(slot["startTimeDisplay"])
	if start == "" && startDisplay == "" {
		return TimeSlot{}, false
	}

	value := start
	if value == "" {
		value = startDisplay
	}
	labelStart := startDisplay
	if labelStart == "" {
		labelStart = start
	}
	return TimeSlot{
		Value: value,
		Label: labelStart + " - " + coerceString(slot["endTimeDisplay"]),
	}, true
}

// plainSlot accepts a map carrying value and/or label keys. Sparse entries
// are kept, with the missing half filled from the other, rather than
// dropped.
func plainSlot(m map[string]any) (TimeSlot, bool) {
	value := coerceString(m["value"])
	label := coerceString(m["label"])
	if value == "" && label == "" {
		return TimeSlot{}, false
	}
	if value == "" {
		value = label
	}
	if label == "" {
		label = value
	}
	return TimeSlot{Value: value, Label: label}, true
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}
