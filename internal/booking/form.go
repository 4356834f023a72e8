// Package booking turns completed scheduling forms into conversation
// payloads and captures them as leads.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suze-ad/finetech/internal/conversation"
	"github.com/suze-ad/finetech/internal/leads"
	"github.com/suze-ad/finetech/pkg/logging"
)

// leadSource tags leads that arrived through the chat widget form.
const leadSource = "chat_widget"

var (
	ErrMissingName          = errors.New("booking: name is required")
	ErrMissingEmail         = errors.New("booking: email is required")
	ErrMissingPreferredTime = errors.New("booking: preferred time is required")
)

// FormSubmission is a completed scheduling form.
type FormSubmission struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	PreferredTime string `json:"preferred_time"`
}

// Validate enforces the required fields. Phone is optional.
func (f FormSubmission) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(f.Email) == "" {
		return ErrMissingEmail
	}
	if strings.TrimSpace(f.PreferredTime) == "" {
		return ErrMissingPreferredTime
	}
	return nil
}

// Summary renders the human-readable line the automation backend sees as
// the turn text.
func (f FormSubmission) Summary() string {
	contact := f.Email
	if f.Phone != "" {
		contact = fmt.Sprintf("%s, %s", f.Email, f.Phone)
	}
	return fmt.Sprintf("New scheduling request from %s (%s). Preferred time: %s", f.Name, contact, f.PreferredTime)
}

// formData embeds the raw field set for the upstream workflow.
func (f FormSubmission) formData() map[string]any {
	data := map[string]any{
		"name":           f.Name,
		"email":          f.Email,
		"preferred_time": f.PreferredTime,
	}
	if f.Phone != "" {
		data["phone"] = f.Phone
	}
	return data
}

// Adapter relays validated form submissions through a conversation engine
// and records them as leads. It never talks to the network itself.
type Adapter struct {
	leads  leads.Repository
	logger *logging.Logger
}

// NewAdapter creates an adapter. The leads repository is optional.
func NewAdapter(repo leads.Repository, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{leads: repo, logger: logger}
}

// Submit sends a validated form through the engine as a form_submit
// payload and returns the bot reply. The lead capture is best-effort: a
// failed insert is logged, the conversation turn still goes out.
func (a *Adapter) Submit(ctx context.Context, engine *conversation.Engine, form FormSubmission) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}

	summary := form.Summary()

	if a.leads != nil {
		_, err := a.leads.Create(ctx, &leads.CreateLeadRequest{
			Name:          form.Name,
			Email:         form.Email,
			Phone:         form.Phone,
			PreferredTime: form.PreferredTime,
			Message:       summary,
			Source:        leadSource,
		})
		if err != nil {
			a.logger.Error("booking: lead capture failed", "error", err, "email", form.Email)
		}
	}

	reply := engine.SendPayload(ctx, conversation.Payload{
		Type:      conversation.PayloadTypeFormSubmit,
		ChatInput: summary,
		FormData:  form.formData(),
	})
	return reply, nil
}
