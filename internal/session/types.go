package session

import (
	"encoding/json"
	"time"

	"concierge-gateway/pkg/models"
)

// Storage key names shared with the widget. The browser keeps its own copies under
// these names; the gateway is the source of truth.
const (
	KeySessionID          = "chat_session_id"
	KeyTriageCompletedFmt = "triage_completed_%s"
	KeyTriageValuesFmt    = "triage_values_%s"
	KeyCookieConsent      = "cookie_consent"
)

// State is all persisted conversation state for one visitor.
type State struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"` // optimistic locking across tabs/instances

	// TriageValuesRaw holds the serialized triage answers. Kept as the raw blob
	// so a corrupted value degrades to "no stored triage" instead of failing.
	TriageCompleted bool   `json:"triage_completed"`
	TriageValuesRaw string `json:"triage_values_raw,omitempty"`

	History       []models.Message `json:"history"`
	BootstrapDone bool             `json:"bootstrap_done"`
}

// Triage returns the stored answers, or nil when absent or unparsable.
func (s *State) Triage() models.TriageFormValues {
	if s.TriageValuesRaw == "" {
		return nil
	}
	var values models.TriageFormValues
	if err := json.Unmarshal([]byte(s.TriageValuesRaw), &values); err != nil {
		return nil
	}
	return values
}

// SetTriage serializes and stores the answers.
func (s *State) SetTriage(values models.TriageFormValues) {
	b, err := json.Marshal(values)
	if err != nil {
		return
	}
	s.TriageValuesRaw = string(b)
}

// IsTriageCompleted is true only when the completion flag is set AND the stored
// answers are present and parsable. The flag alone is not trusted.
func (s *State) IsTriageCompleted() bool {
	return s.TriageCompleted && len(s.Triage()) > 0
}
