package models

import "encoding/json"

// WebhookMessage is a single display message resolved from an automation response.
type WebhookMessage struct {
	Text  string `json:"text"`
	Delay int    `json:"delay,omitempty"` // milliseconds before the message is revealed
}

// WebhookResponse represents the automation system's reply. The upstream answers
// with either a structured body (messages plus an optional ui directive) or one of
// several loose text-bearing shapes, so every known key is decoded and the raw body
// is kept for the last-resort fallback.
type WebhookResponse struct {
	Messages []WebhookMessage `json:"messages,omitempty"`
	UI       *ChatUI          `json:"ui,omitempty"`
	Text     string           `json:"text,omitempty"`
	Message  string           `json:"message,omitempty"`
	Output   string           `json:"output,omitempty"`
	Response string           `json:"response,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ResolveMessages flattens the upstream's ambiguous shape into the list of messages
// to display. Order of preference: an explicit messages array, then the first
// non-empty of text, message, output and response, then a dump of the raw body.
func (r *WebhookResponse) ResolveMessages() []WebhookMessage {
	if len(r.Messages) > 0 {
		return r.Messages
	}

	for _, candidate := range []string{r.Text, r.Message, r.Output, r.Response} {
		if candidate != "" {
			return []WebhookMessage{{Text: candidate}}
		}
	}

	dump := string(r.Raw)
	if dump == "" {
		if b, err := json.Marshal(r); err == nil {
			dump = string(b)
		}
	}
	return []WebhookMessage{{Text: dump}}
}
