package models

// UI kinds sent by the automation system.
const ChatUITypeFormCard = "form_card"

// ChatUI is a server-driven UI directive carried on a webhook response. Only the
// form_card kind exists today; the Type tag leaves room for more.
type ChatUI struct {
	Type        string       `json:"type"`
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	SubmitLabel string       `json:"submitLabel,omitempty"`
	Fields      []ChatUIField `json:"fields"`
}

type ChatUIField struct {
	Name       string         `json:"name"`
	Label      string         `json:"label"`
	Type       string         `json:"type"` // "single_select"
	Required   bool           `json:"required,omitempty"`
	Options    []ChatUIOption `json:"options"`
	HelperText string         `json:"helperText,omitempty"`
}

type ChatUIOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// TriageFormValues maps a field name to the selected option value.
type TriageFormValues map[string]string
