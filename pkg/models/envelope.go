package models

// Message is one entry in a conversation, as stored and as pushed to the widget.
type Message struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Sender    string `json:"sender"` // "user" or "ai"
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

const (
	SenderUser = "user"
	SenderAI   = "ai"
)

// PageContext is where the visitor was when the message was sent.
type PageContext struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ContextMessage is the trimmed message shape embedded in client_context.
type ContextMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// ClientContext is a snapshot of conversation state attached to every outbound
// payload so the automation system can behave statelessly per request.
type ClientContext struct {
	SessionID       string           `json:"session_id"`
	TriageCompleted bool             `json:"triage_completed"`
	Triage          TriageFormValues `json:"triage"`
	LastMessages    []ContextMessage `json:"last_messages"`
	Page            *PageContext     `json:"page"`
	TimestampMs     int64            `json:"timestamp_ms"`
}

// MessageKey identifies a message the way the messaging platform does.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type Conversation struct {
	Conversation string `json:"conversation"`
}

// EventData mimics a messaging-platform inbound event so the automation flows
// built for WhatsApp traffic accept web-widget traffic unchanged.
type EventData struct {
	Key              MessageKey       `json:"key"`
	PushName         string           `json:"pushName"`
	Message          Conversation     `json:"message"`
	MessageType      string           `json:"messageType"`
	MessageTimestamp int64            `json:"messageTimestamp"`
	InstanceID       string           `json:"instanceId"`
	Source           string           `json:"source"`
	ClientContext    ClientContext    `json:"client_context"`
	Form             TriageFormValues `json:"form,omitempty"`
	FormID           string           `json:"form_id,omitempty"`
}

// OutboundPayload is the envelope POSTed to the chat automation webhook.
type OutboundPayload struct {
	Data   EventData `json:"data"`
	Sender string    `json:"sender"`
}
