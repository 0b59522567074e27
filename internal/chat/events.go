package chat

import "concierge-gateway/pkg/models"

// EventSink receives conversation events as they happen so the widget can render
// the typing indicator and reveal messages at the pace the engine dictates.
// The websocket hub implements this in production.
type EventSink interface {
	Typing(sessionID string, on bool)
	Message(sessionID string, msg models.Message)
	UI(sessionID string, ui *models.ChatUI)
	Reset(sessionID string)
}

// Recorder persists messages for the audit log. Optional.
type Recorder interface {
	RecordMessage(sessionID string, msg models.Message)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Typing(string, bool)                 {}
func (NopSink) Message(string, models.Message)      {}
func (NopSink) UI(string, *models.ChatUI)           {}
func (NopSink) Reset(string)                        {}
