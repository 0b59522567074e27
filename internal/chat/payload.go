package chat

import (
	"time"

	"concierge-gateway/internal/session"
	"concierge-gateway/pkg/models"
)

// contextWindow is how many trailing messages are embedded in client_context.
const contextWindow = 12

func lastMessages(history []models.Message, n int) []models.ContextMessage {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]models.ContextMessage, 0, len(history))
	for _, m := range history {
		out = append(out, models.ContextMessage{
			Sender:    m.Sender,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

// buildPayload assembles the messaging-platform envelope for one outbound
// exchange. history is the snapshot to embed, already including the message
// being sent (empty for bootstrap).
func (e *Engine) buildPayload(st *session.State, messageID, conversation string, history []models.Message, page *models.PageContext, form models.TriageFormValues, formID string) *models.OutboundPayload {
	jid := st.ID + "@s.whatsapp.net"
	now := time.Now()

	return &models.OutboundPayload{
		Data: models.EventData{
			Key: models.MessageKey{
				RemoteJid: jid,
				FromMe:    false,
				ID:        messageID,
			},
			PushName:         e.Config.PushName,
			Message:          models.Conversation{Conversation: conversation},
			MessageType:      "conversation",
			MessageTimestamp: now.Unix(),
			InstanceID:       e.Config.InstanceID,
			Source:           "web",
			ClientContext: models.ClientContext{
				SessionID:       st.ID,
				TriageCompleted: st.IsTriageCompleted(),
				Triage:          st.Triage(),
				LastMessages:    lastMessages(history, contextWindow),
				Page:            page,
				TimestampMs:     now.UnixMilli(),
			},
			Form:   form,
			FormID: formID,
		},
		Sender: jid,
	}
}
