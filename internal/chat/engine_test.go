package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge-gateway/internal/automation"
	"concierge-gateway/internal/config"
	"concierge-gateway/internal/session"
	"concierge-gateway/pkg/models"
)

// fakeUpstream scripts automation webhook responses and records every payload.
type fakeUpstream struct {
	mu        sync.Mutex
	requests  []models.OutboundPayload
	responses []scriptedResponse
	server    *httptest.Server
}

type scriptedResponse struct {
	status int
	body   string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload models.OutboundPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		f.mu.Lock()
		f.requests = append(f.requests, payload)
		resp := scriptedResponse{status: http.StatusOK, body: `{"text":"ok"}`}
		if len(f.responses) > 0 {
			resp = f.responses[0]
			f.responses = f.responses[1:]
		}
		f.mu.Unlock()

		w.WriteHeader(resp.status)
		w.Write([]byte(resp.body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeUpstream) script(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, scriptedResponse{status: status, body: body})
}

func (f *fakeUpstream) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeUpstream) lastRequest(t *testing.T) models.OutboundPayload {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

// collectorSink records events in arrival order.
type collectorSink struct {
	mu       sync.Mutex
	events   []string
	messages []models.Message
}

func (s *collectorSink) Typing(sessionID string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.events = append(s.events, "typing_on")
	} else {
		s.events = append(s.events, "typing_off")
	}
}

func (s *collectorSink) Message(sessionID string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "message:"+msg.Content)
	s.messages = append(s.messages, msg)
}

func (s *collectorSink) UI(sessionID string, ui *models.ChatUI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "ui:"+ui.ID)
}

func (s *collectorSink) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "reset")
}

func (s *collectorSink) contents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m.Content)
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *fakeUpstream, *collectorSink) {
	t.Helper()
	upstream := newFakeUpstream(t)

	cfg := &config.Config{
		ChatWebhookURL: upstream.server.URL,
		WebhookTimeout: 2 * time.Second,
		PushName:       "Visitante Web",
		InstanceID:     "web-client-integration",
	}
	store, err := session.NewStore(session.StoreTypeMemory)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sink := &collectorSink{}
	engine := NewEngine(cfg, automation.NewClient(cfg), store, sink)
	engine.DefaultDelay = 20 * time.Millisecond
	engine.MessagePause = time.Millisecond
	return engine, upstream, sink
}

const triageFormJSON = `{
	"messages": [{"text": "Antes de continuar, responda a triagem.", "delay": 5}],
	"ui": {
		"type": "form_card",
		"id": "triage_v1",
		"title": "Triagem inicial",
		"fields": [
			{
				"name": "goal", "label": "Objetivo", "type": "single_select", "required": true,
				"options": [{"value": "lose_weight", "label": "Perder peso"}, {"value": "maintain", "label": "Manter o peso"}]
			},
			{
				"name": "used_glp1", "label": "Já usou GLP-1", "type": "single_select", "required": true,
				"options": [{"value": "yes", "label": "Sim"}, {"value": "no", "label": "Não"}]
			}
		]
	}
}`

func TestOpenSendsStartAndRevealsWelcome(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)
	upstream.script(http.StatusOK, `{"messages":[{"text":"Oi! Bem-vindo.","delay":50}]}`)

	start := time.Now()
	result, err := engine.Open(context.Background(), "", &models.PageContext{Path: "/", URL: "https://example.com/"})
	require.NoError(t, err)
	elapsed := time.Since(start)

	require.Len(t, result.Messages, 1)
	assert.Equal(t, "Oi! Bem-vindo.", result.Messages[0].Content)
	assert.Equal(t, models.SenderAI, result.Messages[0].Sender)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "reveal must honor the message delay")

	payload := upstream.lastRequest(t)
	assert.Equal(t, "__start__", payload.Data.Message.Conversation)
	assert.Empty(t, payload.Data.ClientContext.LastMessages)
	assert.False(t, payload.Data.ClientContext.TriageCompleted)
	assert.Equal(t, result.SessionID+"@s.whatsapp.net", payload.Data.Key.RemoteJid)
	assert.Equal(t, result.SessionID+"@s.whatsapp.net", payload.Sender)
	assert.Equal(t, "Visitante Web", payload.Data.PushName)
	assert.Equal(t, "conversation", payload.Data.MessageType)
	assert.Equal(t, "web", payload.Data.Source)
	require.NotNil(t, payload.Data.ClientContext.Page)
	assert.Equal(t, "/", payload.Data.ClientContext.Page.Path)
}

func TestOpenBootstrapsAtMostOnce(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)
	upstream.script(http.StatusOK, `{"messages":[{"text":"Oi!","delay":5}]}`)

	first, err := engine.Open(context.Background(), "", nil)
	require.NoError(t, err)
	require.Equal(t, 1, upstream.requestCount())

	second, err := engine.Open(context.Background(), first.SessionID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, upstream.requestCount(), "reopen must not bootstrap again")
	assert.Len(t, second.Messages, 1, "reopen returns the existing history")
}

func TestOpenResumesWhenTriageStored(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)

	st, err := session.GetOrCreate(context.Background(), engine.Store, "")
	require.NoError(t, err)
	st.SetTriage(models.TriageFormValues{"goal": "lose_weight"})
	st.TriageCompleted = true
	require.NoError(t, engine.Store.Update(context.Background(), st))

	upstream.script(http.StatusOK, `{"text":"Bem-vindo de volta!","delay":5}`)
	_, err = engine.Open(context.Background(), st.ID, nil)
	require.NoError(t, err)

	payload := upstream.lastRequest(t)
	assert.Equal(t, "__resume__", payload.Data.Message.Conversation)
	assert.True(t, payload.Data.ClientContext.TriageCompleted)
	assert.Equal(t, models.TriageFormValues{"goal": "lose_weight"}, payload.Data.ClientContext.Triage)
}

func TestSendTextRevealsRepliesInOrder(t *testing.T) {
	engine, upstream, sink := newTestEngine(t)
	upstream.script(http.StatusOK, `{"messages":[
		{"text":"primeira","delay":40},
		{"text":"segunda","delay":5},
		{"text":"terceira","delay":15}
	]}`)

	result, err := engine.SendText(context.Background(), "", "Olá, quero saber mais", nil)
	require.NoError(t, err)

	require.Len(t, result.Messages, 4) // user message + three replies
	assert.Equal(t, []string{"Olá, quero saber mais", "primeira", "segunda", "terceira"}, sink.contents(),
		"replies must appear in upstream order regardless of their delays")

	payload := upstream.lastRequest(t)
	assert.Equal(t, "Olá, quero saber mais", payload.Data.Message.Conversation)
	require.Len(t, payload.Data.ClientContext.LastMessages, 1, "snapshot includes the message being sent")
	assert.Equal(t, "Olá, quero saber mais", payload.Data.ClientContext.LastMessages[0].Content)
}

func TestSendTextContextWindowIsTwelve(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)

	st, err := session.GetOrCreate(context.Background(), engine.Store, "")
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		st.History = append(st.History, models.Message{ID: "m", Content: "antiga", Sender: models.SenderUser})
	}
	st.BootstrapDone = true
	require.NoError(t, engine.Store.Update(context.Background(), st))

	upstream.script(http.StatusOK, `{"text":"ok","delay":5}`)
	_, err = engine.SendText(context.Background(), st.ID, "nova mensagem", nil)
	require.NoError(t, err)

	payload := upstream.lastRequest(t)
	require.Len(t, payload.Data.ClientContext.LastMessages, 12)
	assert.Equal(t, "nova mensagem", payload.Data.ClientContext.LastMessages[11].Content)
}

func TestSendTextWebhookFailureAppendsFallback(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)
	upstream.script(http.StatusInternalServerError, "boom")

	result, err := engine.SendText(context.Background(), "", "oi", nil)
	require.NoError(t, err, "webhook failures become chat messages, not errors")

	require.Len(t, result.Messages, 2)
	assert.Equal(t, connectionErrorText, result.Messages[1].Content)
	assert.Equal(t, models.SenderAI, result.Messages[1].Sender)
}

func TestSendTextPlainTextReply(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)
	upstream.script(http.StatusOK, "plain text reply")

	result, err := engine.SendText(context.Background(), "", "oi", nil)
	require.NoError(t, err)

	require.Len(t, result.Messages, 2)
	assert.Equal(t, "plain text reply", result.Messages[1].Content)
}

func TestSendTextBusyWhileExchangeInFlight(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	st, err := session.GetOrCreate(context.Background(), engine.Store, "")
	require.NoError(t, err)

	conv := engine.conversation(st.ID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	_, err = engine.SendText(context.Background(), st.ID, "oi", nil)
	assert.ErrorIs(t, err, ErrBusy)

	_, err = engine.SubmitForm(context.Background(), st.ID, "f", nil, nil)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestFormLifecycle(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)
	ctx := context.Background()

	upstream.script(http.StatusOK, triageFormJSON)
	opened, err := engine.Open(ctx, "", nil)
	require.NoError(t, err)
	sid := opened.SessionID

	require.NotNil(t, opened.UI)
	assert.Equal(t, "triage_v1", opened.UI.ID)

	// A later reply without a ui field must NOT clear the active form.
	upstream.script(http.StatusOK, `{"text":"posso ajudar em algo mais?","delay":5}`)
	result, err := engine.SendText(ctx, sid, "o que é a triagem?", nil)
	require.NoError(t, err)
	require.NotNil(t, result.UI, "active form survives ui-less responses")

	// Missing required fields are rejected locally, with no webhook call.
	before := upstream.requestCount()
	_, err = engine.SubmitForm(ctx, sid, "triage_v1", models.TriageFormValues{"goal": "lose_weight"}, nil)
	var missing *ErrMissingFields
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"used_glp1"}, missing.Fields)
	assert.Equal(t, before, upstream.requestCount())

	// Complete submission goes through with labels in the summary.
	upstream.script(http.StatusOK, `{"messages":[{"text":"Triagem recebida!","delay":5}]}`)
	values := models.TriageFormValues{"goal": "lose_weight", "used_glp1": "no"}
	result, err = engine.SubmitForm(ctx, sid, "triage_v1", values, nil)
	require.NoError(t, err)

	payload := upstream.lastRequest(t)
	assert.Equal(t, values, payload.Data.Form)
	assert.Equal(t, "triage_v1", payload.Data.FormID)
	assert.Contains(t, payload.Data.Message.Conversation, "Objetivo=Perder peso")
	assert.Contains(t, payload.Data.Message.Conversation, "Já usou GLP-1=Não")

	assert.Nil(t, result.UI, "form cleared after successful submit")
	require.Len(t, result.Messages, 2)
	assert.Equal(t, "Respondi a triagem ✅", result.Messages[0].Content)
	assert.Equal(t, "Triagem recebida!", result.Messages[1].Content)

	st, err := engine.Store.Get(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.True(t, st.IsTriageCompleted())
}

func TestFormSubmitFailureKeepsFormActive(t *testing.T) {
	engine, upstream, _ := newTestEngine(t)
	ctx := context.Background()

	upstream.script(http.StatusOK, triageFormJSON)
	opened, err := engine.Open(ctx, "", nil)
	require.NoError(t, err)
	sid := opened.SessionID

	upstream.script(http.StatusInternalServerError, "boom")
	values := models.TriageFormValues{"goal": "maintain", "used_glp1": "yes"}
	result, err := engine.SubmitForm(ctx, sid, "triage_v1", values, nil)
	require.NoError(t, err)

	require.NotNil(t, result.UI, "form must stay active for retry")
	assert.Equal(t, formErrorText, result.Messages[len(result.Messages)-1].Content)

	st, err := engine.Store.Get(ctx, sid)
	require.NoError(t, err)
	assert.False(t, st.IsTriageCompleted(), "completion is only marked after a successful send")
	assert.NotEmpty(t, st.TriageValuesRaw, "answers are persisted before the send for resumption")
}

func TestSubmitFormWithoutActiveForm(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	st, err := session.GetOrCreate(context.Background(), engine.Store, "")
	require.NoError(t, err)

	_, err = engine.SubmitForm(context.Background(), st.ID, "triage_v1", models.TriageFormValues{}, nil)
	assert.ErrorIs(t, err, ErrNoActiveForm)
}

func TestResetStartsOver(t *testing.T) {
	engine, upstream, sink := newTestEngine(t)
	ctx := context.Background()

	upstream.script(http.StatusOK, triageFormJSON)
	opened, err := engine.Open(ctx, "", nil)
	require.NoError(t, err)
	sid := opened.SessionID

	upstream.script(http.StatusOK, `{"text":"Triagem recebida!","delay":5}`)
	_, err = engine.SubmitForm(ctx, sid, "triage_v1", models.TriageFormValues{"goal": "maintain", "used_glp1": "no"}, nil)
	require.NoError(t, err)

	newID, err := engine.Reset(ctx, sid)
	require.NoError(t, err)
	assert.NotEqual(t, sid, newID)
	assert.Contains(t, sink.contents(), "Respondi a triagem ✅") // sanity: events flowed before reset

	old, err := engine.Store.Get(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, old, "old session must be gone")

	// Even though triage was completed before, the fresh session bootstraps
	// from scratch.
	upstream.script(http.StatusOK, `{"text":"Oi!","delay":5}`)
	_, err = engine.Open(ctx, newID, nil)
	require.NoError(t, err)
	assert.Equal(t, "__start__", upstream.lastRequest(t).Data.Message.Conversation)
}

func TestHistoryUnknownSession(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, _, err := engine.History(context.Background(), "web_nope")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
