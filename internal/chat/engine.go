// Package chat implements the conversation engine behind the site's concierge
// widget: it owns per-session message history, relays exchanges to the
// automation webhook and paces replies back to the widget.
package chat

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"concierge-gateway/internal/automation"
	"concierge-gateway/internal/config"
	"concierge-gateway/internal/forms"
	"concierge-gateway/internal/session"
	"concierge-gateway/pkg/models"
)

// State of a conversation. A dynamic form being active is tracked separately in
// the activeForm slot; it coexists with Idle.
type State string

const (
	StateIdle          State = "idle"
	StateBootstrapping State = "bootstrapping"
	StateAwaitingReply State = "awaiting_reply"
)

const (
	// Bootstrap bodies recognized by the automation flows.
	bootstrapStart  = "__start__"
	bootstrapResume = "__resume__"

	connectionErrorText = "Estou com dificuldades de conexão. Tente novamente em instantes."
	formErrorText       = "Não consegui enviar sua triagem agora. Tente novamente em instantes."
)

var (
	// ErrBusy means another exchange for this session is already in flight.
	ErrBusy = errors.New("conversation busy")
	// ErrNoActiveForm means a form submit arrived without a matching active form.
	ErrNoActiveForm = errors.New("no active form")
)

// ErrMissingFields reports which required fields were left unanswered. The
// submit is rejected locally; no webhook call is made.
type ErrMissingFields struct {
	Fields []string
}

func (e *ErrMissingFields) Error() string {
	return fmt.Sprintf("missing required fields: %v", e.Fields)
}

// conversation is the runtime (non-persisted) side of one session.
type conversation struct {
	mu sync.Mutex // held for the whole of an exchange: one in flight

	fieldMu    sync.Mutex // guards the fields below for readers outside mu
	state      State
	activeForm *models.ChatUI
	cancel     context.CancelFunc
}

func (c *conversation) setState(s State) {
	c.fieldMu.Lock()
	c.state = s
	c.fieldMu.Unlock()
}

func (c *conversation) getState() State {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.state
}

func (c *conversation) setActiveForm(ui *models.ChatUI) {
	c.fieldMu.Lock()
	c.activeForm = ui
	c.fieldMu.Unlock()
}

func (c *conversation) getActiveForm() *models.ChatUI {
	c.fieldMu.Lock()
	defer c.fieldMu.Unlock()
	return c.activeForm
}

func (c *conversation) setCancel(cancel context.CancelFunc) {
	c.fieldMu.Lock()
	c.cancel = cancel
	c.fieldMu.Unlock()
}

func (c *conversation) cancelInFlight() {
	c.fieldMu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.fieldMu.Unlock()
}

// Engine orchestrates conversations. All exchanges for one session are
// serialized; messages are revealed strictly in upstream order.
type Engine struct {
	Config   *config.Config
	Client   *automation.Client
	Store    session.Store
	Sink     EventSink
	Recorder Recorder

	// Pacing. DefaultDelay applies when a reply message carries none.
	DefaultDelay time.Duration
	MessagePause time.Duration

	mu    sync.Mutex
	convs map[string]*conversation
}

func NewEngine(cfg *config.Config, client *automation.Client, store session.Store, sink EventSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		Config:       cfg,
		Client:       client,
		Store:        store,
		Sink:         sink,
		DefaultDelay: time.Second,
		MessagePause: 100 * time.Millisecond,
		convs:        make(map[string]*conversation),
	}
}

// ExchangeResult is what one engine operation appended and where the
// conversation stands afterwards.
type ExchangeResult struct {
	SessionID string           `json:"session_id"`
	State     State            `json:"state"`
	Messages  []models.Message `json:"messages"`
	UI        *models.ChatUI   `json:"ui,omitempty"`
}

func (e *Engine) conversation(sessionID string) *conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	conv, ok := e.convs[sessionID]
	if !ok {
		conv = &conversation{state: StateIdle}
		e.convs[sessionID] = conv
	}
	return conv
}

// Open runs the bootstrap exchange for a session, creating the session when the
// ID is empty or unknown. Bootstrap fires at most once per session: when it
// already ran, when messages exist, or when an exchange is in flight, Open just
// returns the current history.
func (e *Engine) Open(ctx context.Context, sessionID string, page *models.PageContext) (*ExchangeResult, error) {
	st, err := session.GetOrCreate(ctx, e.Store, sessionID)
	if err != nil {
		return nil, err
	}
	conv := e.conversation(st.ID)

	if !conv.mu.TryLock() {
		return &ExchangeResult{SessionID: st.ID, State: conv.getState(), Messages: st.History, UI: conv.getActiveForm()}, nil
	}
	defer conv.mu.Unlock()

	if st.BootstrapDone || len(st.History) > 0 {
		return &ExchangeResult{SessionID: st.ID, State: StateIdle, Messages: st.History, UI: conv.getActiveForm()}, nil
	}

	conv.setState(StateBootstrapping)
	defer conv.setState(StateIdle)

	st.BootstrapDone = true
	if err := e.saveState(ctx, st); err != nil {
		return nil, err
	}

	body := bootstrapStart
	if st.IsTriageCompleted() {
		body = bootstrapResume
	}

	startID := fmt.Sprintf("start_%d", time.Now().UnixMilli())
	payload := e.buildPayload(st, startID, body, nil, page, nil, "")

	appended := e.exchange(ctx, conv, st, payload, connectionErrorText)
	return &ExchangeResult{SessionID: st.ID, State: StateIdle, Messages: appended, UI: conv.getActiveForm()}, nil
}

// SendText appends a user message and round-trips it to the automation webhook.
// Webhook failures do not surface as errors: a fixed connection-error reply is
// appended instead, per the widget contract.
func (e *Engine) SendText(ctx context.Context, sessionID, text string, page *models.PageContext) (*ExchangeResult, error) {
	if text == "" {
		return nil, errors.New("empty message")
	}
	st, err := session.GetOrCreate(ctx, e.Store, sessionID)
	if err != nil {
		return nil, err
	}
	conv := e.conversation(st.ID)

	if !conv.mu.TryLock() {
		return nil, ErrBusy
	}
	defer conv.mu.Unlock()

	conv.setState(StateAwaitingReply)
	defer conv.setState(StateIdle)

	userMsg := models.Message{
		ID:        strconv.FormatInt(time.Now().UnixMilli(), 10),
		Content:   text,
		Sender:    models.SenderUser,
		Timestamp: time.Now().UnixMilli(),
	}
	e.append(ctx, st, userMsg)

	payload := e.buildPayload(st, userMsg.ID, userMsg.Content, st.History, page, nil, "")

	appended := e.exchange(ctx, conv, st, payload, connectionErrorText)
	result := append([]models.Message{userMsg}, appended...)
	return &ExchangeResult{SessionID: st.ID, State: StateIdle, Messages: result, UI: conv.getActiveForm()}, nil
}

// SubmitForm validates the answers against the active form and routes them to
// the webhook with the human-readable summary as the conversation body. On
// success the triage is marked complete and the form cleared; on webhook failure
// the form stays active so the visitor can retry.
func (e *Engine) SubmitForm(ctx context.Context, sessionID, formID string, values models.TriageFormValues, page *models.PageContext) (*ExchangeResult, error) {
	st, err := session.GetOrCreate(ctx, e.Store, sessionID)
	if err != nil {
		return nil, err
	}
	conv := e.conversation(st.ID)

	if !conv.mu.TryLock() {
		return nil, ErrBusy
	}
	defer conv.mu.Unlock()

	form := conv.getActiveForm()
	if form == nil || (formID != "" && formID != form.ID) {
		return nil, ErrNoActiveForm
	}
	if missing := forms.MissingRequired(form, values); len(missing) > 0 {
		return nil, &ErrMissingFields{Fields: missing}
	}

	conv.setState(StateAwaitingReply)
	defer conv.setState(StateIdle)

	summary := forms.Summary(form, values)

	userMsg := models.Message{
		ID:        strconv.FormatInt(time.Now().UnixMilli(), 10),
		Content:   "Respondi a triagem ✅",
		Sender:    models.SenderUser,
		Timestamp: time.Now().UnixMilli(),
	}
	e.append(ctx, st, userMsg)

	// Persisted before the webhook call so a reload mid-flight can resume.
	st.SetTriage(values)
	if err := e.saveState(ctx, st); err != nil {
		log.Printf("Error persisting triage for %s: %v", st.ID, err)
	}

	payload := e.buildPayload(st, userMsg.ID, summary, st.History, page, values, form.ID)

	exCtx, cancel := context.WithCancel(ctx)
	conv.setCancel(cancel)
	defer cancel()

	resp, err := e.Client.SendChat(exCtx, payload)
	if err != nil {
		log.Printf("Form webhook error for %s: %v", st.ID, err)
		errMsg := e.appendAI(exCtx, st, formErrorText)
		result := append([]models.Message{userMsg}, errMsg)
		return &ExchangeResult{SessionID: st.ID, State: StateIdle, Messages: result, UI: conv.getActiveForm()}, nil
	}

	st.TriageCompleted = true
	if err := e.saveState(ctx, st); err != nil {
		log.Printf("Error marking triage complete for %s: %v", st.ID, err)
	}
	conv.setActiveForm(nil)

	appended := e.processResponse(exCtx, conv, st, resp)
	result := append([]models.Message{userMsg}, appended...)
	return &ExchangeResult{SessionID: st.ID, State: StateIdle, Messages: result, UI: conv.getActiveForm()}, nil
}

// Reset wipes the session and starts over with a fresh identifier. Any paced
// reveal in progress is cancelled first.
func (e *Engine) Reset(ctx context.Context, sessionID string) (string, error) {
	conv := e.conversation(sessionID)
	conv.cancelInFlight()
	conv.mu.Lock()
	defer conv.mu.Unlock()

	if err := e.Store.Delete(ctx, sessionID); err != nil {
		return "", err
	}
	conv.setActiveForm(nil)
	conv.setState(StateIdle)

	e.mu.Lock()
	delete(e.convs, sessionID)
	e.mu.Unlock()

	st := &session.State{ID: session.NewSessionID()}
	if err := e.Store.Create(ctx, st); err != nil {
		return "", err
	}

	e.Sink.Reset(sessionID)
	log.Printf("Session %s reset, new session %s", sessionID, st.ID)
	return st.ID, nil
}

// History returns the full on-screen message list for a session.
func (e *Engine) History(ctx context.Context, sessionID string) ([]models.Message, *models.ChatUI, error) {
	st, err := e.Store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, session.ErrNotFound
	}
	return st.History, e.conversation(sessionID).getActiveForm(), nil
}

// exchange performs the webhook round-trip and response processing shared by
// Open and SendText, converting any failure into the given fallback reply.
func (e *Engine) exchange(ctx context.Context, conv *conversation, st *session.State, payload *models.OutboundPayload, fallback string) []models.Message {
	exCtx, cancel := context.WithCancel(ctx)
	conv.setCancel(cancel)
	defer cancel()

	resp, err := e.Client.SendChat(exCtx, payload)
	if err != nil {
		log.Printf("Webhook error for %s: %v", st.ID, err)
		return []models.Message{e.appendAI(exCtx, st, fallback)}
	}
	return e.processResponse(exCtx, conv, st, resp)
}

// processResponse interprets one webhook reply: an optional ui directive plus
// zero or more display messages revealed sequentially with typing pauses.
// An active form from an earlier reply is deliberately NOT cleared when a later
// reply carries no ui field.
func (e *Engine) processResponse(ctx context.Context, conv *conversation, st *session.State, resp *models.WebhookResponse) []models.Message {
	if resp.UI != nil {
		if err := forms.ValidateSchema(resp.UI); err != nil {
			log.Printf("Ignoring malformed ui directive for %s: %v", st.ID, err)
		} else {
			conv.setActiveForm(resp.UI)
			e.Sink.UI(st.ID, resp.UI)
		}
	}

	var appended []models.Message
	for _, msg := range resp.ResolveMessages() {
		delay := e.DefaultDelay
		if msg.Delay > 0 {
			delay = time.Duration(msg.Delay) * time.Millisecond
		}

		e.Sink.Typing(st.ID, true)
		if !wait(ctx, delay) {
			e.Sink.Typing(st.ID, false)
			break
		}
		e.Sink.Typing(st.ID, false)

		appended = append(appended, e.appendAI(ctx, st, msg.Text))

		if !wait(ctx, e.MessagePause) {
			break
		}
	}
	return appended
}

// append stores a message in the session history and fans it out.
func (e *Engine) append(ctx context.Context, st *session.State, msg models.Message) {
	st.History = append(st.History, msg)
	if err := e.saveState(ctx, st); err != nil {
		log.Printf("Error saving history for %s: %v", st.ID, err)
	}
	e.Sink.Message(st.ID, msg)
	if e.Recorder != nil {
		e.Recorder.RecordMessage(st.ID, msg)
	}
}

func (e *Engine) appendAI(ctx context.Context, st *session.State, text string) models.Message {
	msg := models.Message{
		ID:        fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8]),
		Content:   text,
		Sender:    models.SenderAI,
		Timestamp: time.Now().UnixMilli(),
	}
	e.append(ctx, st, msg)
	return msg
}

// saveState updates the session, retrying once on a version conflict by
// re-reading and re-applying this writer's fields. Two tabs racing is accepted
// best-effort behavior; the retry keeps the second writer from silently losing.
func (e *Engine) saveState(ctx context.Context, st *session.State) error {
	err := e.Store.Update(ctx, st)
	if !errors.Is(err, session.ErrVersionConflict) {
		return err
	}

	current, getErr := e.Store.Get(ctx, st.ID)
	if getErr != nil || current == nil {
		return err
	}
	st.Version = current.Version
	return e.Store.Update(ctx, st)
}

// wait sleeps for d unless the context is cancelled first. Returns false on
// cancellation so callers stop revealing further messages.
func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
