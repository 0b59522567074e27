// Package voice turns recorded utterances into composer text for the chat
// widget. Recognition is optional: without a configured backend every
// invocation surfaces ErrUnavailable and the composer is left untouched.
package voice

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Fixed recognition locale for the site's audience.
const Locale = "pt-BR"

var (
	ErrUnavailable = errors.New("reconhecimento de voz não suportado")
	ErrListening   = errors.New("already listening")
)

// Transcriber converts one finished utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Adapter wraps a Transcriber with the widget's single-utterance semantics: one
// utterance at a time, listening indicator cleared on both success and failure,
// transcript appended to whatever the visitor already typed.
type Adapter struct {
	transcriber Transcriber

	mu        sync.Mutex
	listening bool
}

func NewAdapter(t Transcriber) *Adapter {
	return &Adapter{transcriber: t}
}

// Available reports whether a recognition backend is configured.
func (a *Adapter) Available() bool {
	return a != nil && a.transcriber != nil
}

// Listening reports whether an utterance is being processed.
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// Listen transcribes one utterance and returns the composer text with the
// transcript appended (space-joined when the composer is non-empty). On any
// error the composer comes back unchanged and the listening flag is cleared.
func (a *Adapter) Listen(ctx context.Context, composer string, audio io.Reader, filename string) (string, error) {
	if !a.Available() {
		return composer, ErrUnavailable
	}

	a.mu.Lock()
	if a.listening {
		a.mu.Unlock()
		return composer, ErrListening
	}
	a.listening = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.listening = false
		a.mu.Unlock()
	}()

	transcript, err := a.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		return composer, err
	}
	return AppendTranscript(composer, transcript), nil
}

// AppendTranscript joins a finished transcript onto existing composer text.
func AppendTranscript(composer, transcript string) string {
	if transcript == "" {
		return composer
	}
	if composer == "" {
		return transcript
	}
	return composer + " " + transcript
}
