package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMessagesPrefersExplicitArray(t *testing.T) {
	resp := &WebhookResponse{
		Messages: []WebhookMessage{{Text: "primeira", Delay: 500}, {Text: "segunda"}},
		Text:     "ignored",
	}

	got := resp.ResolveMessages()
	assert.Equal(t, []WebhookMessage{{Text: "primeira", Delay: 500}, {Text: "segunda"}}, got)
}

func TestResolveMessagesFallbackOrder(t *testing.T) {
	tests := []struct {
		name string
		resp WebhookResponse
		want string
	}{
		{"text wins", WebhookResponse{Text: "a", Message: "b", Output: "c", Response: "d"}, "a"},
		{"then message", WebhookResponse{Message: "b", Output: "c", Response: "d"}, "b"},
		{"then output", WebhookResponse{Output: "c", Response: "d"}, "c"},
		{"then response", WebhookResponse{Response: "d"}, "d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.resp.ResolveMessages()
			assert.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Text)
		})
	}
}

func TestResolveMessagesDumpsRawAsLastResort(t *testing.T) {
	resp := &WebhookResponse{Raw: []byte(`{"unexpected":"shape"}`)}

	got := resp.ResolveMessages()
	assert.Len(t, got, 1)
	assert.Equal(t, `{"unexpected":"shape"}`, got[0].Text)
}
