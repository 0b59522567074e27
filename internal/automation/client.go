package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/pkg/errors"

	"concierge-gateway/internal/config"
	"concierge-gateway/pkg/models"
)

// Client talks to the external automation system (n8n webhooks). One attempt per
// call, no retries; the caller surfaces a user-visible fallback on failure.
type Client struct {
	Config     *config.Config
	HTTPClient *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		Config:     cfg,
		HTTPClient: &http.Client{},
	}
}

func (c *Client) postJSON(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling payload")
	}

	ctx, cancel := context.WithTimeout(ctx, c.Config.WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	// The response is read in full before the timeout context is released.
	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	return resp, nil
}

// SendChat POSTs a conversation envelope to the chat webhook and decodes the
// reply. A non-JSON body is not an error: the raw text becomes the reply content.
func (c *Client) SendChat(ctx context.Context, payload *models.OutboundPayload) (*models.WebhookResponse, error) {
	resp, err := c.postJSON(ctx, c.Config.ChatWebhookURL, payload)
	if err != nil {
		return nil, errors.Wrap(err, "chat webhook")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("chat webhook: unexpected status %s", resp.Status)
	}

	var decoded models.WebhookResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Upstream may answer a bare JSON string or plain text interchangeably.
		var asString string
		if err := json.Unmarshal(body, &asString); err == nil {
			return &models.WebhookResponse{Text: asString, Raw: body}, nil
		}
		return &models.WebhookResponse{Text: string(body), Raw: body}, nil
	}
	decoded.Raw = body
	return &decoded, nil
}

// LeadRelay carries the upstream's answer to a forwarded lead so the handler can
// relay it verbatim.
type LeadRelay struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// ForwardLead forwards a normalized lead body to the lead webhook. Upstream
// non-2xx statuses are returned in the relay, not as an error; only transport
// failures error out.
func (c *Client) ForwardLead(ctx context.Context, body map[string]interface{}) (*LeadRelay, error) {
	resp, err := c.postJSON(ctx, c.Config.LeadWebhookURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "lead webhook")
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Error reading lead webhook response: %v", err)
		respBody = nil
	}

	return &LeadRelay{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
