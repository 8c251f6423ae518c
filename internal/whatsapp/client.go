// Package whatsapp wraps the WhatsApp Cloud API: the outbound send endpoint,
// webhook verification, and normalization of inbound webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hafizrazali90/team-inbox/internal/model"
	"github.com/hafizrazali90/team-inbox/pkg/logger"
	"github.com/hafizrazali90/team-inbox/pkg/metrics"
)

// Config holds provider credentials, injected at construction.
type Config struct {
	APIBase     string
	PhoneID     string
	Token       string
	VerifyToken string
}

// Client is a thin HTTP client for the provider's send API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a provider client. A nil httpClient gets a default with
// a bounded timeout so a slow provider cannot hold a worker indefinitely.
func NewClient(cfg Config, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log.With("component", "whatsapp"),
	}
}

// APIError carries the provider's diagnostic payload for a rejected send.
type APIError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status %d: %s", e.StatusCode, string(e.Body))
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send dispatches one message to a contact address and returns the
// provider-assigned message id. Non-2xx responses and transport errors are
// surfaced to the caller; nothing is retried here.
func (c *Client) Send(ctx context.Context, to string, spec model.ContentSpec) (string, error) {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              string(spec.Type),
	}
	if spec.Type == model.ContentText {
		payload["text"] = map[string]string{"body": spec.Body}
	} else {
		payload[string(spec.Type)] = map[string]string{"link": spec.MediaURL}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal send payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.APIBase, c.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderSendDuration.WithLabelValues("transport_error").Observe(time.Since(start).Seconds())
		return "", fmt.Errorf("whatsapp send request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}
	metrics.ProviderSendDuration.WithLabelValues(http.StatusText(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warnw("provider rejected send", "status", resp.StatusCode, "to", to)
		return "", &APIError{StatusCode: resp.StatusCode, Body: json.RawMessage(respBody)}
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}
	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		return "", fmt.Errorf("provider response missing message id")
	}

	return parsed.Messages[0].ID, nil
}

// VerifyToken checks the webhook verification handshake parameters.
func (c *Client) VerifyToken(mode, token string) bool {
	return mode == "subscribe" && token != "" && token == c.cfg.VerifyToken
}
