// Package tagging pushes leads into Brevo contact segments after a
// successful outreach send.
package tagging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"outreach_backend/platform/config"
)

const contactsEndpoint = "https://api.brevo.com/v3/contacts"

// Client upserts contacts against the Brevo contacts API. A nil client
// (tagging disabled) reports every call as skipped.
type Client struct {
	apiKey string
	listID int
	client *http.Client
}

type contactRequest struct {
	Email         string            `json:"email"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	ListIDs       []int             `json:"listIds,omitempty"`
	UpdateEnabled bool              `json:"updateEnabled"`
}

// NewClient creates the tagging client, or nil when no API key is set.
func NewClient(cfg config.TaggingConfig) *Client {
	if !cfg.IsTaggingEnabled() {
		return nil
	}

	return &Client{
		apiKey: cfg.GetBrevoAPIKey(),
		listID: cfg.GetBrevoListID(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// UpsertContact creates or updates a contact with the given tags. The bool
// result reports whether the call actually ran; (false, nil) means tagging
// is not configured.
func (c *Client) UpsertContact(ctx context.Context, email, name string, tags []string) (bool, error) {
	if c == nil || c.apiKey == "" {
		return false, nil
	}

	payload := contactRequest{
		Email:         email,
		Tags:          tags,
		UpdateEnabled: true,
	}
	if name != "" {
		payload.Attributes = map[string]string{"FIRSTNAME": name}
	}
	if c.listID > 0 {
		payload.ListIDs = []int{c.listID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return true, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, contactsEndpoint, bytes.NewReader(body))
	if err != nil {
		return true, err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return true, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return true, fmt.Errorf("brevo contact upsert failed: status %d: %s", resp.StatusCode, string(data))
	}

	return true, nil
}
