// Package whatsapp sends outbound messages through a gowa-compatible
// WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
)

// Client talks to the WhatsApp gateway. A nil client (unconfigured gateway)
// reports itself as not configured instead of erroring.
type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient creates the gateway client, or nil when no gateway URL is set.
func NewClient(cfg config.ChannelConfig, log *logger.Logger) *Client {
	if cfg.GetChannelURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetChannelURL(), "/"),
		apiKey:   cfg.GetChannelAPIKey(),
		deviceID: cfg.GetChannelDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Configured reports whether the gateway is usable.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// SendMessage delivers one message to a phone number via the gateway.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if !c.Configured() {
		return fmt.Errorf("whatsapp gateway not configured")
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+")

	payload := gowaRequest{
		Phone:   normalized,
		Message: message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp sent via gowa", "phone", normalized)
	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
