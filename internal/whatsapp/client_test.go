package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"outreach_backend/platform/logger"
)

type channelCfg struct {
	url      string
	apiKey   string
	deviceID string
}

func (c channelCfg) GetChannelURL() string      { return c.url }
func (c channelCfg) GetChannelAPIKey() string   { return c.apiKey }
func (c channelCfg) GetChannelDeviceID() string { return c.deviceID }

func TestNewClientUnconfigured(t *testing.T) {
	client := NewClient(channelCfg{}, logger.New("development"))
	if client != nil {
		t.Fatalf("expected nil client without gateway URL")
	}
	if client.Configured() {
		t.Fatalf("nil client must report not configured")
	}
}

func TestSendMessagePostsNormalizedPhone(t *testing.T) {
	var got gowaRequest
	var auth, device string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(channelCfg{url: server.URL, apiKey: "user:pass", deviceID: "device-1"}, logger.New("development"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.SendMessage(ctx, "06 12 34 56 78", "hoi Anna"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got.Phone != "31612345678" {
		t.Fatalf("expected normalized phone without plus, got %q", got.Phone)
	}
	if got.Message != "hoi Anna" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if auth == "" || device != "device-1" {
		t.Fatalf("expected auth and device headers, got auth=%q device=%q", auth, device)
	}
}

func TestSendMessageGatewayErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "device offline", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(channelCfg{url: server.URL}, logger.New("development"))
	if err := client.SendMessage(context.Background(), "+31612345678", "hoi"); err == nil {
		t.Fatalf("expected error on gateway failure")
	}
}
