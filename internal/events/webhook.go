package events

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookConfig configures WebhookSink.
type WebhookConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Endpoint string        `yaml:"endpoint"`
	Secret   string        `yaml:"secret"`
	Timeout  time.Duration `yaml:"timeout"`
	Events   []string      `yaml:"events"`
}

// WebhookSink posts events to an HTTP endpoint, typically the sync worker.
// With a secret the body is signed with HMAC-SHA256 in X-Insights-Signature.
type WebhookSink struct {
	Endpoint string
	Secret   string
	Client   *resty.Client
}

// NewWebhookSink creates a WebhookSink from config, or nil when disabled.
func NewWebhookSink(c WebhookConfig) *WebhookSink {
	if !c.Enabled || c.Endpoint == "" {
		return nil
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	cli := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "insights-events")
	return &WebhookSink{Endpoint: c.Endpoint, Secret: c.Secret, Client: cli}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func (s *WebhookSink) Emit(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req := s.Client.R().
		SetContext(ctx).
		SetHeader("X-Insights-Event", e.Name).
		SetHeader("X-Insights-Delivery", e.ID).
		SetBody(data)
	if e.Tenant != "" {
		req.SetHeader("X-Tenant-ID", e.Tenant)
	}
	if s.Secret != "" {
		req.SetHeader("X-Insights-Signature", Sign(s.Secret, data))
	}
	resp, err := req.Post(s.Endpoint)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook %s: %s", e.Name, resp.Status())
	}
	return nil
}
