package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"contest-portal/internal/contest"
)

const (
	// SignatureHeader carries "sha256=<hex>" when a secret is configured.
	SignatureHeader = "X-Webhook-Signature"
	userAgent       = "contest-portal-webhook/1.0"
	// DefaultPlatform tags payloads with the messaging platform identity
	// fields come from.
	DefaultPlatform = "tg"
)

// WebhookNotifier POSTs each new submission as JSON to a fixed endpoint.
type WebhookNotifier struct {
	URL      string
	Secret   string
	Platform string
	Client   *http.Client
	Log      *slog.Logger
	Now      func() time.Time
}

// NewWebhookNotifier returns a notifier with an http.Client bounded by timeout.
func NewWebhookNotifier(url, secret string, timeout time.Duration, log *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		URL:      url,
		Secret:   secret,
		Platform: DefaultPlatform,
		Client:   &http.Client{Timeout: timeout},
		Log:      log,
		Now:      time.Now,
	}
}

// Notify implements contest.Notifier. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, s contest.Submission) error {
	body, err := json.Marshal(NewPayload(n.Platform, s, n.Now()))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.Secret, body))
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	n.Log.Info("webhook delivered",
		slog.String("id", s.ID),
		slog.Int("status", resp.StatusCode))
	return nil
}

// Sign returns "sha256=" followed by the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
