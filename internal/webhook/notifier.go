// Package webhook delivers signed account events to the configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"authentik-admin/internal/metrics"
	"authentik-admin/internal/settings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const SignatureHeader = "X-Webhook-Signature"

var (
	ErrRateLimited = errors.New("webhook rate limit exceeded")
	ErrDisabled    = errors.New("webhook disabled")
)

// Event is the JSON body of a delivery.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// SettingsSource is read on every dispatch so toggles apply immediately.
type SettingsSource interface {
	Get() settings.Settings
	EventEnabled(event string) bool
}

type Notifier struct {
	settings SettingsSource
	client   *http.Client
	limiter  *rate.Limiter
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewNotifier allows perMinute deliveries per minute with an equal burst.
func NewNotifier(src SettingsSource, perMinute int, logger *logrus.Logger, m *metrics.Metrics) *Notifier {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &Notifier{
		settings: src,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Notify sends the event and logs the outcome.
func (n *Notifier) Notify(ctx context.Context, event string, data map[string]any) {
	err := n.Send(ctx, event, data)
	switch {
	case errors.Is(err, ErrDisabled):
		n.logger.WithField("event", event).Debug("webhook: event disabled")
	case err != nil:
		n.metrics.WebhookDelivered(event, false)
		n.logger.WithError(err).WithField("event", event).Warn("webhook: delivery failed")
	default:
		n.metrics.WebhookDelivered(event, true)
		n.logger.WithField("event", event).Info("webhook: delivered")
	}
}

// Send delivers one event and returns the delivery error.
func (n *Notifier) Send(ctx context.Context, event string, data map[string]any) error {
	if !n.settings.EventEnabled(event) {
		return ErrDisabled
	}
	if !n.limiter.Allow() {
		return ErrRateLimited
	}
	current := n.settings.Get()

	payload, err := json.Marshal(Event{
		ID:        uuid.NewString(),
		Type:      event,
		Timestamp: n.now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, current.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if current.WebhookSecret != "" {
		req.Header.Set(SignatureHeader, Sign(payload, current.WebhookSecret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}
