// Package webhook delivers signed job completion notifications over HTTP.
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
	"log/slog"
	"net/http"
	"time"

	"clipforge/internal/logging"
)

// SignatureHeader carries the HMAC of the request body.
const SignatureHeader = "X-Webhook-Signature"

// ErrDeliveryFailed reports that every delivery attempt was rejected.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

var deliveryDelays = []time.Duration{
	time.Second,
	5 * time.Second,
	30 * time.Second,
	5 * time.Minute,
	30 * time.Minute,
}

// Notifier posts JSON payloads with an HMAC-SHA256 signature and retries
// rejected deliveries on a widening schedule.
type Notifier struct {
	client *http.Client
	secret string
	logger *slog.Logger
	sleep  func(time.Duration)
}

// NewNotifier builds a notifier. The timeout bounds each individual
// delivery attempt.
func NewNotifier(secret string, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		secret: secret,
		logger: logging.NewComponentLogger(logger, "webhook"),
		sleep:  time.Sleep,
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notify serializes payload and delivers it to url, retrying until a 2xx
// response or the schedule is exhausted. The signature covers the exact
// bytes sent.
func (n *Notifier) Notify(ctx context.Context, url string, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}
	body := bytes.TrimRight(buf.Bytes(), "\n")
	signature := Sign(n.secret, body)

	attempts := len(deliveryDelays)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = n.deliver(ctx, url, body, signature)
		if lastErr == nil {
			if attempt > 1 {
				n.logger.Info("webhook delivered after retry",
					logging.String("url", url), logging.Int("attempt", attempt))
			}
			return nil
		}
		n.logger.Warn("webhook delivery attempt failed",
			logging.String("url", url),
			logging.Int("attempt", attempt),
			logging.Error(lastErr))
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrDeliveryFailed, ctx.Err())
			default:
			}
			n.sleep(deliveryDelays[attempt-1])
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrDeliveryFailed, attempts, lastErr)
}

func (n *Notifier) deliver(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
