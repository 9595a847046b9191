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

	"github.com/ogulcanaydogan/mbfid-toolkit/pkg/schema"
)

// Format selects the webhook payload format.
type Format string

const (
	FormatGeneric   Format = "generic"
	FormatPagerDuty Format = "pagerduty"
	FormatOpsgenie  Format = "opsgenie"
)

// ParseFormat accepts the config spelling of a payload format.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatGeneric:
		return FormatGeneric, nil
	case FormatPagerDuty, FormatOpsgenie:
		return Format(raw), nil
	default:
		return "", fmt.Errorf("webhook format %q (expected generic|pagerduty|opsgenie)", raw)
	}
}

// Exporter delivers fault notices to an HTTP webhook endpoint.
type Exporter struct {
	URL      string
	Secret   string
	Format   Format
	MaxRetry int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
	// Limiter caps deliveries per second when set.
	Limiter *RateLimiter
	client  *http.Client
}

// New creates a webhook exporter with sensible defaults.
func New(url, secret string, format Format, timeoutMS int) *Exporter {
	if timeoutMS <= 0 {
		timeoutMS = 5000
	}
	if format == "" {
		format = FormatGeneric
	}
	return &Exporter{
		URL:      url,
		Secret:   secret,
		Format:   format,
		MaxRetry: 3,
		Backoff:  time.Second,
		client: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
		},
	}
}

// nonRetryableError wraps errors that should not be retried (e.g., 4xx).
type nonRetryableError struct{ err error }

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// Send delivers one notice, retrying server errors with exponential backoff.
func (e *Exporter) Send(ctx context.Context, notice schema.FaultNotice) error {
	payload, contentType, err := e.buildPayload(notice)
	if err != nil {
		return fmt.Errorf("build webhook payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < e.MaxRetry; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(e.Backoff << uint(attempt-1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = e.doPost(ctx, payload, contentType)
		if lastErr == nil {
			return nil
		}
		var permanent *nonRetryableError
		if errors.As(lastErr, &permanent) {
			return lastErr
		}
	}
	return fmt.Errorf("webhook delivery failed after %d attempts: %w", e.MaxRetry, lastErr)
}

// SendAll delivers notices in order and stops at the first failure.
func (e *Exporter) SendAll(ctx context.Context, notices []schema.FaultNotice) error {
	for _, n := range notices {
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := e.Send(ctx, n); err != nil {
			return fmt.Errorf("notice %s/%s: %w", n.ExampleID, n.Key, err)
		}
	}
	return nil
}

func (e *Exporter) buildPayload(notice schema.FaultNotice) ([]byte, string, error) {
	switch e.Format {
	case FormatPagerDuty:
		return BuildPagerDutyPayload(notice)
	case FormatOpsgenie:
		return BuildOpsgeniePayload(notice)
	default:
		data, err := json.Marshal(notice)
		return data, "application/json", err
	}
}

func (e *Exporter) doPost(ctx context.Context, payload []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "mbfid-toolkit/webhook")

	if e.Secret != "" {
		sig := computeHMAC(payload, e.Secret)
		req.Header.Set("X-Webhook-Signature", sig)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain response body: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server error: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return &nonRetryableError{err: fmt.Errorf("client error: HTTP %d", resp.StatusCode)}
	}
	return nil
}

func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks an HMAC-SHA256 signature against a payload and secret.
func VerifyHMAC(payload []byte, secret, signature string) bool {
	expected := computeHMAC(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
