package events

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
	"net/url"
	"time"
)

const (
	// SignatureHeader carries "sha256=<hex HMAC of the body>".
	SignatureHeader = "X-Headwind-Signature"

	// DeliveryHeader carries a unique ID per delivery attempt series.
	DeliveryHeader = "X-Headwind-Delivery"

	// EventHeader carries the event type.
	EventHeader = "X-Headwind-Event"

	defaultWebhookTimeout = 10 * time.Second
	maxRetries            = 2
	userAgent             = "headwind"
)

// WebhookSenderConfig configures a WebhookSender.
type WebhookSenderConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration

	// RetryDelay is the base of the linear backoff between attempts.
	RetryDelay time.Duration
}

// WebhookSender POSTs events as JSON to an HTTP endpoint.
type WebhookSender struct {
	httpClient *http.Client
	url        string
	secret     []byte
	retryDelay time.Duration
}

// NewWebhookSender validates the configuration and creates a sender.
func NewWebhookSender(cfg WebhookSenderConfig) (*WebhookSender, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &WebhookSender{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		secret:     []byte(cfg.Secret),
		retryDelay: retryDelay,
	}, nil
}

func (ws *WebhookSender) Name() string { return "webhook" }

// Send delivers ev, retrying transient failures (connection errors and 5xx
// responses) with a linear backoff.
func (ws *WebhookSender) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries + 1 {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * ws.retryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		lastErr = ws.post(ctx, ev, body)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("webhook send failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (ws *WebhookSender) post(ctx context.Context, ev Event, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(DeliveryHeader, ev.ID)
	req.Header.Set(EventHeader, string(ev.Type))
	if len(ws.secret) > 0 {
		req.Header.Set(SignatureHeader, Sign(ws.secret, body))
	}

	resp, err := ws.httpClient.Do(req)
	if err != nil {
		return &webhookError{err: err, retryable: true}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &webhookError{
		err:       fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500,
	}
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type webhookError struct {
	err       error
	retryable bool
}

func (e *webhookError) Error() string { return e.err.Error() }
func (e *webhookError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.retryable
	}
	return true
}
