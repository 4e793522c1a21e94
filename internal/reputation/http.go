package reputation

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// HTTPReporter POSTs entries to a reputation service endpoint with an
// HMAC-SHA256 payload signature. Transient failures (network errors, 5xx,
// 429) are retried with fibonacci backoff; 4xx responses are permanent.
type HTTPReporter struct {
	endpoint   string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPReporter creates a reporter for the given endpoint. The secret
// signs each payload; pass "" to send unsigned.
func NewHTTPReporter(endpoint, secret string, logger *zap.Logger) *HTTPReporter {
	return &HTTPReporter{
		endpoint:   endpoint,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// SetOAuth swaps the underlying HTTP client for one that injects
// client-credentials bearer tokens on every request.
func (r *HTTPReporter) SetOAuth(tokenURL, clientID, clientSecret string) {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, r.httpClient)
	r.httpClient = cfg.Client(ctx)
}

// Report delivers one entry, retrying transient failures.
func (r *HTTPReporter) Report(ctx context.Context, entry *Entry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	b := retry.NewFibonacci(500 * time.Millisecond)
	if err := retry.Do(ctx, retry.WithMaxRetries(3, b), func(ctx context.Context) error {
		return r.post(ctx, body)
	}); err != nil {
		return fmt.Errorf("report score for %s: %w", entry.Subject, err)
	}

	r.logger.Debug("reputation: entry forwarded",
		zap.String("subject", entry.Subject),
		zap.Int("score", entry.Score),
	)
	return nil
}

// post performs a single delivery attempt.
func (r *HTTPReporter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.secret != "" {
		req.Header.Set("X-Veritas-Signature", signPayload(body, r.secret))
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("HTTP %d", resp.StatusCode))
	default:
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
}

// signPayload computes an HMAC-SHA256 signature.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
