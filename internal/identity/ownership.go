// Package identity integrates the engine with the external identity and
// ownership registry. The engine itself never stores agent identities; it
// only asks the registry whether a requester is allowed to open a
// validation for a subject, and verifies bearer tokens minted with the
// attestation network's shared callback secret.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// OwnershipChecker answers whether a requester controls a subject. A nil
// checker disables the gate entirely: any requester may open validations.
type OwnershipChecker interface {
	IsController(ctx context.Context, requester, subject string) (bool, error)
}

// HTTPRegistry queries an external identity registry over HTTP.
type HTTPRegistry struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPRegistry creates a checker for the registry at baseURL.
func NewHTTPRegistry(baseURL string, logger *zap.Logger) *HTTPRegistry {
	return &HTTPRegistry{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// IsController asks the registry whether requester controls subject.
// A 404 from the registry means "no such relation", not an error.
func (r *HTTPRegistry) IsController(ctx context.Context, requester, subject string) (bool, error) {
	u := fmt.Sprintf("%s/api/v1/controllers?subject=%s&requester=%s",
		r.baseURL, url.QueryEscape(subject), url.QueryEscape(requester))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("identity registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("identity registry: HTTP %d", resp.StatusCode)
	}

	var out struct {
		IsController bool `json:"is_controller"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out); err != nil {
		return false, fmt.Errorf("identity registry: decode response: %w", err)
	}

	r.logger.Debug("identity: controller lookup",
		zap.String("subject", subject),
		zap.String("requester", requester),
		zap.Bool("is_controller", out.IsController),
	)
	return out.IsController, nil
}
