// Package attestnet opens validation tasks on the external attestation
// network. The network performs the attested fetch and proof generation,
// then delivers a CompletionEvent to the engine's callback endpoint; the
// engine never re-verifies cryptographic validity itself.
package attestnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// TaskRequest describes one attestation round to open.
type TaskRequest struct {
	RuleID      int64  `json:"rule_id"`
	DataKey     string `json:"data_key"`
	Subject     string `json:"subject"`
	Requester   string `json:"requester,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

// Submitter opens a task on the attestation network and returns the
// network-assigned task identifier.
type Submitter interface {
	Submit(ctx context.Context, req *TaskRequest) (model.TaskID, error)
}

// HTTPSubmitter posts task requests to the network's task API.
type HTTPSubmitter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSubmitter creates a submitter for the given task API endpoint.
// The API key is sent as X-API-Key; pass "" if the network is open.
func NewHTTPSubmitter(endpoint, apiKey string, logger *zap.Logger) *HTTPSubmitter {
	return &HTTPSubmitter{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Submit opens the task and returns the identifier assigned by the network.
func (s *HTTPSubmitter) Submit(ctx context.Context, req *TaskRequest) (model.TaskID, error) {
	var zero model.TaskID

	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("marshal task request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		httpReq.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("attestation network: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return zero, fmt.Errorf("attestation network: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, fmt.Errorf("attestation network: HTTP %d", resp.StatusCode)
	}

	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("attestation network: decode response: %w", err)
	}

	id, err := model.ParseTaskID(out.TaskID)
	if err != nil {
		return zero, fmt.Errorf("attestation network: %w", err)
	}

	s.logger.Debug("attestnet: task opened",
		zap.String("task_id", id.String()),
		zap.Int64("rule_id", req.RuleID),
	)
	return id, nil
}

// LocalSubmitter fabricates task identifiers without a network round trip.
// Development mode only: completions must then be posted by hand (see
// scripts/send-callback.go).
type LocalSubmitter struct {
	counter atomic.Uint64
	logger  *zap.Logger
}

// NewLocalSubmitter creates a LocalSubmitter backed by the given logger.
func NewLocalSubmitter(logger *zap.Logger) *LocalSubmitter {
	return &LocalSubmitter{logger: logger}
}

// Submit derives a unique identifier from the request and a local nonce.
func (s *LocalSubmitter) Submit(_ context.Context, req *TaskRequest) (model.TaskID, error) {
	n := s.counter.Add(1)
	seed := fmt.Sprintf("local|%d|%d|%d|%s|%s", n, time.Now().UnixNano(), req.RuleID, req.Subject, req.DataKey)
	id := model.DigestTaskID([]byte(seed))

	s.logger.Info("attestnet (local — task fabricated)",
		zap.String("task_id", id.String()),
		zap.Int64("rule_id", req.RuleID),
		zap.String("subject", req.Subject),
	)
	return id, nil
}
