// Package client provides the Veritas Go SDK for opening validations,
// submitting attestation completions, administering scoring rules, and
// reading the completion journal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound is returned when the engine reports 404 for the requested
// rule, task, check, or journal entry.
var ErrNotFound = errors.New("not found")

// ErrAttestationFailed is returned by SubmitCallback when the completion
// carried success=false. The task remains pending and may be retried.
var ErrAttestationFailed = errors.New("attestation failed")

// ErrCompletionRejected is returned by SubmitCallback when the engine
// refused the completion (inactive rule or stale payload). The task remains
// pending.
var ErrCompletionRejected = errors.New("completion rejected")

// Task mirrors the engine's task record.
type Task struct {
	TaskID        string     `json:"task_id"`
	RuleID        int64      `json:"rule_id"`
	Subject       string     `json:"subject"`
	Requester     string     `json:"requester,omitempty"`
	Status        string     `json:"status"`
	Score         *int       `json:"score,omitempty"`
	PayloadDigest string     `json:"payload_digest,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// Rule mirrors the engine's rule record.
type Rule struct {
	RuleID      int64     `json:"rule_id"`
	DataKey     string    `json:"data_key"`
	MaxAge      int64     `json:"max_age_seconds"`
	Active      bool      `json:"active"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Check mirrors one check binding on a rule.
type Check struct {
	CheckID int64           `json:"check_id"`
	RuleID  int64           `json:"rule_id"`
	Kind    string          `json:"kind"`
	Params  json.RawMessage `json:"params"`
	Weight  int64           `json:"weight"`
	Active  bool            `json:"active"`
}

// CheckOutcome is the per-check result inside a ScoreReport.
type CheckOutcome struct {
	CheckID int64  `json:"check_id"`
	Kind    string `json:"kind"`
	Weight  int64  `json:"weight"`
	Passed  bool   `json:"passed"`
	Value   string `json:"value"`
	Error   string `json:"error,omitempty"`
}

// ScoreReport is the result of a scoring pass.
type ScoreReport struct {
	RuleID      int64          `json:"rule_id"`
	Score       int            `json:"score"`
	TotalWeight int64          `json:"total_weight"`
	MaxWeight   int64          `json:"max_weight"`
	Checks      []CheckOutcome `json:"checks"`
}

// OpenValidationRequest is the payload for OpenValidation.
type OpenValidationRequest struct {
	RuleID    int64  `json:"rule_id"`
	Subject   string `json:"subject"`
	Requester string `json:"requester,omitempty"`
}

// CreateRuleRequest is the payload for CreateRule.
type CreateRuleRequest struct {
	DataKey     string `json:"data_key"`
	MaxAge      int64  `json:"max_age_seconds"`
	Description string `json:"description"`
}

// AddCheckRequest is the payload for AddCheck.
type AddCheckRequest struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
	Weight int64           `json:"weight"`
}

// Callback is an attestation completion submitted on behalf of the network.
// Timestamp is epoch seconds (milliseconds are also accepted).
type Callback struct {
	TaskID    string `json:"task_id"`
	Recipient string `json:"recipient,omitempty"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
	Success   bool   `json:"success"`
}

// CallbackResult reports what the engine did with a completion: Status is
// "processed" on first acceptance or "already_processed" on replay.
type CallbackResult struct {
	Status string `json:"status"`
	Task   *Task  `json:"task"`
}

// JournalOverview summarizes the completion journal.
type JournalOverview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

// JournalEntry is one record in the hash-chained completion journal.
type JournalEntry struct {
	Index         int       `json:"index"`
	Timestamp     time.Time `json:"timestamp"`
	TaskID        string    `json:"task_id"`
	Subject       string    `json:"subject"`
	RuleID        int64     `json:"rule_id"`
	Score         int       `json:"score"`
	PayloadDigest string    `json:"payload_digest"`
	Forwarded     bool      `json:"forwarded"`
	PrevHash      string    `json:"prev_hash"`
	Hash          string    `json:"hash"`
}

// Client is the Veritas SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	adminSecret string
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithAdminSecret attaches the deployment's admin secret to every request,
// unlocking the rule administration endpoints.
func WithAdminSecret(secret string) Option {
	return func(c *Client) error {
		c.adminSecret = secret
		return nil
	}
}

// WithBearerToken attaches a callback token to every request. Required for
// SubmitCallback when the engine verifies network tokens.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Veritas SDK Client connected to baseURL.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithAdminSecret(os.Getenv("VERITAS_ADMIN_SECRET")),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// OpenValidation asks the engine to open a validation round and returns the
// pending task.
func (c *Client) OpenValidation(ctx context.Context, req OpenValidationRequest) (*Task, error) {
	body, err := c.postJSON(ctx, "/api/v1/validations", req)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// GetTask fetches one task by its hex identifier.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	body, err := c.get(ctx, "/api/v1/tasks/"+taskID)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// ListSubjectTasks returns a subject's validation history.
func (c *Client) ListSubjectTasks(ctx context.Context, subject string) ([]Task, error) {
	body, err := c.get(ctx, "/api/v1/subjects/"+subject+"/tasks")
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Tasks []Task `json:"tasks"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return wrapper.Tasks, nil
}

// SubmitCallback delivers an attestation completion to the engine.
//
// A replayed completion is not an error: the result's Status reports
// "already_processed" and the returned task carries the original score.
func (c *Client) SubmitCallback(ctx context.Context, cb Callback) (*CallbackResult, error) {
	payload, err := json.Marshal(cb)
	if err != nil {
		return nil, fmt.Errorf("marshal callback: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/attestations/callback", payload)
	if err != nil {
		return nil, err
	}

	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusAccepted, http.StatusOK:
		var result CallbackResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("decode callback result: %w", err)
		}
		return &result, nil
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ErrAttestationFailed, string(body))
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrCompletionRejected, string(body))
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, cb.TaskID)
	default:
		return nil, fmt.Errorf("engine error %d: %s", status, string(body))
	}
}

// CreateRule registers a new rule. Requires the admin secret.
func (c *Client) CreateRule(ctx context.Context, req CreateRuleRequest) (*Rule, error) {
	body, err := c.postJSON(ctx, "/api/v1/rules", req)
	if err != nil {
		return nil, err
	}

	var rule Rule
	if err := json.Unmarshal(body, &rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return &rule, nil
}

// GetRule fetches one rule by id.
func (c *Client) GetRule(ctx context.Context, ruleID int64) (*Rule, error) {
	body, err := c.get(ctx, "/api/v1/rules/"+strconv.FormatInt(ruleID, 10))
	if err != nil {
		return nil, err
	}

	var rule Rule
	if err := json.Unmarshal(body, &rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return &rule, nil
}

// ListRules returns registered rules. Set includeInactive to also return
// disabled rules.
func (c *Client) ListRules(ctx context.Context, includeInactive bool) ([]Rule, error) {
	path := "/api/v1/rules"
	if includeInactive {
		path += "?include_inactive=true"
	}
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Rules []Rule `json:"rules"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return wrapper.Rules, nil
}

// SetRuleActive toggles a rule on or off.
func (c *Client) SetRuleActive(ctx context.Context, ruleID int64, active bool) error {
	action := "deactivate"
	if active {
		action = "activate"
	}
	path := fmt.Sprintf("/api/v1/rules/%d/%s", ruleID, action)
	_, err := c.postJSON(ctx, path, nil)
	return err
}

// AddCheck binds a check to a rule. Requires the admin secret.
func (c *Client) AddCheck(ctx context.Context, ruleID int64, req AddCheckRequest) (*Check, error) {
	path := fmt.Sprintf("/api/v1/rules/%d/checks", ruleID)
	body, err := c.postJSON(ctx, path, req)
	if err != nil {
		return nil, err
	}

	var check Check
	if err := json.Unmarshal(body, &check); err != nil {
		return nil, fmt.Errorf("decode check: %w", err)
	}
	return &check, nil
}

// ListChecks returns the checks bound to a rule.
func (c *Client) ListChecks(ctx context.Context, ruleID int64) ([]Check, error) {
	body, err := c.get(ctx, fmt.Sprintf("/api/v1/rules/%d/checks", ruleID))
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Checks []Check `json:"checks"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode checks: %w", err)
	}
	return wrapper.Checks, nil
}

// SetCheckActive toggles a check binding on or off.
func (c *Client) SetCheckActive(ctx context.Context, checkID int64, active bool) error {
	action := "deactivate"
	if active {
		action = "activate"
	}
	path := fmt.Sprintf("/api/v1/checks/%d/%s", checkID, action)
	_, err := c.postJSON(ctx, path, nil)
	return err
}

// Evaluate dry-runs a data blob against a rule's current checks without
// touching task state.
func (c *Client) Evaluate(ctx context.Context, ruleID int64, data string) (*ScoreReport, error) {
	path := fmt.Sprintf("/api/v1/rules/%d/evaluate", ruleID)
	body, err := c.postJSON(ctx, path, map[string]string{"data": data})
	if err != nil {
		return nil, err
	}

	var report ScoreReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode score report: %w", err)
	}
	return &report, nil
}

// JournalOverview returns the journal length and chain tip.
func (c *Client) JournalOverview(ctx context.Context) (*JournalOverview, error) {
	body, err := c.get(ctx, "/api/v1/journal")
	if err != nil {
		return nil, err
	}

	var overview JournalOverview
	if err := json.Unmarshal(body, &overview); err != nil {
		return nil, fmt.Errorf("decode journal overview: %w", err)
	}
	return &overview, nil
}

// JournalEntry fetches one journal entry by index.
func (c *Client) JournalEntry(ctx context.Context, index int) (*JournalEntry, error) {
	body, err := c.get(ctx, "/api/v1/journal/entries/"+strconv.Itoa(index))
	if err != nil {
		return nil, err
	}

	var entry JournalEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("decode journal entry: %w", err)
	}
	return &entry, nil
}

// VerifyJournal asks the engine to walk its completion chain. It returns
// false with a nil error when the chain is broken.
func (c *Client) VerifyJournal(ctx context.Context) (bool, error) {
	body, err := c.get(ctx, "/api/v1/journal/verify")
	if err != nil {
		return false, err
	}

	var result struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("decode verify result: %w", err)
	}
	return result.Valid, nil
}

// newRequest builds a request against the engine with auth headers attached.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.adminSecret)
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = b
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// do executes an HTTP request and maps error statuses.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// doStatusBody executes an HTTP request and returns (status, body, error)
// without failing on 4xx responses. The caller interprets the status code.
func (c *Client) doStatusBody(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
