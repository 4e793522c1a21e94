package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xiangxiecrypto/veritas-sub001/pkg/client"
)

const testTaskID = "9f2c7a1d4e8b36509f2c7a1d4e8b36509f2c7a1d4e8b36509f2c7a1d4e8b3650"

// ── Stub server ──────────────────────────────────────────────────────────

func stubEngineServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	taskJSON := map[string]any{
		"task_id": testTaskID,
		"rule_id": 1,
		"subject": "0xsubject",
		"status":  "pending",
	}

	mux.HandleFunc("/api/v1/validations", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["rule_id"] == float64(99) {
			http.Error(w, `{"error":"rule not found"}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(taskJSON)
	})

	mux.HandleFunc("/api/v1/tasks/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/tasks/")
		if id != testTaskID {
			http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(taskJSON)
	})

	mux.HandleFunc("/api/v1/attestations/callback", func(w http.ResponseWriter, r *http.Request) {
		var cb map[string]any
		json.NewDecoder(r.Body).Decode(&cb)
		if cb["success"] == false {
			http.Error(w, `{"error":"attestation failed"}`, http.StatusUnprocessableEntity)
			return
		}
		if cb["task_id"] == "replayed" {
			json.NewEncoder(w).Encode(map[string]any{"status": "already_processed", "task": taskJSON})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"status": "processed", "task": taskJSON})
	})

	mux.HandleFunc("/api/v1/rules", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if r.Header.Get("X-Admin-Secret") != "s3cret" {
				http.Error(w, `{"error":"admin secret required"}`, http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"rule_id": 1, "data_key": "btcPrice", "max_age_seconds": 300, "active": true,
			})
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"rules": []map[string]any{{"rule_id": 1, "data_key": "btcPrice", "active": true}},
				"count": 1,
			})
		}
	})

	mux.HandleFunc("/api/v1/rules/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/evaluate"):
			json.NewEncoder(w).Encode(map[string]any{
				"rule_id": 1, "score": 100, "total_weight": 100, "max_weight": 100,
				"checks": []map[string]any{
					{"check_id": 1, "kind": "range", "weight": 100, "passed": true, "value": "68164.45"},
				},
			})
		case strings.HasSuffix(path, "/checks"):
			if r.Method == http.MethodPost {
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]any{
					"check_id": 1, "rule_id": 1, "kind": "range", "weight": 100, "active": true,
				})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"checks": []map[string]any{}, "count": 0})
		case strings.HasSuffix(path, "/deactivate"):
			json.NewEncoder(w).Encode(map[string]any{"rule_id": 1, "active": false})
		default:
			json.NewEncoder(w).Encode(map[string]any{"rule_id": 1, "data_key": "btcPrice", "active": true})
		}
	})

	mux.HandleFunc("/api/v1/journal", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"entries": 2, "root": strings.Repeat("ab", 32)})
	})
	mux.HandleFunc("/api/v1/journal/verify", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"valid": true})
	})
	mux.HandleFunc("/api/v1/journal/entries/", func(w http.ResponseWriter, r *http.Request) {
		idx := strings.TrimPrefix(r.URL.Path, "/api/v1/journal/entries/")
		if idx != "1" {
			http.Error(w, `{"error":"entry not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"index": 1, "task_id": testTaskID, "score": 100})
	})

	return httptest.NewServer(mux)
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestOpenValidation(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	task, err := c.OpenValidation(context.Background(), client.OpenValidationRequest{
		RuleID: 1, Subject: "0xsubject",
	})
	if err != nil {
		t.Fatalf("open validation: %v", err)
	}
	if task.TaskID != testTaskID {
		t.Errorf("expected task %s, got %s", testTaskID, task.TaskID)
	}
	if task.Status != "pending" {
		t.Errorf("expected pending, got %s", task.Status)
	}
}

func TestOpenValidation_notFound(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	_, err := c.OpenValidation(context.Background(), client.OpenValidationRequest{
		RuleID: 99, Subject: "0xsubject",
	})
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTask(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	task, err := c.GetTask(context.Background(), testTaskID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.RuleID != 1 {
		t.Errorf("expected rule 1, got %d", task.RuleID)
	}
}

func TestGetTask_notFound(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	_, err := c.GetTask(context.Background(), strings.Repeat("00", 32))
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitCallback_processed(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	result, err := c.SubmitCallback(context.Background(), client.Callback{
		TaskID:    testTaskID,
		Data:      `{"btcPrice":"68164.45"}`,
		Timestamp: time.Now().Unix(),
		Success:   true,
	})
	if err != nil {
		t.Fatalf("submit callback: %v", err)
	}
	if result.Status != "processed" {
		t.Errorf("expected processed, got %s", result.Status)
	}
}

func TestSubmitCallback_replayIsNotAnError(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	result, err := c.SubmitCallback(context.Background(), client.Callback{
		TaskID: "replayed", Data: "{}", Timestamp: 1, Success: true,
	})
	if err != nil {
		t.Fatalf("submit callback: %v", err)
	}
	if result.Status != "already_processed" {
		t.Errorf("expected already_processed, got %s", result.Status)
	}
}

func TestSubmitCallback_failedAttestation(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	_, err := c.SubmitCallback(context.Background(), client.Callback{
		TaskID: testTaskID, Data: "{}", Timestamp: 1, Success: false,
	})
	if !errors.Is(err, client.ErrAttestationFailed) {
		t.Errorf("expected ErrAttestationFailed, got %v", err)
	}
}

func TestCreateRule_sendsAdminSecret(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL, client.WithAdminSecret("s3cret"))
	rule, err := c.CreateRule(context.Background(), client.CreateRuleRequest{
		DataKey: "btcPrice", MaxAge: 300, Description: "d",
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if rule.RuleID != 1 {
		t.Errorf("expected rule 1, got %d", rule.RuleID)
	}
}

func TestCreateRule_unauthorizedWithoutSecret(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	_, err := c.CreateRule(context.Background(), client.CreateRuleRequest{
		DataKey: "btcPrice", MaxAge: 300, Description: "d",
	})
	if err == nil {
		t.Fatal("expected error without admin secret")
	}
}

func TestListRules(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	rules, err := c.ListRules(context.Background(), false)
	if err != nil {
		t.Fatalf("list rules: %v", err)
	}
	if len(rules) != 1 || rules[0].DataKey != "btcPrice" {
		t.Errorf("unexpected rules: %+v", rules)
	}
}

func TestEvaluate(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	report, err := c.Evaluate(context.Background(), 1, `{"btcPrice":"68164.45"}`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if report.Score != 100 {
		t.Errorf("expected score 100, got %d", report.Score)
	}
	if len(report.Checks) != 1 || report.Checks[0].Value != "68164.45" {
		t.Errorf("unexpected checks: %+v", report.Checks)
	}
}

func TestJournalOverviewAndVerify(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)

	overview, err := c.JournalOverview(context.Background())
	if err != nil {
		t.Fatalf("journal overview: %v", err)
	}
	if overview.Entries != 2 {
		t.Errorf("expected 2 entries, got %d", overview.Entries)
	}

	valid, err := c.VerifyJournal(context.Background())
	if err != nil {
		t.Fatalf("verify journal: %v", err)
	}
	if !valid {
		t.Error("expected valid journal")
	}
}

func TestJournalEntry_notFound(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	c := client.MustNew(srv.URL)
	_, err := c.JournalEntry(context.Background(), 9)
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWithAdminSecretFile(t *testing.T) {
	srv := stubEngineServer(t)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "admin")
	if err := os.WriteFile(path, []byte("s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := client.New(srv.URL, client.WithAdminSecretFile(path))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.CreateRule(context.Background(), client.CreateRuleRequest{
		DataKey: "btcPrice", MaxAge: 300, Description: "d",
	}); err != nil {
		t.Errorf("create rule with file secret: %v", err)
	}
}

func TestWithTimeout_rejectsNonPositive(t *testing.T) {
	_, err := client.New("http://localhost", client.WithTimeout(0))
	if err == nil {
		t.Error("expected error for zero timeout")
	}
}
