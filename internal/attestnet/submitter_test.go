package attestnet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestHTTPSubmitter_submitsAndParsesTaskID(t *testing.T) {
	const wantID = "00112233445566770011223344556677001122334455667700112233deadbeef"

	var gotKey string
	var gotReq TaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"task_id": wantID})
	}))
	defer srv.Close()

	sub := NewHTTPSubmitter(srv.URL, "key-123", zap.NewNop())
	id, err := sub.Submit(context.Background(), &TaskRequest{
		RuleID:  7,
		DataKey: "btcPrice",
		Subject: "0xabc",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id.String() != wantID {
		t.Errorf("task id = %s, want %s", id, wantID)
	}
	if gotKey != "key-123" {
		t.Errorf("X-API-Key = %q, want %q", gotKey, "key-123")
	}
	if gotReq.RuleID != 7 || gotReq.DataKey != "btcPrice" {
		t.Errorf("request body = %+v", gotReq)
	}
}

func TestHTTPSubmitter_rejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sub := NewHTTPSubmitter(srv.URL, "", zap.NewNop())
	if _, err := sub.Submit(context.Background(), &TaskRequest{RuleID: 1}); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestHTTPSubmitter_rejectsMalformedTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"task_id": "not-hex"})
	}))
	defer srv.Close()

	sub := NewHTTPSubmitter(srv.URL, "", zap.NewNop())
	_, err := sub.Submit(context.Background(), &TaskRequest{RuleID: 1})
	if err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Fatalf("expected invalid task id error, got %v", err)
	}
}

func TestLocalSubmitter_uniqueIDs(t *testing.T) {
	sub := NewLocalSubmitter(zap.NewNop())
	req := &TaskRequest{RuleID: 1, Subject: "0xabc", DataKey: "k"}

	a, err := sub.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	b, err := sub.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if a == b {
		t.Error("expected distinct task ids for repeated submissions")
	}
	if a.IsZero() || b.IsZero() {
		t.Error("expected non-zero task ids")
	}
}
