package handler_test

import (
	"net/http"
	"testing"

	"github.com/xiangxiecrypto/veritas-sub001/internal/journal"
)

func TestJournalOverview_200(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ruleID := seedBTCRule(t, env)
	id := openTask(t, env, ruleID, "task-1")

	body := callbackBody(id, fixedNow.Unix()-60, btcPayload, true)
	if w := doJSON(t, env.router, http.MethodPost, "/api/v1/attestations/callback", body, nil); w.Code != http.StatusAccepted {
		t.Fatalf("callback: expected 202, got %d", w.Code)
	}

	w := doJSON(t, env.router, http.MethodGet, "/api/v1/journal", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	// Genesis plus one completion.
	if entries := int(resp["entries"].(float64)); entries != 2 {
		t.Errorf("expected 2 entries, got %d", entries)
	}
	if root, _ := resp["root"].(string); len(root) != 64 || root == journal.GenesisHash {
		t.Errorf("expected non-genesis root hash, got %q", root)
	}
}

func TestJournalVerify_200_valid(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ruleID := seedBTCRule(t, env)
	id := openTask(t, env, ruleID, "task-1")

	body := callbackBody(id, fixedNow.Unix()-60, btcPayload, true)
	doJSON(t, env.router, http.MethodPost, "/api/v1/attestations/callback", body, nil)

	w := doJSON(t, env.router, http.MethodGet, "/api/v1/journal/verify", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["valid"] != true {
		t.Errorf("expected valid chain, got %v", resp)
	}
}

func TestJournalGetEntry_200(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ruleID := seedBTCRule(t, env)
	id := openTask(t, env, ruleID, "task-1")

	body := callbackBody(id, fixedNow.Unix()-60, btcPayload, true)
	doJSON(t, env.router, http.MethodPost, "/api/v1/attestations/callback", body, nil)

	w := doJSON(t, env.router, http.MethodGet, "/api/v1/journal/entries/1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["task_id"] != id.String() {
		t.Errorf("expected task %s, got %v", id, resp["task_id"])
	}
	if score := int(resp["score"].(float64)); score != 100 {
		t.Errorf("expected score 100, got %d", score)
	}
}

func TestJournalGetEntry_404_pastEnd(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := doJSON(t, env.router, http.MethodGet, "/api/v1/journal/entries/5", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestJournalGetEntry_400_badIndex(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := doJSON(t, env.router, http.MethodGet, "/api/v1/journal/entries/abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
