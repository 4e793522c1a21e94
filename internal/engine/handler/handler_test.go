package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/attestnet"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/handler"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/repository"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/service"
	"github.com/xiangxiecrypto/veritas-sub001/internal/identity"
	"github.com/xiangxiecrypto/veritas-sub001/internal/journal"
)

// ── Fixture ──────────────────────────────────────────────────────────────

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	router  *gin.Engine
	rules   *repository.MemoryRuleStore
	tasks   *repository.MemoryTaskStore
	journal *journal.MemoryJournal
	ruleSvc *service.RuleService
}

type envOptions struct {
	adminSecret string
	verifier    *identity.NetworkTokenVerifier
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	ruleStore := repository.NewMemoryRuleStore()
	taskStore := repository.NewMemoryTaskStore()
	j := journal.New()

	scorer := service.NewScorer(ruleStore, logger)
	processor := service.NewTaskProcessor(taskStore, ruleStore, scorer, logger)
	processor.SetJournal(j)
	processor.SetClock(func() time.Time { return fixedNow })

	ruleSvc := service.NewRuleService(ruleStore, scorer, logger)
	validation := service.NewValidationService(taskStore, ruleStore, attestnet.NewLocalSubmitter(logger), logger)

	guard, err := handler.NewAdminGuard(opts.adminSecret)
	if err != nil {
		t.Fatalf("build admin guard: %v", err)
	}

	r := gin.New()
	v1 := r.Group("/api/v1")

	ah := handler.NewAttestationHandler(processor, logger)
	ah.SetTokenVerifier(opts.verifier)
	ah.Register(v1)
	handler.NewValidationHandler(validation, logger).Register(v1)
	handler.NewRuleHandler(ruleSvc, guard, logger).Register(v1)
	handler.NewJournalHandler(j, logger).Register(v1)

	return &testEnv{
		router:  r,
		rules:   ruleStore,
		tasks:   taskStore,
		journal: j,
		ruleSvc: ruleSvc,
	}
}

// seedBTCRule installs a price-sanity rule with a single full-weight range
// check and returns the rule id.
func seedBTCRule(t *testing.T, env *testEnv) int64 {
	t.Helper()
	ctx := context.Background()

	rule, err := env.ruleSvc.CreateRule(ctx, &model.CreateRuleRequest{
		DataKey:     "btcPrice",
		MaxAge:      300,
		Description: "btc price sanity",
	})
	if err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	_, err = env.ruleSvc.AddCheck(ctx, rule.ID, &model.AddCheckRequest{
		Kind:   "range",
		Params: json.RawMessage(`{"min":"60000.00","max":"100000.00"}`),
		Weight: 100,
	})
	if err != nil {
		t.Fatalf("seed check: %v", err)
	}
	return rule.ID
}

// openTask creates a pending task bound to the given rule and returns its id.
func openTask(t *testing.T, env *testEnv, ruleID int64, seed string) model.TaskID {
	t.Helper()
	id := model.DigestTaskID([]byte(seed))
	err := env.tasks.Create(context.Background(), &model.Task{
		ID:      id,
		RuleID:  ruleID,
		Subject: "0xsubject",
		Status:  model.TaskStatusPending,
	})
	if err != nil {
		t.Fatalf("open task: %v", err)
	}
	return id
}

func callbackBody(id model.TaskID, ts int64, data string, success bool) string {
	return fmt.Sprintf(`{"task_id":%q,"recipient":"0xrecipient","data":%q,"timestamp":%d,"success":%t}`,
		id.String(), data, ts, success)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}
