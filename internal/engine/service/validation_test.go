package service_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/attestnet"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/repository"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/service"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubChecker struct {
	allow bool
	err   error
	calls int
}

func (c *stubChecker) IsController(_ context.Context, _, _ string) (bool, error) {
	c.calls++
	return c.allow, c.err
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(_ context.Context, _ *attestnet.TaskRequest) (model.TaskID, error) {
	return model.TaskID{}, errors.New("network unreachable")
}

// ── Fixture ──────────────────────────────────────────────────────────────

func newValidationFixture(t *testing.T) (*service.ValidationService, *repository.MemoryRuleStore, *repository.MemoryTaskStore, *model.Rule) {
	t.Helper()
	rules := repository.NewMemoryRuleStore()
	tasks := repository.NewMemoryTaskStore()
	rule := seedRule(t, rules, "btcPrice")

	svc := service.NewValidationService(tasks, rules, attestnet.NewLocalSubmitter(zap.NewNop()), zap.NewNop())
	return svc, rules, tasks, rule
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestValidationService_open(t *testing.T) {
	svc, _, tasks, rule := newValidationFixture(t)
	ctx := context.Background()

	task, err := svc.Open(ctx, &model.OpenValidationRequest{
		RuleID:    rule.ID,
		Subject:   "0xsubject",
		Requester: "0xsubject",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if task.ID.IsZero() {
		t.Error("expected a task id from the submitter")
	}
	if task.Status != model.TaskStatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}

	stored, err := tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("task not persisted: %v", err)
	}
	if stored.RuleID != rule.ID || stored.Subject != "0xsubject" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestValidationService_openUnknownRule(t *testing.T) {
	svc, _, _, _ := newValidationFixture(t)

	_, err := svc.Open(context.Background(), &model.OpenValidationRequest{RuleID: 404, Subject: "s"})
	if !errors.Is(err, repository.ErrRuleNotFound) {
		t.Fatalf("err = %v, want ErrRuleNotFound", err)
	}
}

func TestValidationService_openInactiveRule(t *testing.T) {
	svc, rules, _, rule := newValidationFixture(t)
	ctx := context.Background()

	if err := rules.SetRuleActive(ctx, rule.ID, false); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Open(ctx, &model.OpenValidationRequest{RuleID: rule.ID, Subject: "s"})
	if !errors.Is(err, service.ErrRuleInactive) {
		t.Fatalf("err = %v, want ErrRuleInactive", err)
	}
}

func TestValidationService_ownershipGate(t *testing.T) {
	svc, _, _, rule := newValidationFixture(t)
	ctx := context.Background()

	checker := &stubChecker{allow: false}
	svc.SetOwnershipChecker(checker)

	_, err := svc.Open(ctx, &model.OpenValidationRequest{
		RuleID:    rule.ID,
		Subject:   "0xsubject",
		Requester: "0xstranger",
	})
	if !errors.Is(err, service.ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}

	checker.allow = true
	if _, err := svc.Open(ctx, &model.OpenValidationRequest{
		RuleID:    rule.ID,
		Subject:   "0xsubject",
		Requester: "0xdelegate",
	}); err != nil {
		t.Fatalf("Open with controller relation: %v", err)
	}
}

func TestValidationService_selfRequestSkipsGate(t *testing.T) {
	svc, _, _, rule := newValidationFixture(t)

	checker := &stubChecker{allow: false}
	svc.SetOwnershipChecker(checker)

	// Requester == subject never consults the registry.
	if _, err := svc.Open(context.Background(), &model.OpenValidationRequest{
		RuleID:    rule.ID,
		Subject:   "0xself",
		Requester: "0xself",
	}); err != nil {
		t.Fatalf("self request: %v", err)
	}
	if checker.calls != 0 {
		t.Errorf("checker calls = %d, want 0", checker.calls)
	}
}

func TestValidationService_submitterFailure(t *testing.T) {
	rules := repository.NewMemoryRuleStore()
	tasks := repository.NewMemoryTaskStore()
	rule := seedRule(t, rules, "btcPrice")

	svc := service.NewValidationService(tasks, rules, failingSubmitter{}, zap.NewNop())
	_, err := svc.Open(context.Background(), &model.OpenValidationRequest{RuleID: rule.ID, Subject: "s"})
	if err == nil {
		t.Fatal("expected submitter error to propagate")
	}

	// Nothing persisted on failure.
	if got, _ := tasks.ListBySubject(context.Background(), "s", 10, 0); len(got) != 0 {
		t.Errorf("tasks persisted = %d, want 0", len(got))
	}
}

func TestValidationService_listBySubject(t *testing.T) {
	svc, _, _, rule := newValidationFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Open(ctx, &model.OpenValidationRequest{RuleID: rule.ID, Subject: "0xsubject"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Open(ctx, &model.OpenValidationRequest{RuleID: rule.ID, Subject: "0xother"}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.ListBySubject(ctx, "0xsubject", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("tasks = %d, want 3", len(got))
	}
}
