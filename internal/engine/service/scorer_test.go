package service_test

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/repository"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/service"
)

const btcPayload = `{"btcPrice":"68164.45"}`

func seedRule(t *testing.T, store *repository.MemoryRuleStore, dataKey string) *model.Rule {
	t.Helper()
	rule := &model.Rule{DataKey: dataKey, MaxAge: 300, Active: true, Description: "btc price sanity"}
	if err := store.CreateRule(context.Background(), rule); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
	return rule
}

func seedCheck(t *testing.T, store *repository.MemoryRuleStore, ruleID int64, kind check.Kind, params string, weight int64) *model.CheckBinding {
	t.Helper()
	b := &model.CheckBinding{
		RuleID: ruleID,
		Kind:   kind,
		Params: json.RawMessage(params),
		Weight: weight,
		Active: true,
	}
	if err := store.AddCheck(context.Background(), b); err != nil {
		t.Fatalf("seed check: %v", err)
	}
	return b
}

func TestScorer_singlePassingCheckScores100(t *testing.T) {
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"60000.00","max":"100000.00"}`, 100)

	scorer := service.NewScorer(store, zap.NewNop())
	report, err := scorer.Score(context.Background(), rule, []byte(btcPayload))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if report.Score != 100 {
		t.Errorf("score = %d, want 100", report.Score)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(report.Outcomes))
	}
	if !report.Outcomes[0].Passed {
		t.Error("expected check to pass")
	}
	if report.Outcomes[0].Value != "68164.45" {
		t.Errorf("extracted value = %q, want %q", report.Outcomes[0].Value, "68164.45")
	}
}

func TestScorer_mixedWeightsTruncate(t *testing.T) {
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")
	// weight-100 range fails (price below 70000), weight-50 threshold passes.
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"70000.00","max":"100000.00"}`, 100)
	seedCheck(t, store, rule.ID, check.KindThreshold, `{"expected":"68000.00","max_deviation_bps":100}`, 50)

	scorer := service.NewScorer(store, zap.NewNop())
	report, err := scorer.Score(context.Background(), rule, []byte(btcPayload))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if report.Score != 33 {
		t.Errorf("score = %d, want 33 (trunc of 50*100/150)", report.Score)
	}
	if report.TotalWeight != 50 || report.MaxWeight != 150 {
		t.Errorf("weights = %d/%d, want 50/150", report.TotalWeight, report.MaxWeight)
	}
}

func TestScorer_noActiveChecksScoresZero(t *testing.T) {
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")

	scorer := service.NewScorer(store, zap.NewNop())
	report, err := scorer.Score(context.Background(), rule, []byte(btcPayload))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.Score != 0 {
		t.Errorf("score = %d, want 0 for a rule with no checks", report.Score)
	}

	// A disabled check must not count either.
	b := seedCheck(t, store, rule.ID, check.KindRange, `{"min":"0.00","max":"100000.00"}`, 100)
	if err := store.SetCheckActive(context.Background(), b.ID, false); err != nil {
		t.Fatal(err)
	}
	report, err = scorer.Score(context.Background(), rule, []byte(btcPayload))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if report.Score != 0 || len(report.Outcomes) != 0 {
		t.Errorf("score = %d with %d outcomes, want 0 with none", report.Score, len(report.Outcomes))
	}
}

func TestScorer_undecodableCheckCountsAsFail(t *testing.T) {
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"60000.00","max":"100000.00"}`, 50)
	// Params written directly to the store, bypassing admission validation.
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"not a number"}`, 50)

	scorer := service.NewScorer(store, zap.NewNop())
	report, err := scorer.Score(context.Background(), rule, []byte(btcPayload))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	// The broken check contributes its weight to the max and fails.
	if report.Score != 50 {
		t.Errorf("score = %d, want 50", report.Score)
	}
	if report.Outcomes[1].Err == "" {
		t.Error("expected decode error on the broken check's outcome")
	}
	if report.Outcomes[1].Passed {
		t.Error("broken check must fail")
	}
}

func TestScorer_readsLiveConfiguration(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")
	passing := seedCheck(t, store, rule.ID, check.KindRange, `{"min":"60000.00","max":"100000.00"}`, 100)

	scorer := service.NewScorer(store, zap.NewNop())
	report, err := scorer.Score(ctx, rule, []byte(btcPayload))
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 100 {
		t.Fatalf("score = %d, want 100 before toggle", report.Score)
	}

	// Disabling the check between passes must change the next result.
	if err := store.SetCheckActive(ctx, passing.ID, false); err != nil {
		t.Fatal(err)
	}
	report, err = scorer.Score(ctx, rule, []byte(btcPayload))
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 0 {
		t.Errorf("score = %d, want 0 after disabling the only check", report.Score)
	}
}

func TestScorer_penaltyWeightsClamp(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")
	// +100 passes, -50 penalty fails: total 100, max 50 → raw 200, clamped.
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"60000.00","max":"100000.00"}`, 100)
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"90000.00","max":"100000.00"}`, -50)

	scorer := service.NewScorer(store, zap.NewNop())
	report, err := scorer.Score(ctx, rule, []byte(btcPayload))
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 100 {
		t.Errorf("score = %d, want 100 (clamped)", report.Score)
	}

	// The inverse — only the penalty passes — clamps at the floor.
	store2 := repository.NewMemoryRuleStore()
	rule2 := seedRule(t, store2, "btcPrice")
	seedCheck(t, store2, rule2.ID, check.KindRange, `{"min":"90000.00","max":"100000.00"}`, 100)
	seedCheck(t, store2, rule2.ID, check.KindRange, `{"min":"60000.00","max":"100000.00"}`, -50)

	scorer2 := service.NewScorer(store2, zap.NewNop())
	report, err = scorer2.Score(ctx, rule2, []byte(btcPayload))
	if err != nil {
		t.Fatal(err)
	}
	if report.Score != 0 {
		t.Errorf("score = %d, want 0 (clamped)", report.Score)
	}
}

func TestScorer_metricsRecorder(t *testing.T) {
	store := repository.NewMemoryRuleStore()
	rule := seedRule(t, store, "btcPrice")
	seedCheck(t, store, rule.ID, check.KindRange, `{"min":"60000.00","max":"100000.00"}`, 100)
	seedCheck(t, store, rule.ID, check.KindContains, `{"substring":"ethPrice"}`, 10)

	type sample struct {
		kind   check.Kind
		passed bool
	}
	var samples []sample

	scorer := service.NewScorer(store, zap.NewNop())
	scorer.SetMetricsRecorder(func(kind check.Kind, passed bool) {
		samples = append(samples, sample{kind, passed})
	})

	if _, err := scorer.Score(context.Background(), rule, []byte(btcPayload)); err != nil {
		t.Fatal(err)
	}

	if len(samples) != 2 {
		t.Fatalf("recorded %d samples, want 2", len(samples))
	}
	if samples[0].kind != check.KindRange || !samples[0].passed {
		t.Errorf("sample 0 = %+v, want passing range", samples[0])
	}
	if samples[1].kind != check.KindContains || samples[1].passed {
		t.Errorf("sample 1 = %+v, want failing contains", samples[1])
	}
}
