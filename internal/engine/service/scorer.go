package service

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

// CheckMetricsRecorder is an optional callback for recording per-check
// evaluation outcomes.
type CheckMetricsRecorder func(kind check.Kind, passed bool)

// checkLister is the configuration read interface for the Scorer.
// *repository.RuleRepository and *repository.MemoryRuleStore satisfy it.
type checkLister interface {
	ListChecks(ctx context.Context, ruleID int64) ([]*model.CheckBinding, error)
}

// Scorer runs every active check bound to a rule against one attestation
// payload and folds the weighted outcomes into a percentage in [0,100].
// Check configuration is read from the store on every pass; it is never
// cached, so toggling a check takes effect on the next event.
type Scorer struct {
	checks  checkLister
	onCheck CheckMetricsRecorder
	logger  *zap.Logger
}

// NewScorer creates a Scorer reading check configuration from checks.
func NewScorer(checks checkLister, logger *zap.Logger) *Scorer {
	return &Scorer{checks: checks, logger: logger}
}

// SetMetricsRecorder configures the per-check metrics callback.
func (s *Scorer) SetMetricsRecorder(fn CheckMetricsRecorder) {
	s.onCheck = fn
}

// Score evaluates one payload against the rule's active checks. Every
// active binding contributes its weight to the maximum whether it passes,
// fails, or cannot even be decoded; only passing checks contribute to the
// total. A rule with no active checks scores zero.
func (s *Scorer) Score(ctx context.Context, rule *model.Rule, data []byte) (*model.ScoreReport, error) {
	bindings, err := s.checks.ListChecks(ctx, rule.ID)
	if err != nil {
		return nil, fmt.Errorf("load checks for rule %d: %w", rule.ID, err)
	}

	report := &model.ScoreReport{RuleID: rule.ID}
	total := new(big.Int)
	max := new(big.Int)

	for _, b := range bindings {
		if !b.Active {
			continue
		}
		max.Add(max, big.NewInt(b.Weight))

		outcome := s.evaluate(rule.DataKey, b, data)
		if outcome.Passed {
			total.Add(total, big.NewInt(b.Weight))
		}
		if s.onCheck != nil {
			s.onCheck(b.Kind, outcome.Passed)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.TotalWeight = total.Int64()
	report.MaxWeight = max.Int64()
	report.Score = percentage(total, max)
	return report, nil
}

// evaluate runs a single binding. A binding whose params cannot be decoded,
// or whose evaluation panics, is a failed check — never a fatal error: the
// failure stays isolated so the rest of the rule still aggregates.
func (s *Scorer) evaluate(dataKey string, b *model.CheckBinding, data []byte) (outcome model.CheckOutcome) {
	outcome = model.CheckOutcome{
		CheckID: b.ID,
		Kind:    b.Kind,
		Weight:  b.Weight,
		Value:   "0.00",
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Passed = false
			outcome.Err = fmt.Sprintf("check panicked: %v", r)
			s.logger.Error("check evaluation panicked",
				zap.Int64("check_id", b.ID),
				zap.String("kind", string(b.Kind)),
				zap.Any("panic", r),
			)
		}
	}()

	chk, err := check.Decode(b.Kind, b.Params)
	if err != nil {
		outcome.Err = err.Error()
		return outcome
	}

	passed, value := chk.Evaluate(dataKey, data)
	outcome.Passed = passed
	outcome.Value = fixedpoint.Format(value)
	return outcome
}

var hundred = big.NewInt(100)

// percentage maps the weight sums to trunc(total*100/max), clamped to
// [0,100]. max == 0 scores zero rather than erroring. Truncating division
// keeps the result bit-for-bit reproducible for any weight mix.
func percentage(total, max *big.Int) int {
	if max.Sign() == 0 {
		return 0
	}
	q := new(big.Int).Mul(total, hundred)
	q.Quo(q, max)

	if q.Sign() < 0 {
		return 0
	}
	if q.Cmp(hundred) > 0 {
		return 100
	}
	return int(q.Int64())
}
