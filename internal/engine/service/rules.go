package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// RuleStore is the configuration persistence interface for the rule
// service. *repository.RuleRepository and *repository.MemoryRuleStore
// satisfy it; cmd/engine picks one per the storage backend setting.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	ListRules(ctx context.Context, includeInactive bool, limit, offset int) ([]*model.Rule, error)
	SetRuleActive(ctx context.Context, id int64, active bool) error
	AddCheck(ctx context.Context, binding *model.CheckBinding) error
	GetCheck(ctx context.Context, id int64) (*model.CheckBinding, error)
	ListChecks(ctx context.Context, ruleID int64) ([]*model.CheckBinding, error)
	SetCheckActive(ctx context.Context, id int64, active bool) error
}

// RuleService owns rule and check configuration. Rules and checks are
// soft-disabled, never deleted: processed tasks reference them by ordinal
// id, so history must stay resolvable.
type RuleService struct {
	rules  RuleStore
	scorer *Scorer
	logger *zap.Logger
}

// NewRuleService creates a RuleService.
func NewRuleService(rules RuleStore, scorer *Scorer, logger *zap.Logger) *RuleService {
	return &RuleService{rules: rules, scorer: scorer, logger: logger}
}

// CreateRule registers a new rule, active from the start.
func (s *RuleService) CreateRule(ctx context.Context, req *model.CreateRuleRequest) (*model.Rule, error) {
	rule := &model.Rule{
		DataKey:     req.DataKey,
		MaxAge:      req.MaxAge,
		Active:      true,
		Description: req.Description,
	}
	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	s.logger.Info("rule created",
		zap.Int64("rule_id", rule.ID),
		zap.String("data_key", rule.DataKey),
		zap.Int64("max_age_seconds", rule.MaxAge),
	)
	return rule, nil
}

// AddCheck binds a check to an existing rule. Params are decoded once here
// so malformed configuration is rejected at write time instead of
// surfacing as a failed check on every scoring pass.
func (s *RuleService) AddCheck(ctx context.Context, ruleID int64, req *model.AddCheckRequest) (*model.CheckBinding, error) {
	kind, err := check.ParseKind(req.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCheck, err)
	}
	if _, err := check.Decode(kind, req.Params); err != nil {
		return nil, fmt.Errorf("%w: bad params for %s check: %v", ErrBadCheck, kind, err)
	}
	if _, err := s.rules.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}

	binding := &model.CheckBinding{
		RuleID: ruleID,
		Kind:   kind,
		Params: req.Params,
		Weight: req.Weight,
		Active: true,
	}
	if err := s.rules.AddCheck(ctx, binding); err != nil {
		return nil, fmt.Errorf("add check to rule %d: %w", ruleID, err)
	}

	s.logger.Info("check added",
		zap.Int64("check_id", binding.ID),
		zap.Int64("rule_id", ruleID),
		zap.String("kind", string(kind)),
		zap.Int64("weight", binding.Weight),
	)
	return binding, nil
}

// GetRule returns one rule by id.
func (s *RuleService) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	return s.rules.GetRule(ctx, id)
}

// ListRules returns rules, optionally including disabled ones.
func (s *RuleService) ListRules(ctx context.Context, includeInactive bool, limit, offset int) ([]*model.Rule, error) {
	return s.rules.ListRules(ctx, includeInactive, limit, offset)
}

// ListChecks returns all check bindings of a rule, active or not.
func (s *RuleService) ListChecks(ctx context.Context, ruleID int64) ([]*model.CheckBinding, error) {
	if _, err := s.rules.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.rules.ListChecks(ctx, ruleID)
}

// SetRuleActive toggles a rule. The next completion event sees the new
// state; events already past the guard are unaffected.
func (s *RuleService) SetRuleActive(ctx context.Context, id int64, active bool) error {
	if err := s.rules.SetRuleActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("rule toggled", zap.Int64("rule_id", id), zap.Bool("active", active))
	return nil
}

// SetCheckActive toggles a check binding.
func (s *RuleService) SetCheckActive(ctx context.Context, id int64, active bool) error {
	if err := s.rules.SetCheckActive(ctx, id, active); err != nil {
		return err
	}
	s.logger.Info("check toggled", zap.Int64("check_id", id), zap.Bool("active", active))
	return nil
}

// Evaluate scores a blob against a rule's current check set without
// creating a task or touching any processing state. Dry runs work on
// inactive rules too: that is how an operator vets a rule before enabling it.
func (s *RuleService) Evaluate(ctx context.Context, ruleID int64, data []byte) (*model.ScoreReport, error) {
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return s.scorer.Score(ctx, rule, data)
}
