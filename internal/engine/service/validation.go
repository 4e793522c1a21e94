package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/attestnet"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/identity"
)

// ValidationService opens validation rounds and answers status queries.
// Opening a round submits a task to the attestation network and persists
// it pending; the completion arrives later through the callback endpoint
// and is handled by the TaskProcessor.
type ValidationService struct {
	tasks       TaskStore
	rules       ruleGetter
	submitter   attestnet.Submitter
	ownership   identity.OwnershipChecker // nil = gate disabled
	callbackURL string
	logger      *zap.Logger
}

// NewValidationService creates a ValidationService.
func NewValidationService(tasks TaskStore, rules ruleGetter, submitter attestnet.Submitter, logger *zap.Logger) *ValidationService {
	return &ValidationService{
		tasks:     tasks,
		rules:     rules,
		submitter: submitter,
		logger:    logger,
	}
}

// SetOwnershipChecker configures the requester-controls-subject gate.
// Leaving it nil lets any requester open validations (development mode).
func (s *ValidationService) SetOwnershipChecker(oc identity.OwnershipChecker) {
	s.ownership = oc
}

// SetCallbackURL configures the completion delivery address sent with every
// task request, so the network knows where to post the CompletionEvent.
func (s *ValidationService) SetCallbackURL(u string) {
	s.callbackURL = u
}

// Open starts one validation round: authorize the requester, submit the
// task to the network, persist it pending. The rule must exist and be
// active — opening rounds against a disabled rule would only mint tasks
// whose completions the processor later rejects.
func (s *ValidationService) Open(ctx context.Context, req *model.OpenValidationRequest) (*model.Task, error) {
	rule, err := s.rules.GetRule(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}
	if !rule.Active {
		return nil, ErrRuleInactive
	}

	if s.ownership != nil && req.Requester != req.Subject {
		ok, err := s.ownership.IsController(ctx, req.Requester, req.Subject)
		if err != nil {
			return nil, fmt.Errorf("ownership lookup: %w", err)
		}
		if !ok {
			return nil, ErrNotAuthorized
		}
	}

	id, err := s.submitter.Submit(ctx, &attestnet.TaskRequest{
		RuleID:      rule.ID,
		DataKey:     rule.DataKey,
		Subject:     req.Subject,
		Requester:   req.Requester,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}

	task := &model.Task{
		ID:        id,
		RuleID:    rule.ID,
		Subject:   req.Subject,
		Requester: req.Requester,
		Status:    model.TaskStatusPending,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("persist task %s: %w", id, err)
	}

	s.logger.Info("validation opened",
		zap.String("task_id", id.String()),
		zap.Int64("rule_id", rule.ID),
		zap.String("subject", req.Subject),
	)
	return task, nil
}

// GetTask returns one task by id.
func (s *ValidationService) GetTask(ctx context.Context, id model.TaskID) (*model.Task, error) {
	return s.tasks.Get(ctx, id)
}

// ListBySubject returns the validation history of one subject.
func (s *ValidationService) ListBySubject(ctx context.Context, subject string, limit, offset int) ([]*model.Task, error) {
	return s.tasks.ListBySubject(ctx, subject, limit, offset)
}
