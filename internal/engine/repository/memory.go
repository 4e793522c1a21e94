package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// MemoryRuleStore is an in-memory, thread-safe rule and check store. It
// backs development mode, the local CLI evaluator, and tests.
type MemoryRuleStore struct {
	mu        sync.RWMutex
	rules     map[int64]*model.Rule
	checks    map[int64]*model.CheckBinding
	nextRule  int64
	nextCheck int64
}

// NewMemoryRuleStore creates an empty MemoryRuleStore.
func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{
		rules:     make(map[int64]*model.Rule),
		checks:    make(map[int64]*model.CheckBinding),
		nextRule:  1,
		nextCheck: 1,
	}
}

// CreateRule assigns the next ordinal ID and stores the rule.
func (s *MemoryRuleStore) CreateRule(_ context.Context, rule *model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rule.ID = s.nextRule
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.nextRule++

	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

// GetRule returns a copy of the rule with the given ID.
func (s *MemoryRuleStore) GetRule(_ context.Context, id int64) (*model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	cp := *rule
	return &cp, nil
}

// ListRules returns rules ordered by ID.
func (s *MemoryRuleStore) ListRules(_ context.Context, includeInactive bool, limit, offset int) ([]*model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var rules []*model.Rule
	for _, rule := range s.rules {
		if !includeInactive && !rule.Active {
			continue
		}
		cp := *rule
		rules = append(rules, &cp)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	if offset >= len(rules) {
		return nil, nil
	}
	rules = rules[offset:]
	if len(rules) > limit {
		rules = rules[:limit]
	}
	return rules, nil
}

// SetRuleActive toggles a rule's active flag.
func (s *MemoryRuleStore) SetRuleActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rule, ok := s.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	rule.Active = active
	rule.UpdatedAt = time.Now().UTC()
	return nil
}

// AddCheck assigns the next ordinal ID and stores the binding.
func (s *MemoryRuleStore) AddCheck(_ context.Context, binding *model.CheckBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	binding.ID = s.nextCheck
	binding.CreatedAt = time.Now().UTC()
	s.nextCheck++

	cp := *binding
	s.checks[binding.ID] = &cp
	return nil
}

// GetCheck returns a copy of the binding with the given ID.
func (s *MemoryRuleStore) GetCheck(_ context.Context, id int64) (*model.CheckBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	binding, ok := s.checks[id]
	if !ok {
		return nil, ErrCheckNotFound
	}
	cp := *binding
	return &cp, nil
}

// ListChecks returns every binding attached to a rule, ordered by ID.
func (s *MemoryRuleStore) ListChecks(_ context.Context, ruleID int64) ([]*model.CheckBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bindings []*model.CheckBinding
	for _, binding := range s.checks {
		if binding.RuleID != ruleID {
			continue
		}
		cp := *binding
		bindings = append(bindings, &cp)
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].ID < bindings[j].ID })
	return bindings, nil
}

// SetCheckActive toggles a binding's active flag.
func (s *MemoryRuleStore) SetCheckActive(_ context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.checks[id]
	if !ok {
		return ErrCheckNotFound
	}
	binding.Active = active
	return nil
}

// MemoryTaskStore is an in-memory, thread-safe task store.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[model.TaskID]*model.Task
}

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[model.TaskID]*model.Task)}
}

// Create stores a new pending task.
func (s *MemoryTaskStore) Create(_ context.Context, task *model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return ErrTaskExists
	}
	task.Status = model.TaskStatusPending
	task.CreatedAt = time.Now().UTC()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

// Get returns a copy of the task with the given identifier.
func (s *MemoryTaskStore) Get(_ context.Context, id model.TaskID) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

// MarkProcessed atomically flips a pending task to processed and reports
// whether this call performed the flip.
func (s *MemoryTaskStore) MarkProcessed(_ context.Context, id model.TaskID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false, ErrTaskNotFound
	}
	if task.Status == model.TaskStatusProcessed {
		return false, nil
	}
	now := time.Now().UTC()
	task.Status = model.TaskStatusProcessed
	task.ProcessedAt = &now
	return true, nil
}

// RecordResult stores the score and payload digest on a task.
func (s *MemoryTaskStore) RecordResult(_ context.Context, id model.TaskID, score int, payloadDigest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	task.Score = &score
	task.PayloadDigest = payloadDigest
	return nil
}

// ListBySubject returns tasks for a subject, newest first.
func (s *MemoryTaskStore) ListBySubject(_ context.Context, subject string, limit, offset int) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var tasks []*model.Task
	for _, task := range s.tasks {
		if task.Subject != subject {
			continue
		}
		cp := *task
		tasks = append(tasks, &cp)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })

	if offset >= len(tasks) {
		return nil, nil
	}
	tasks = tasks[offset:]
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}
