package model

import (
	"encoding/json"
	"time"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
)

// Rule selects which value a validation extracts and how stale the
// attestation may be. Rules are created by an administrative action,
// mutated only by toggling Active, and never deleted: deployed tasks
// reference rules by ordinal ID, so a delete would orphan history.
type Rule struct {
	ID          int64     `json:"rule_id"         db:"id"`
	DataKey     string    `json:"data_key"        db:"data_key"`
	MaxAge      int64     `json:"max_age_seconds" db:"max_age_seconds"`
	Active      bool      `json:"active"          db:"active"`
	Description string    `json:"description"     db:"description"`
	CreatedAt   time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"      db:"updated_at"`
}

// CheckBinding attaches one check to a rule. Params stay opaque until
// scoring time; Weight is signed, so a binding can act as a penalty, and a
// zero weight is legal (the check still runs and is still observable, it
// just cannot move the score).
type CheckBinding struct {
	ID        int64           `json:"check_id"   db:"id"`
	RuleID    int64           `json:"rule_id"    db:"rule_id"`
	Kind      check.Kind      `json:"kind"       db:"kind"`
	Params    json.RawMessage `json:"params"     db:"params"`
	Weight    int64           `json:"weight"     db:"weight"`
	Active    bool            `json:"active"     db:"active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// CreateRuleRequest is the payload for registering a new rule.
type CreateRuleRequest struct {
	DataKey     string `json:"data_key"        binding:"required"`
	MaxAge      int64  `json:"max_age_seconds" binding:"required,min=1"`
	Description string `json:"description"     binding:"required"`
}

// AddCheckRequest is the payload for binding a check to an existing rule.
type AddCheckRequest struct {
	Kind   string          `json:"kind"   binding:"required"`
	Params json.RawMessage `json:"params" binding:"required"`
	Weight int64           `json:"weight"`
}

// OpenValidationRequest is the payload for opening a new validation round.
type OpenValidationRequest struct {
	RuleID    int64  `json:"rule_id"   binding:"required"`
	Subject   string `json:"subject"   binding:"required"`
	Requester string `json:"requester"`
}

// EvaluateRequest is the payload for a stateless dry-run scoring of a blob
// against a rule's current check set.
type EvaluateRequest struct {
	Data string `json:"data" binding:"required"`
}
