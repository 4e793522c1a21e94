// Package repository provides the storage backends for rules, checks, and
// validation tasks: PostgreSQL for production, Redis for the task replay
// guard in lightweight deployments, and in-memory stores for development
// and tests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// Sentinel errors shared by all backends.
var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrCheckNotFound = errors.New("check not found")
	ErrTaskNotFound  = errors.New("task not found")
	ErrTaskExists    = errors.New("task already exists")
)

// RuleRepository provides rule and check-binding storage against PostgreSQL.
// Rules are soft-disabled via the active flag and never deleted: task and
// journal history reference them by ordinal ID.
type RuleRepository struct {
	db *pgxpool.Pool
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db *pgxpool.Pool) *RuleRepository {
	return &RuleRepository{db: db}
}

// CreateRule inserts a new rule and assigns its ordinal ID.
func (r *RuleRepository) CreateRule(ctx context.Context, rule *model.Rule) error {
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO rules (data_key, max_age_seconds, active, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(ctx, query,
		rule.DataKey, rule.MaxAge, rule.Active, rule.Description,
		rule.CreatedAt, rule.UpdatedAt,
	).Scan(&rule.ID)
}

// GetRule retrieves a rule by its ordinal ID.
func (r *RuleRepository) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	query := `
		SELECT id, data_key, max_age_seconds, active, description, created_at, updated_at
		FROM rules WHERE id = $1`

	rule := &model.Rule{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rule.ID, &rule.DataKey, &rule.MaxAge, &rule.Active,
		&rule.Description, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %d: %w", id, err)
	}
	return rule, nil
}

// ListRules returns rules ordered by ID. Inactive rules are included when
// includeInactive is set; administrative surfaces want the full table,
// scoring never lists.
func (r *RuleRepository) ListRules(ctx context.Context, includeInactive bool, limit, offset int) ([]*model.Rule, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, data_key, max_age_seconds, active, description, created_at, updated_at
		FROM rules
		WHERE ($1 OR active)
		ORDER BY id ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, includeInactive, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*model.Rule
	for rows.Next() {
		rule := &model.Rule{}
		if err := rows.Scan(
			&rule.ID, &rule.DataKey, &rule.MaxAge, &rule.Active,
			&rule.Description, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SetRuleActive toggles a rule's active flag.
func (r *RuleRepository) SetRuleActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE rules SET active = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// AddCheck binds a check to a rule and assigns the binding's ordinal ID.
// The params blob is stored opaque; it is only decoded at scoring time.
func (r *RuleRepository) AddCheck(ctx context.Context, binding *model.CheckBinding) error {
	binding.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO rule_checks (rule_id, kind, params, weight, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRow(ctx, query,
		binding.RuleID, binding.Kind, binding.Params,
		binding.Weight, binding.Active, binding.CreatedAt,
	).Scan(&binding.ID)
}

// GetCheck retrieves a check binding by its ordinal ID.
func (r *RuleRepository) GetCheck(ctx context.Context, id int64) (*model.CheckBinding, error) {
	query := `
		SELECT id, rule_id, kind, params, weight, active, created_at
		FROM rule_checks WHERE id = $1`

	b := &model.CheckBinding{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.RuleID, &b.Kind, &b.Params, &b.Weight, &b.Active, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCheckNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get check %d: %w", id, err)
	}
	return b, nil
}

// ListChecks returns every binding attached to a rule, active or not,
// ordered by ID. The scorer filters on the active flag itself so that each
// scoring pass sees the live configuration.
func (r *RuleRepository) ListChecks(ctx context.Context, ruleID int64) ([]*model.CheckBinding, error) {
	query := `
		SELECT id, rule_id, kind, params, weight, active, created_at
		FROM rule_checks
		WHERE rule_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []*model.CheckBinding
	for rows.Next() {
		b := &model.CheckBinding{}
		if err := rows.Scan(
			&b.ID, &b.RuleID, &b.Kind, &b.Params, &b.Weight, &b.Active, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

// SetCheckActive toggles a check binding's active flag.
func (r *RuleRepository) SetCheckActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE rule_checks SET active = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCheckNotFound
	}
	return nil
}
