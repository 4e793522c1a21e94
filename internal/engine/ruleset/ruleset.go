// Package ruleset loads declarative rule documents. A document describes
// validation rules and their check bindings in YAML; the CLI evaluates
// payloads against one without a running engine, and cmd/seed materializes
// one into a fresh database.
//
// Every rule and check in a document is validated at load time, so a
// malformed document fails before anything is stored or scored.
package ruleset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
)

// CheckSpec is one check binding in a rule document. Params carry the
// kind-specific fields exactly as the engine's admin API would accept them;
// fixed-point fields ("min", "max", "expected") are quoted strings.
type CheckSpec struct {
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
	Weight int64          `yaml:"weight"`
}

// RuleSpec is one rule in a rule document.
type RuleSpec struct {
	DataKey     string      `yaml:"data_key"`
	MaxAge      int64       `yaml:"max_age_seconds"`
	Description string      `yaml:"description"`
	Checks      []CheckSpec `yaml:"checks"`
}

// Document is a parsed rule document.
type Document struct {
	Rules []RuleSpec `yaml:"rules"`
}

// LoadFile reads and parses the rule document at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule document: %w", err)
	}
	return Load(data)
}

// Load parses a YAML rule document and validates every rule and check.
func Load(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rule document: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rule document declares no rules")
	}
	for i := range doc.Rules {
		if err := doc.Rules[i].validate(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return &doc, nil
}

func (r *RuleSpec) validate() error {
	if r.DataKey == "" {
		return fmt.Errorf("data_key is required")
	}
	if r.MaxAge < 1 {
		return fmt.Errorf("max_age_seconds must be at least 1, got %d", r.MaxAge)
	}
	if len(r.Checks) == 0 {
		return fmt.Errorf("at least one check is required")
	}
	for j := range r.Checks {
		if _, _, err := r.Checks[j].compile(); err != nil {
			return fmt.Errorf("check %d: %w", j+1, err)
		}
	}
	return nil
}

// compile resolves the YAML params into the canonical JSON encoding the
// engine stores, decoding once to prove the check is well formed.
func (c *CheckSpec) compile() (check.Kind, json.RawMessage, error) {
	kind, err := check.ParseKind(c.Kind)
	if err != nil {
		return "", nil, err
	}
	params, err := json.Marshal(c.Params)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s params: %w", kind, err)
	}
	if _, err := check.Decode(kind, params); err != nil {
		return "", nil, err
	}
	return kind, params, nil
}

// ruleWriter is the storage write surface Apply needs. The PostgreSQL
// repository and the in-memory store both satisfy it.
type ruleWriter interface {
	CreateRule(ctx context.Context, rule *model.Rule) error
	AddCheck(ctx context.Context, binding *model.CheckBinding) error
}

// Apply materializes every rule in the document into store, active and in
// document order, and returns the created rules with their assigned IDs.
func (d *Document) Apply(ctx context.Context, store ruleWriter) ([]*model.Rule, error) {
	rules := make([]*model.Rule, 0, len(d.Rules))
	for i := range d.Rules {
		spec := &d.Rules[i]
		rule := &model.Rule{
			DataKey:     spec.DataKey,
			MaxAge:      spec.MaxAge,
			Active:      true,
			Description: spec.Description,
		}
		if err := store.CreateRule(ctx, rule); err != nil {
			return nil, fmt.Errorf("create rule %d: %w", i+1, err)
		}
		for j := range spec.Checks {
			kind, params, err := spec.Checks[j].compile()
			if err != nil {
				return nil, fmt.Errorf("rule %d check %d: %w", i+1, j+1, err)
			}
			binding := &model.CheckBinding{
				RuleID: rule.ID,
				Kind:   kind,
				Params: params,
				Weight: spec.Checks[j].Weight,
				Active: true,
			}
			if err := store.AddCheck(ctx, binding); err != nil {
				return nil, fmt.Errorf("rule %d check %d: %w", i+1, j+1, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
