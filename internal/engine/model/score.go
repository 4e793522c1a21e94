package model

import "github.com/xiangxiecrypto/veritas-sub001/internal/check"

// CheckOutcome is the per-check result of one scoring pass, emitted for
// every active check whether it passed or not.
type CheckOutcome struct {
	CheckID int64      `json:"check_id"`
	Kind    check.Kind `json:"kind"`
	Weight  int64      `json:"weight"`
	Passed  bool       `json:"passed"`
	// Value is the fixed-point rendering of what the check extracted.
	Value string `json:"value"`
	// Err carries the decode failure when a check could not be constructed
	// from its stored params. Such a check counts as failed.
	Err string `json:"error,omitempty"`
}

// ScoreReport is the aggregate of one scoring pass over a rule's active
// checks: the bounded percentage plus the raw sums it was derived from.
type ScoreReport struct {
	RuleID      int64          `json:"rule_id"`
	Score       int            `json:"score"`
	TotalWeight int64          `json:"total_weight"`
	MaxWeight   int64          `json:"max_weight"`
	Outcomes    []CheckOutcome `json:"checks"`
}
