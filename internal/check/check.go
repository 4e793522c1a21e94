// Package check implements the pass/fail conditions the scorer applies to
// attested payloads. Each check kind consumes the rule's data key, the raw
// payload bytes, and a kind-specific parameter blob, and yields a verdict
// plus the value it extracted.
//
// Checks are pure: no clock, no I/O, no shared state. The same inputs always
// produce the same verdict, which keeps scoring replayable.
package check

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

// Kind tags a check variant. Kinds are stored alongside the encoded params
// and drive decoding; adding a variant means adding a kind, never wrapping
// an existing one.
type Kind string

const (
	KindRange     Kind = "range"
	KindThreshold Kind = "threshold"
	KindMinCount  Kind = "min_count"
	KindContains  Kind = "contains"
	KindExpr      Kind = "expr"
)

// ParseKind validates a kind received from an administrative surface.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindRange, KindThreshold, KindMinCount, KindContains, KindExpr:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown check kind %q", s)
}

// Check evaluates one condition against an attested payload.
type Check interface {
	// Kind returns the variant tag.
	Kind() Kind
	// Evaluate resolves dataKey inside data and applies the condition. The
	// returned value is whatever the check extracted (fixed-point for most
	// kinds, a whole count for min_count, zero for contains). Evaluate
	// never fails: malformed payloads resolve to a zero value which is then
	// judged like any other.
	Evaluate(dataKey string, data []byte) (passed bool, value *big.Int)
}

// Decode constructs the Check for kind from its encoded params. Params are
// stored opaque and only interpreted here, so configuration rows survive
// kind additions untouched.
func Decode(kind Kind, params json.RawMessage) (Check, error) {
	switch kind {
	case KindRange:
		var p struct {
			Min string `json:"min"`
			Max string `json:"max"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("range params: %w", err)
		}
		min, err := fixedpoint.Parse(p.Min)
		if err != nil {
			return nil, fmt.Errorf("range min: %w", err)
		}
		max, err := fixedpoint.Parse(p.Max)
		if err != nil {
			return nil, fmt.Errorf("range max: %w", err)
		}
		return Range{Min: min, Max: max}, nil

	case KindThreshold:
		var p struct {
			Expected        string `json:"expected"`
			MaxDeviationBps int64  `json:"max_deviation_bps"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("threshold params: %w", err)
		}
		expected, err := fixedpoint.Parse(p.Expected)
		if err != nil {
			return nil, fmt.Errorf("threshold expected: %w", err)
		}
		if p.MaxDeviationBps < 0 {
			return nil, fmt.Errorf("threshold max_deviation_bps must not be negative, got %d", p.MaxDeviationBps)
		}
		return Threshold{Expected: expected, MaxDeviationBps: p.MaxDeviationBps}, nil

	case KindMinCount:
		var p struct {
			MinCount uint64 `json:"min_count"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("min_count params: %w", err)
		}
		return MinCount{Min: new(big.Int).SetUint64(p.MinCount)}, nil

	case KindContains:
		var p struct {
			Substring string `json:"substring"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("contains params: %w", err)
		}
		if p.Substring == "" {
			return nil, fmt.Errorf("contains substring must not be empty")
		}
		return Contains{Substring: p.Substring}, nil

	case KindExpr:
		var p struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("expr params: %w", err)
		}
		return NewExpr(p.Expression)
	}
	return nil, fmt.Errorf("unknown check kind %q", kind)
}
