// Package reputation delivers accepted validation results to the external
// reputation ledger. Delivery is best-effort: the engine marks a task
// processed before reporting and never unwinds that mark, so a failed report
// surfaces in logs and in the completion journal rather than as a processing
// error.
package reputation

import "context"

// Entry is one scored completion as the reputation ledger expects it.
type Entry struct {
	Subject       string `json:"subject"`
	Score         int    `json:"score"`
	Decimals      int    `json:"decimals"`
	Tag           string `json:"tag"`
	DataKey       string `json:"data_key"`
	RuleLabel     string `json:"rule_label"`
	PayloadDigest string `json:"payload_digest"`
	TaskID        string `json:"task_id"`
}

// Reporter forwards one entry to the reputation ledger. Implementations
// must treat delivery as at-most-once from the engine's point of view: the
// caller will not retry a Report call that returns an error.
type Reporter interface {
	Report(ctx context.Context, entry *Entry) error
}
