package service

import "errors"

var (
	// ErrAttestationFailed — the network reported the attestation itself as
	// failed. Nothing is recorded; the same task id may be retried.
	ErrAttestationFailed = errors.New("attestation failed; task may be retried")

	// ErrAlreadyProcessed — the replay guard tripped. Callers usually map
	// this to a benign no-op rather than a failure.
	ErrAlreadyProcessed = errors.New("task already processed")

	// ErrRuleInactive — the bound rule was disabled before the completion
	// arrived. State is unchanged; the task stays pending.
	ErrRuleInactive = errors.New("rule is inactive")

	// ErrStalePayload — the attestation is older than the rule's freshness
	// window. State is unchanged.
	ErrStalePayload = errors.New("payload is stale")

	// ErrNotAuthorized — the requester does not control the subject it
	// asked a validation for.
	ErrNotAuthorized = errors.New("requester does not control subject")

	// ErrBadCheck — the check kind or params were rejected at write time.
	ErrBadCheck = errors.New("invalid check configuration")
)
