// Package journal implements a hash-chained completion journal for scored
// validations.
//
// Every accepted attestation completion appends one entry recording the task,
// the subject, the score, and whether the result reached the reputation
// ledger. The chain begins with a well-known genesis entry whose Hash equals
// GenesisHash (64 hex zeros); every subsequent entry records the SHA-256 of
// its predecessor, making tampering detectable via Verify. Forwarding to the
// reputation ledger is best-effort, so the journal is the record of truth
// for out-of-band reconciliation of unreported completions.
//
// Two implementations of the Journal interface are provided:
//   - MemoryJournal: in-process, for testing and development.
//   - PostgresJournal: durable, for production use.
package journal

import "context"

// Record is the content of one completion, supplied by the task processor.
type Record struct {
	TaskID        string
	Subject       string
	RuleID        int64
	Score         int
	PayloadDigest string
	Forwarded     bool
}

// Journal is the interface for the append-only completion chain.
type Journal interface {
	// Append adds a new entry chained to the previous one.
	Append(ctx context.Context, rec Record) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the total number of entries (including the genesis entry).
	Len(ctx context.Context) (int, error)

	// Verify walks the entire chain and checks hash consistency.
	// Returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Root returns the hash of the most recent entry (the chain tip).
	Root(ctx context.Context) (string, error)
}
