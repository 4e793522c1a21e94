package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash is the canonical well-known hash of the genesis entry.
// It serves as the trust anchor of the chain; all subsequent entry hashes
// chain from this constant rather than from a computed value.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is a single completion record in the journal.
type Entry struct {
	Index         int       `json:"index"`
	Timestamp     time.Time `json:"timestamp"`
	TaskID        string    `json:"task_id"` // hex task identifier, empty for genesis
	Subject       string    `json:"subject"`
	RuleID        int64     `json:"rule_id"`
	Score         int       `json:"score"`
	PayloadDigest string    `json:"payload_digest"` // SHA-256 of the attested blob
	Forwarded     bool      `json:"forwarded"`      // whether the reputation ledger acknowledged
	PrevHash      string    `json:"prev_hash"`
	Hash          string    `json:"hash"`
}

// hashEntry computes a deterministic SHA-256 hash over an entry's fields.
// The timestamp is normalized to UTC so the hash is independent of the zone
// a storage backend hands timestamps back in. This function must never be
// called on the genesis entry (index 0).
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%d|%d|%s|%t|%s",
		e.Index, e.Timestamp.UTC().Format(time.RFC3339Nano),
		e.TaskID, e.Subject, e.RuleID, e.Score,
		e.PayloadDigest, e.Forwarded, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}
