package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskID is the opaque 32-byte identifier of one attestation round. The
// canonical text form is 64 lowercase hex characters; a 0x prefix is
// accepted on input.
type TaskID [32]byte

// ParseTaskID parses the hex form of a task identifier.
func ParseTaskID(s string) (TaskID, error) {
	var id TaskID
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	if len(raw) != len(id) {
		return id, fmt.Errorf("invalid task id length: got %d bytes, want %d", len(raw), len(id))
	}
	copy(id[:], raw)
	return id, nil
}

// DigestTaskID derives a deterministic task identifier from arbitrary bytes.
// Used by the local submitter in development mode, never by the network path.
func DigestTaskID(data []byte) TaskID {
	return TaskID(sha256.Sum256(data))
}

// String returns the canonical 64-character hex form.
func (id TaskID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is all zero bytes.
func (id TaskID) IsZero() bool {
	return id == TaskID{}
}

// MarshalJSON encodes the identifier as its hex string.
func (id TaskID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a hex string identifier.
func (id *TaskID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTaskID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AttestationPayload is the externally produced attestation content. It is
// immutable: produced once by the attestation network, consumed exactly once
// by the processor. Data is the raw attested blob; its trustworthiness
// (signatures, proofs) is entirely the network's responsibility.
type AttestationPayload struct {
	TaskID    TaskID `json:"task_id"`
	Recipient string `json:"recipient"`
	Data      []byte `json:"data"`
	Timestamp int64  `json:"timestamp"` // seconds since epoch, attester-supplied
}

// Digest returns the hex SHA-256 of the raw payload data, forwarded to the
// reputation ledger so completions can be audited against the blob.
func (p *AttestationPayload) Digest() string {
	sum := sha256.Sum256(p.Data)
	return hex.EncodeToString(sum[:])
}

// CompletionEvent is the "attestation complete" callback delivered by the
// network, one per task.
type CompletionEvent struct {
	AttestationPayload
	Success bool `json:"success"`
}

// msEpochFloor is the smallest timestamp treated as milliseconds. Second
// timestamps stay below it until the year 33658.
const msEpochFloor = 1_000_000_000_000

// NormalizeTimestamp converts a possibly millisecond-precision epoch
// timestamp to seconds. Attesters disagree on units; the policy here is to
// normalize once at the ingestion boundary so the engine core always sees
// seconds. Values above 10^12 are taken to be milliseconds.
func NormalizeTimestamp(ts int64) int64 {
	if ts > msEpochFloor {
		return ts / 1000
	}
	return ts
}

// TaskStatus is the processing state of a validation task.
type TaskStatus string

const (
	// TaskStatusPending — submitted to the network, completion not yet accepted.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusProcessed — completion accepted and scored. Terminal.
	TaskStatusProcessed TaskStatus = "processed"
)

// Task is one validation round: a task identifier bound to the rule it will
// be scored against and the subject the attestation is about. The processed
// flag is the sole replay-prevention mechanism, so rows are never deleted.
type Task struct {
	ID            TaskID     `json:"task_id"                  db:"task_id"`
	RuleID        int64      `json:"rule_id"                  db:"rule_id"`
	Subject       string     `json:"subject"                  db:"subject"`
	Requester     string     `json:"requester,omitempty"      db:"requester"`
	Status        TaskStatus `json:"status"                   db:"status"`
	Score         *int       `json:"score,omitempty"          db:"score"`
	PayloadDigest string     `json:"payload_digest,omitempty" db:"payload_digest"`
	CreatedAt     time.Time  `json:"created_at"               db:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"   db:"processed_at"`
}

// Processed reports whether the task has reached its terminal state.
func (t *Task) Processed() bool {
	return t.Status == TaskStatusProcessed
}
