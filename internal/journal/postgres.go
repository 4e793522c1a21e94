package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls. The value is arbitrary but must be consistent
// across all engine instances.
const advisoryLockKey = int64(2_047_831_115)

// PostgresJournal persists the completion chain to a PostgreSQL database.
// It implements the Journal interface.
type PostgresJournal struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a PostgresJournal backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *PostgresJournal {
	return &PostgresJournal{pool: pool, logger: logger}
}

// Append implements Journal.
// It acquires a PostgreSQL advisory lock, reads the chain tail, computes the
// new entry hash, and inserts it — all within a single transaction.
func (j *PostgresJournal) Append(ctx context.Context, rec Record) (*Entry, error) {
	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Serialise concurrent appends with a transaction-scoped advisory lock.
	// The lock is automatically released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	// Read the current tail of the chain.
	var prevIdx int
	var prevHash string
	if err := tx.QueryRow(ctx,
		"SELECT idx, hash FROM score_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevHash); err != nil {
		return nil, fmt.Errorf("read journal tail: %w", err)
	}

	// timestamptz keeps microseconds; truncate so Verify recomputes the same
	// hash after a round trip.
	entry := &Entry{
		Index:         prevIdx + 1,
		Timestamp:     time.Now().UTC().Truncate(time.Microsecond),
		TaskID:        rec.TaskID,
		Subject:       rec.Subject,
		RuleID:        rec.RuleID,
		Score:         rec.Score,
		PayloadDigest: rec.PayloadDigest,
		Forwarded:     rec.Forwarded,
		PrevHash:      prevHash,
	}
	entry.Hash = hashEntry(entry)

	if _, err := tx.Exec(ctx,
		`INSERT INTO score_journal (idx, timestamp, task_id, subject, rule_id, score, payload_digest, forwarded, prev_hash, hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.Index, entry.Timestamp, entry.TaskID, entry.Subject,
		entry.RuleID, entry.Score, entry.PayloadDigest, entry.Forwarded,
		entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit journal tx: %w", err)
	}

	j.logger.Debug("journal entry appended",
		zap.Int("idx", entry.Index),
		zap.String("task_id", entry.TaskID),
		zap.Int("score", entry.Score),
	)
	return entry, nil
}

// Get implements Journal.
func (j *PostgresJournal) Get(ctx context.Context, index int) (*Entry, error) {
	entry := &Entry{}
	if err := j.pool.QueryRow(ctx,
		`SELECT idx, timestamp, task_id, subject, rule_id, score, payload_digest, forwarded, prev_hash, hash
		 FROM score_journal WHERE idx = $1`, index,
	).Scan(
		&entry.Index, &entry.Timestamp, &entry.TaskID, &entry.Subject,
		&entry.RuleID, &entry.Score, &entry.PayloadDigest, &entry.Forwarded,
		&entry.PrevHash, &entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("get journal entry %d: %w", index, err)
	}
	return entry, nil
}

// Len implements Journal.
func (j *PostgresJournal) Len(ctx context.Context) (int, error) {
	var n int
	if err := j.pool.QueryRow(ctx, "SELECT COUNT(*) FROM score_journal").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return n, nil
}

// Verify implements Journal. It streams all rows ordered by idx and validates
// the hash chain. O(n) in journal length; may be slow for very large journals.
func (j *PostgresJournal) Verify(ctx context.Context) error {
	rows, err := j.pool.Query(ctx,
		`SELECT idx, timestamp, task_id, subject, rule_id, score, payload_digest, forwarded, prev_hash, hash
		 FROM score_journal ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var prev *Entry
	for rows.Next() {
		curr := &Entry{}
		if err := rows.Scan(
			&curr.Index, &curr.Timestamp, &curr.TaskID, &curr.Subject,
			&curr.RuleID, &curr.Score, &curr.PayloadDigest, &curr.Forwarded,
			&curr.PrevHash, &curr.Hash,
		); err != nil {
			return fmt.Errorf("scan journal row: %w", err)
		}

		if prev == nil {
			// Validate genesis: hash must be the well-known constant.
			if curr.Hash != GenesisHash {
				return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
			}
			prev = curr
			continue
		}

		if curr.PrevHash != prev.Hash {
			return fmt.Errorf("hash chain broken at index %d", curr.Index)
		}
		if curr.Hash != hashEntry(curr) {
			return fmt.Errorf("entry %d has invalid hash", curr.Index)
		}
		prev = curr
	}
	return rows.Err()
}

// Root implements Journal.
func (j *PostgresJournal) Root(ctx context.Context) (string, error) {
	var hash string
	if err := j.pool.QueryRow(ctx,
		"SELECT hash FROM score_journal ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get journal root: %w", err)
	}
	return hash, nil
}
