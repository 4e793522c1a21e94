package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/journal"
	"github.com/xiangxiecrypto/veritas-sub001/internal/reputation"
)

// ForwardMetricsRecorder is an optional callback for recording reputation
// forwarding outcomes.
type ForwardMetricsRecorder func(success bool)

// TaskStore is the persistence interface for the processor and the
// validation service. *repository.TaskRepository, *repository.MemoryTaskStore
// and *repository.RedisTaskStore satisfy it; cmd/engine picks one per the
// storage backend setting.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Get(ctx context.Context, id model.TaskID) (*model.Task, error)
	MarkProcessed(ctx context.Context, id model.TaskID) (bool, error)
	RecordResult(ctx context.Context, id model.TaskID, score int, payloadDigest string) error
	ListBySubject(ctx context.Context, subject string, limit, offset int) ([]*model.Task, error)
}

// ruleGetter is the slice of rule configuration the processor needs.
type ruleGetter interface {
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
}

// TaskProcessor drives one completion event per task through the guard
// chain to the terminal processed state. The ordering is load-bearing:
// the processed mark is committed before scoring and before any external
// call, so a re-entrant or duplicate delivery of the same task loses the
// store-level CAS and is turned away as already processed. Failures after
// the mark never unwind it; a processed-but-unreported task is the
// documented trade (at-most-once delivery to the reputation ledger).
type TaskProcessor struct {
	tasks     TaskStore
	rules     ruleGetter
	scorer    *Scorer
	reporter  reputation.Reporter // nil = no forwarding
	journal   journal.Journal     // nil = no completion records
	onForward ForwardMetricsRecorder
	now       func() time.Time
	logger    *zap.Logger
}

// NewTaskProcessor creates a TaskProcessor. Reporter and journal start
// unset; configure them with SetReporter and SetJournal.
func NewTaskProcessor(tasks TaskStore, rules ruleGetter, scorer *Scorer, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{
		tasks:  tasks,
		rules:  rules,
		scorer: scorer,
		now:    time.Now,
		logger: logger,
	}
}

// SetReporter configures the reputation collaborator scores are forwarded to.
func (p *TaskProcessor) SetReporter(r reputation.Reporter) {
	p.reporter = r
}

// SetJournal configures the completion journal.
func (p *TaskProcessor) SetJournal(j journal.Journal) {
	p.journal = j
}

// SetForwardRecorder configures the forwarding metrics callback.
func (p *TaskProcessor) SetForwardRecorder(fn ForwardMetricsRecorder) {
	p.onForward = fn
}

// SetClock replaces the freshness clock.
func (p *TaskProcessor) SetClock(now func() time.Time) {
	p.now = now
}

// HandleCompletion processes one attestation-complete event. Guards run in
// a fixed order and the first failure aborts with no state change: the
// attestation must have succeeded, the task must be known and not yet
// processed, its rule must be active, and the payload must be fresh. Only
// then does the processed mark commit, followed by scoring, result
// recording, reputation forwarding, and the journal append — everything
// after the mark is non-reverting.
//
// On success the returned task carries the final score. ErrAlreadyProcessed
// is returned with the existing task so callers can respond idempotently.
func (p *TaskProcessor) HandleCompletion(ctx context.Context, ev *model.CompletionEvent) (*model.Task, error) {
	if !ev.Success {
		return nil, ErrAttestationFailed
	}

	task, err := p.tasks.Get(ctx, ev.TaskID)
	if err != nil {
		return nil, err
	}
	if task.Processed() {
		return task, ErrAlreadyProcessed
	}

	rule, err := p.rules.GetRule(ctx, task.RuleID)
	if err != nil {
		return nil, fmt.Errorf("load rule %d: %w", task.RuleID, err)
	}
	if !rule.Active {
		return nil, ErrRuleInactive
	}

	age := p.now().UTC().Unix() - ev.Timestamp
	if age > rule.MaxAge {
		return nil, fmt.Errorf("%w: age %ds exceeds max %ds", ErrStalePayload, age, rule.MaxAge)
	}

	// Commit point. The CAS closes the re-entrancy window: whoever flips
	// pending → processed owns the rest of the pipeline.
	flipped, err := p.tasks.MarkProcessed(ctx, ev.TaskID)
	if err != nil {
		return nil, fmt.Errorf("mark task %s processed: %w", ev.TaskID, err)
	}
	if !flipped {
		return task, ErrAlreadyProcessed
	}

	report, err := p.scorer.Score(ctx, rule, ev.Data)
	if err != nil {
		p.logger.Error("scoring failed after processed mark; task stays processed",
			zap.String("task_id", ev.TaskID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("score task %s: %w", ev.TaskID, err)
	}

	digest := ev.Digest()
	if err := p.tasks.RecordResult(ctx, ev.TaskID, report.Score, digest); err != nil {
		p.logger.Error("record result failed (non-fatal)",
			zap.String("task_id", ev.TaskID.String()),
			zap.Error(err),
		)
	}

	forwarded := p.forward(ctx, task, rule, report, digest)
	p.appendJournal(ctx, task, report, digest, forwarded)

	p.logger.Info("task processed",
		zap.String("task_id", ev.TaskID.String()),
		zap.Int64("rule_id", rule.ID),
		zap.String("subject", task.Subject),
		zap.Int("score", report.Score),
		zap.Bool("forwarded", forwarded),
	)

	now := p.now().UTC()
	task.Status = model.TaskStatusProcessed
	task.Score = &report.Score
	task.PayloadDigest = digest
	task.ProcessedAt = &now
	return task, nil
}

// forward reports the score to the reputation collaborator. Failures are
// logged and swallowed; the processed mark is never unwound.
func (p *TaskProcessor) forward(ctx context.Context, task *model.Task, rule *model.Rule, report *model.ScoreReport, digest string) bool {
	if p.reporter == nil {
		return false
	}

	entry := &reputation.Entry{
		Subject:       task.Subject,
		Score:         report.Score,
		Decimals:      0,
		Tag:           "validation",
		DataKey:       rule.DataKey,
		RuleLabel:     rule.Description,
		PayloadDigest: digest,
		TaskID:        task.ID.String(),
	}
	if err := p.reporter.Report(ctx, entry); err != nil {
		p.logger.Error("reputation forwarding failed (non-fatal)",
			zap.String("task_id", task.ID.String()),
			zap.String("subject", task.Subject),
			zap.Error(err),
		)
		if p.onForward != nil {
			p.onForward(false)
		}
		return false
	}

	if p.onForward != nil {
		p.onForward(true)
	}
	return true
}

// appendJournal emits the completion record in a non-fatal manner.
func (p *TaskProcessor) appendJournal(ctx context.Context, task *model.Task, report *model.ScoreReport, digest string, forwarded bool) {
	if p.journal == nil {
		return
	}
	rec := journal.Record{
		TaskID:        task.ID.String(),
		Subject:       task.Subject,
		RuleID:        report.RuleID,
		Score:         report.Score,
		PayloadDigest: digest,
		Forwarded:     forwarded,
	}
	if _, err := p.journal.Append(ctx, rec); err != nil {
		p.logger.Error("journal append failed (non-fatal)",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
	}
}
