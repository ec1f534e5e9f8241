// Package engine orchestrates per-thread triage decisions.
//
// A thread enters the engine, the highest-confidence matching rule with
// auto-process wins, and everything else falls through to the
// category-specific completion checks. Each decision is independent;
// the only shared state is the append-only application log and the
// per-rule counters, both maintained by the storage layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/completion"
	"github.com/mailsift/sift/internal/match"
	"github.com/mailsift/sift/internal/model"
	"github.com/mailsift/sift/internal/parse"
	"github.com/mailsift/sift/internal/service"
)

// Engine is the rule-based email processing engine.
type Engine struct {
	storage service.Storage
	mailbox service.Mailbox
	clock   func() time.Time
}

// New creates a new engine with the given dependencies.
func New(storage service.Storage, mailbox service.Mailbox) *Engine {
	return NewWithClock(storage, mailbox, time.Now)
}

// NewWithClock creates an engine with an injected clock so time-dependent
// decisions (FYI aging) can be pinned in tests.
func NewWithClock(storage service.Storage, mailbox service.Mailbox, clock func() time.Time) *Engine {
	return &Engine{
		storage: storage,
		mailbox: mailbox,
		clock:   clock,
	}
}

// CheckThreadProcessingStatus runs the triage decision for one thread and
// persists the outcome. Already-processed threads short-circuit with
// their recorded reason.
func (e *Engine) CheckThreadProcessingStatus(ctx context.Context, userID, threadID string) (*model.ProcessingResult, error) {
	thread, err := e.storage.GetThread(ctx, userID, threadID)
	if err != nil {
		return nil, err
	}

	if thread.IsProcessed {
		return &model.ProcessingResult{
			IsProcessed: true,
			Reason:      thread.ProcessingReason,
		}, nil
	}

	result, err := e.decide(ctx, userID, *thread)
	if err != nil {
		return nil, err
	}

	if result.IsProcessed {
		if err := e.storage.MarkThreadProcessed(ctx, userID, threadID, result.Reason, true); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// decide runs the rule matcher and, failing an auto-processing match,
// the completion evaluator. A rule that matches without auto_process has
// no effect and is not recorded.
func (e *Engine) decide(ctx context.Context, userID string, thread model.Thread) (*model.ProcessingResult, error) {
	rules, err := e.storage.GetActiveRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	if len(rules) > 0 {
		matches := match.New(rules).Match(thread)
		if len(matches) > 0 {
			best := matches[0]
			if best.Actions.AutoProcess {
				return e.applyRule(ctx, userID, best, thread)
			}
			slog.Debug("Best matching rule does not auto-process, falling through",
				"rule", best.Name, "thread_id", thread.ID)
		}
	}

	drafts, err := e.storage.GetThreadDrafts(ctx, userID, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load drafts: %w", err)
	}
	tasks, err := e.storage.GetThreadTasks(ctx, userID, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	decision := completion.Evaluate(thread, drafts, tasks, e.clock())
	return &model.ProcessingResult{
		IsProcessed: decision.Processed,
		Reason:      decision.Reason,
	}, nil
}

// applyRule records one rule application (snapshotting the actions in
// effect), fires the filing side effect, and reports the decision. The
// storage layer guarantees the log write and the counter increment are
// one transaction.
func (e *Engine) applyRule(ctx context.Context, userID string, rule model.Rule, thread model.Thread) (*model.ProcessingResult, error) {
	app := &model.RuleApplication{
		ID:           uuid.NewString(),
		UserID:       userID,
		RuleID:       rule.ID,
		ThreadID:     thread.ID,
		ActionsTaken: rule.Actions,
		AppliedAt:    e.clock().UTC(),
	}

	if err := e.storage.RecordApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to record rule application: %w", err)
	}

	if folder := rule.Actions.MoveToFolder; folder != "" {
		e.fileThread(ctx, userID, thread.ID, folder)
	}

	slog.Info("Applied rule to thread",
		"rule", rule.Name,
		"thread_id", thread.ID,
		"confidence", rule.ConfidenceScore)

	return &model.ProcessingResult{
		IsProcessed:         true,
		Reason:              fmt.Sprintf("%s: %s", model.ReasonRuleApplied, rule.Name),
		Actions:             rule.Actions.Describe(),
		AppliedRules:        []string{rule.Name},
		RuleBasedProcessing: true,
	}, nil
}

// fileThread moves a thread into a folder with retry. Filing is a side
// effect of the decision, not part of its contract: a move that still
// fails after retries is logged and the thread stays processed.
func (e *Engine) fileThread(ctx context.Context, userID, threadID, folder string) {
	err := common.WithRetry(ctx, func() error {
		return e.mailbox.MoveThread(ctx, userID, threadID, folder)
	}, service.RetryOptions{MaxAttempts: 3})
	if err != nil {
		slog.Warn("Failed to file thread",
			"thread_id", threadID,
			"folder", folder,
			"error", err)
	}
}

// MarkThreadProcessed marks a thread handled with an explicit reason.
func (e *Engine) MarkThreadProcessed(ctx context.Context, userID, threadID, reason string, hidden bool) error {
	if strings.TrimSpace(reason) == "" {
		reason = model.ReasonManual
	}
	return e.storage.MarkThreadProcessed(ctx, userID, threadID, reason, hidden)
}

// UnmarkThreadProcessed returns a thread to the active queue.
func (e *Engine) UnmarkThreadProcessed(ctx context.Context, userID, threadID string) error {
	return e.storage.UnmarkThreadProcessed(ctx, userID, threadID)
}

// AutoProcessThreads runs the decision over every unprocessed thread and
// marks the ones that come back processed. A per-thread failure is
// logged and skipped; the batch never aborts on one bad thread. Returns
// the number of threads actually marked processed.
func (e *Engine) AutoProcessThreads(ctx context.Context, userID string) (int, error) {
	return e.AutoProcessThreadsWithProgress(ctx, userID, nil)
}

// AutoProcessThreadsWithProgress is AutoProcessThreads with a per-thread
// callback for progress reporting.
func (e *Engine) AutoProcessThreadsWithProgress(ctx context.Context, userID string, onThread func()) (int, error) {
	threads, err := e.storage.GetUnprocessedThreads(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load unprocessed threads: %w", err)
	}

	processed := 0
	for i := range threads {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		thread := threads[i]
		if onThread != nil {
			onThread()
		}

		result, err := e.decide(ctx, userID, thread)
		if err != nil {
			common.LogError(err, "Failed to decide thread, skipping",
				common.Fields{"thread_id": thread.ID})
			continue
		}
		if !result.IsProcessed {
			continue
		}

		if err := e.storage.MarkThreadProcessed(ctx, userID, thread.ID, result.Reason, true); err != nil {
			common.LogError(err, "Failed to mark thread processed, skipping",
				common.Fields{"thread_id": thread.ID})
			continue
		}
		processed++
	}

	return processed, nil
}

// GetProcessingStats summarizes the user's triage state.
func (e *Engine) GetProcessingStats(ctx context.Context, userID string) (*model.ProcessingStats, error) {
	return e.storage.GetProcessingStats(ctx, userID)
}

// CreateRuleFromInstruction parses a free-text instruction, optionally
// anchored to an example thread, into a persisted rule. Bad input never
// hard-fails rule creation; unrecognized text degrades to a low-value
// rule the caller should warn about.
func (e *Engine) CreateRuleFromInstruction(ctx context.Context, userID, instruction, exampleThreadID string) (*model.Rule, error) {
	var example *model.Thread
	if exampleThreadID != "" {
		thread, err := e.storage.GetThread(ctx, userID, exampleThreadID)
		if err != nil {
			return nil, err
		}
		example = thread
	}

	parsed := parse.Parse(instruction, example)

	rule := &model.Rule{
		UserID:          userID,
		Name:            parsed.Name,
		Description:     instruction,
		IsActive:        true,
		Criteria:        parsed.Criteria,
		Actions:         parsed.Actions,
		ConfidenceScore: parsed.Confidence,
	}

	if err := e.storage.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	if rule.Criteria.IsEmpty() {
		slog.Warn("Created rule with empty criteria; it matches every thread",
			"rule_id", rule.ID, "name", rule.Name)
	}

	return rule, nil
}

// GetUserRules lists all of the user's rules, newest first.
func (e *Engine) GetUserRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return e.storage.GetUserRules(ctx, userID)
}

// ProvideFeedback records a verdict on one rule application. Feedback is
// analytics only: it updates the correctness counters but never the
// rule's confidence score, which is adjusted explicitly through
// SetRuleConfidence.
func (e *Engine) ProvideFeedback(ctx context.Context, userID, applicationID string, feedback model.Feedback, notes string) error {
	if !feedback.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidFeedback, feedback)
	}
	return e.storage.SetApplicationFeedback(ctx, userID, applicationID, feedback, notes)
}

// DeleteRule removes a rule and its application log. Deleting a rule
// that is already gone is a no-op success.
func (e *Engine) DeleteRule(ctx context.Context, userID string, ruleID int64) error {
	return e.storage.DeleteRule(ctx, userID, ruleID)
}

// ToggleRule sets a rule's active flag. Toggling to the current state is
// a no-op success; toggling an unknown rule is a not-found error.
func (e *Engine) ToggleRule(ctx context.Context, userID string, ruleID int64, active bool) error {
	return e.storage.SetRuleActive(ctx, userID, ruleID, active)
}

// SetRuleConfidence sets a rule's confidence score explicitly.
func (e *Engine) SetRuleConfidence(ctx context.Context, userID string, ruleID int64, confidence float64) error {
	if confidence < 0 || confidence > 1 {
		return common.ErrInvalidConfidence
	}
	return e.storage.SetRuleConfidence(ctx, userID, ruleID, confidence)
}
