// Package completion implements category-specific default processing checks.
//
// The evaluator runs only when no active rule auto-processes a thread;
// it decides whether the thread counts as handled by its category's
// default logic alone and never overrides a rule-based decision.
package completion

import (
	"time"

	"github.com/mailsift/sift/internal/model"
)

// FYIAge is how long an FYI thread must sit, fully read, before it is
// considered handled.
const FYIAge = 7 * 24 * time.Hour

// Decision is the evaluator's verdict on one thread.
type Decision struct {
	Reason    string
	Processed bool
}

// Evaluate applies the category-keyed default logic to a thread. The
// caller supplies the thread's drafts and tasks plus the evaluation
// time; the function is pure.
func Evaluate(thread model.Thread, drafts []model.Draft, tasks []model.Task, now time.Time) Decision {
	switch thread.Category {
	case model.CategorySpam:
		return Decision{Processed: true, Reason: model.ReasonSpam}

	case model.CategoryVIPCritical, model.CategoryActionRequired, model.CategoryFinancial:
		return evaluateActionRequired(drafts, tasks)

	case model.CategoryMeetingRequest:
		if reason, ok := draftDelivered(drafts); ok {
			return Decision{Processed: true, Reason: reason}
		}
		return Decision{}

	case model.CategoryFYIOnly:
		return evaluateFYI(thread, now)

	default:
		// Unknown categories borrow the closest default: threads with
		// work attached behave like ACTION_REQUIRED, the rest age out
		// like FYI.
		if len(drafts) > 0 || len(tasks) > 0 {
			return evaluateActionRequired(drafts, tasks)
		}
		return evaluateFYI(thread, now)
	}
}

// evaluateActionRequired treats a thread as handled when a response has
// been delivered, or when tasks were extracted and all of them are done.
func evaluateActionRequired(drafts []model.Draft, tasks []model.Task) Decision {
	if reason, ok := draftDelivered(drafts); ok {
		return Decision{Processed: true, Reason: reason}
	}

	if len(tasks) > 0 && allTasksCompleted(tasks) {
		return Decision{Processed: true, Reason: model.ReasonTasksCompleted}
	}

	return Decision{}
}

// evaluateFYI treats a fully-read FYI thread as handled once it has aged
// out. The boundary is inclusive: exactly FYIAge old counts as aged.
func evaluateFYI(thread model.Thread, now time.Time) Decision {
	if thread.HasUnread || thread.LastMessageDate.IsZero() {
		return Decision{}
	}
	if now.Sub(thread.LastMessageDate) >= FYIAge {
		return Decision{Processed: true, Reason: model.ReasonFYIAgedOut}
	}
	return Decision{}
}

// draftDelivered reports whether any draft reached the mailbox, and how.
func draftDelivered(drafts []model.Draft) (string, bool) {
	for i := range drafts {
		if !drafts[i].Delivered() {
			continue
		}
		if drafts[i].Status == model.DraftStatusSent {
			return model.ReasonDraftSent, true
		}
		return model.ReasonDraftInMailbox, true
	}
	return "", false
}

func allTasksCompleted(tasks []model.Task) bool {
	for i := range tasks {
		if tasks[i].Status != model.TaskStatusCompleted {
			return false
		}
	}
	return true
}
