package model

import "time"

// Feedback is a user's verdict on one rule application.
type Feedback string

// Feedback values.
const (
	FeedbackCorrect          Feedback = "correct"
	FeedbackIncorrect        Feedback = "incorrect"
	FeedbackPartiallyCorrect Feedback = "partially_correct"
)

// Valid reports whether the feedback value is one of the known verdicts.
func (f Feedback) Valid() bool {
	switch f {
	case FeedbackCorrect, FeedbackIncorrect, FeedbackPartiallyCorrect:
		return true
	default:
		return false
	}
}

// RuleApplication is an append-only log entry recording one firing of a
// rule against one thread. ActionsTaken is a snapshot of the rule's
// actions at application time; editing the rule later must not change it.
type RuleApplication struct {
	AppliedAt     time.Time   `json:"applied_at"`
	FeedbackAt    *time.Time  `json:"feedback_at,omitempty"`
	UserFeedback  *Feedback   `json:"user_feedback,omitempty"`
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	ThreadID      string      `json:"thread_id"`
	FeedbackNotes string      `json:"feedback_notes,omitempty"`
	ActionsTaken  RuleActions `json:"actions_taken"`
	RuleID        int64       `json:"rule_id"`
}
