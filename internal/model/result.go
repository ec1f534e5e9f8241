package model

// Processing reasons recorded on threads when the engine marks them
// handled. Rule-based decisions use ReasonRuleApplied plus the rule name.
const (
	ReasonSpam           = "spam"
	ReasonDraftSent      = "draft_sent"
	ReasonDraftInMailbox = "draft_in_mailbox"
	ReasonTasksCompleted = "tasks_completed"
	ReasonFYIAgedOut     = "fyi_aged_out"
	ReasonManual         = "manual"
	ReasonRuleApplied    = "rule_applied"
)

// ProcessingResult is the outcome of one per-thread triage decision.
type ProcessingResult struct {
	Reason              string   `json:"reason,omitempty"`
	Actions             []string `json:"actions,omitempty"`
	AppliedRules        []string `json:"applied_rules,omitempty"`
	IsProcessed         bool     `json:"is_processed"`
	RuleBasedProcessing bool     `json:"rule_based_processing"`
}

// ProcessingStats summarizes a user's triage state.
type ProcessingStats struct {
	ProcessingReasons map[string]int `json:"processing_reasons"`
	Total             int            `json:"total"`
	Active            int            `json:"active"`
	Processed         int            `json:"processed"`
}
