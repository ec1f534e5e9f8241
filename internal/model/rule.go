package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MatchingCriteria is the predicate half of a rule. Every present field
// must hold for a thread to match (AND across fields); list-valued fields
// match when any entry holds (OR within a field). An entirely empty
// criteria set matches every thread.
type MatchingCriteria struct {
	SenderDomains       []string       `json:"sender_domains,omitempty"`
	SenderEmails        []string       `json:"sender_emails,omitempty"`
	SenderContains      []string       `json:"sender_contains,omitempty"`
	SubjectContains     []string       `json:"subject_contains,omitempty"`
	SubjectExact        []string       `json:"subject_exact,omitempty"`
	SubjectPattern      string         `json:"subject_pattern,omitempty"`
	BodyContains        []string       `json:"body_contains,omitempty"`
	BodyPattern         string         `json:"body_pattern,omitempty"`
	Categories          []Category     `json:"categories,omitempty"`
	Priorities          []Priority     `json:"priorities,omitempty"`
	ParticipantsInclude []string       `json:"participants_include,omitempty"`
	ParticipantsExclude []string       `json:"participants_exclude,omitempty"`
	Recurring           bool           `json:"recurring,omitempty"`
	Frequency           string         `json:"frequency,omitempty"`
	TimeOfDayStart      string         `json:"time_of_day_start,omitempty"`
	TimeOfDayEnd        string         `json:"time_of_day_end,omitempty"`
	DaysOfWeek          []time.Weekday `json:"days_of_week,omitempty"`
}

// IsEmpty reports whether no matching field is present at all. An empty
// criteria set is valid but matches every thread.
func (c *MatchingCriteria) IsEmpty() bool {
	return len(c.SenderDomains) == 0 &&
		len(c.SenderEmails) == 0 &&
		len(c.SenderContains) == 0 &&
		len(c.SubjectContains) == 0 &&
		len(c.SubjectExact) == 0 &&
		c.SubjectPattern == "" &&
		len(c.BodyContains) == 0 &&
		c.BodyPattern == "" &&
		len(c.Categories) == 0 &&
		len(c.Priorities) == 0 &&
		len(c.ParticipantsInclude) == 0 &&
		len(c.ParticipantsExclude) == 0
}

// DropInvalidPatterns removes regex fields that fail to compile and
// returns the names of the fields it cleared. Regex criteria are
// untrusted input; clearing at save time keeps match-time evaluation
// free of compile failures.
func (c *MatchingCriteria) DropInvalidPatterns() []string {
	var dropped []string
	if c.SubjectPattern != "" {
		if _, err := regexp.Compile("(?i)" + c.SubjectPattern); err != nil {
			c.SubjectPattern = ""
			dropped = append(dropped, "subject_pattern")
		}
	}
	if c.BodyPattern != "" {
		if _, err := regexp.Compile("(?i)" + c.BodyPattern); err != nil {
			c.BodyPattern = ""
			dropped = append(dropped, "body_pattern")
		}
	}
	return dropped
}

// ResponseStyle is the tone a response should take when a rule supplies
// response guidance.
type ResponseStyle string

// Response styles.
const (
	ResponseStyleNone     ResponseStyle = "none"
	ResponseStyleBrief    ResponseStyle = "brief"
	ResponseStyleDetailed ResponseStyle = "detailed"
	ResponseStyleFormal   ResponseStyle = "formal"
	ResponseStyleCasual   ResponseStyle = "casual"
)

// RuleActions is the effect half of a rule. All fields are independent
// and optional.
type RuleActions struct {
	Priority         *Priority     `json:"priority,omitempty"`
	MoveToFolder     string        `json:"move_to_folder,omitempty"`
	ResponseStyle    ResponseStyle `json:"response_style,omitempty"`
	ResponseTemplate string        `json:"response_template,omitempty"`
	LearningNote     string        `json:"learning_note,omitempty"`
	ForwardTo        []string      `json:"forward_to,omitempty"`
	AutoProcess      bool          `json:"auto_process,omitempty"`
	AutoRespond      bool          `json:"auto_respond,omitempty"`
	CreateTask       bool          `json:"create_task,omitempty"`
	NotifyUser       bool          `json:"notify_user,omitempty"`
}

// Describe returns a human-readable summary of the actions, one entry
// per effect, for processing results and CLI display.
func (a RuleActions) Describe() []string {
	var out []string
	if a.AutoProcess {
		out = append(out, "auto-process")
	}
	if a.MoveToFolder != "" {
		out = append(out, fmt.Sprintf("move to %q", a.MoveToFolder))
	}
	if a.Priority != nil {
		out = append(out, fmt.Sprintf("set priority %s", *a.Priority))
	}
	if a.ResponseStyle != "" && a.ResponseStyle != ResponseStyleNone {
		out = append(out, fmt.Sprintf("respond %s", a.ResponseStyle))
	}
	if a.AutoRespond {
		out = append(out, "auto-respond")
	}
	if a.CreateTask {
		out = append(out, "create task")
	}
	if a.NotifyUser {
		out = append(out, "notify")
	}
	if len(a.ForwardTo) > 0 {
		out = append(out, fmt.Sprintf("forward to %s", strings.Join(a.ForwardTo, ", ")))
	}
	return out
}

// Rule is a user-authored matching-criteria + action pair that automates
// triage for threads resembling a pattern.
type Rule struct {
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	LastAppliedAt   *time.Time       `json:"last_applied_at,omitempty"`
	UserID          string           `json:"user_id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	Criteria        MatchingCriteria `json:"matching_criteria"`
	Actions         RuleActions      `json:"actions"`
	ID              int64            `json:"id"`
	ConfidenceScore float64          `json:"confidence_score"`
	TimesApplied    int              `json:"times_applied"`
	TimesCorrect    int              `json:"times_correct"`
	TimesIncorrect  int              `json:"times_incorrect"`
	IsActive        bool             `json:"is_active"`
}

// Validate ensures the rule has valid data before persistence.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("rule user ID is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score must be between 0 and 1")
	}
	if r.TimesCorrect+r.TimesIncorrect > r.TimesApplied {
		return fmt.Errorf("feedback counters exceed application count")
	}
	return nil
}
