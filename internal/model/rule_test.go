package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleValidate(t *testing.T) {
	valid := Rule{UserID: "u1", Name: "r", ConfidenceScore: 0.5}

	tests := []struct {
		mutate  func(*Rule)
		name    string
		wantErr string
	}{
		{name: "valid", mutate: func(*Rule) {}},
		{
			name:    "missing user",
			mutate:  func(r *Rule) { r.UserID = "  " },
			wantErr: "user ID",
		},
		{
			name:    "missing name",
			mutate:  func(r *Rule) { r.Name = "" },
			wantErr: "name",
		},
		{
			name:    "confidence below range",
			mutate:  func(r *Rule) { r.ConfidenceScore = -0.01 },
			wantErr: "confidence",
		},
		{
			name:    "confidence above range",
			mutate:  func(r *Rule) { r.ConfidenceScore = 1.01 },
			wantErr: "confidence",
		},
		{
			name: "feedback exceeds applications",
			mutate: func(r *Rule) {
				r.TimesApplied = 2
				r.TimesCorrect = 2
				r.TimesIncorrect = 1
			},
			wantErr: "feedback counters",
		},
		{
			name: "counters at the limit",
			mutate: func(r *Rule) {
				r.TimesApplied = 3
				r.TimesCorrect = 2
				r.TimesIncorrect = 1
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)
			err := rule.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestMatchingCriteriaIsEmpty(t *testing.T) {
	var empty MatchingCriteria
	assert.True(t, empty.IsEmpty())

	// Temporal fields alone never make criteria non-empty.
	temporal := MatchingCriteria{Recurring: true, Frequency: "weekly", TimeOfDayStart: "09:00"}
	assert.True(t, temporal.IsEmpty())

	withSender := MatchingCriteria{SenderDomains: []string{"example.com"}}
	assert.False(t, withSender.IsEmpty())

	withPattern := MatchingCriteria{BodyPattern: `\bunsubscribe\b`}
	assert.False(t, withPattern.IsEmpty())
}

func TestDropInvalidPatterns(t *testing.T) {
	c := MatchingCriteria{
		SubjectPattern: "([unclosed",
		BodyPattern:    `valid \d+`,
	}

	dropped := c.DropInvalidPatterns()
	assert.Equal(t, []string{"subject_pattern"}, dropped)
	assert.Empty(t, c.SubjectPattern)
	assert.Equal(t, `valid \d+`, c.BodyPattern)

	// Already-clean criteria are untouched.
	assert.Empty(t, c.DropInvalidPatterns())
}

func TestRuleActionsDescribe(t *testing.T) {
	assert.Empty(t, RuleActions{}.Describe())

	high := PriorityHigh
	actions := RuleActions{
		AutoProcess:  true,
		MoveToFolder: "Newsletters",
		Priority:     &high,
		ForwardTo:    []string{"ops@example.com"},
	}
	got := actions.Describe()
	assert.Equal(t, []string{
		"auto-process",
		`move to "Newsletters"`,
		"set priority high",
		"forward to ops@example.com",
	}, got)
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		sender string
		want   string
	}{
		{sender: "alice@Example.COM", want: "example.com"},
		{sender: "no-domain", want: ""},
		{sender: "trailing@", want: ""},
		{sender: "", want: ""},
		{sender: "quoted@odd@host.example.org", want: "host.example.org"},
	}

	for _, tt := range tests {
		thread := Thread{Sender: tt.sender}
		assert.Equal(t, tt.want, thread.SenderDomain(), "sender %q", tt.sender)
	}
}

func TestDraftDelivered(t *testing.T) {
	ref := "ref-1"
	emptyRef := ""

	tests := []struct {
		ref    *string
		name   string
		status DraftStatus
		want   bool
	}{
		{name: "sent", status: DraftStatusSent, want: true},
		{name: "plain draft", status: DraftStatusDraft, want: false},
		{name: "in mailbox with ref", status: DraftStatusInMailbox, ref: &ref, want: true},
		{name: "in mailbox without ref", status: DraftStatusInMailbox, want: false},
		{name: "in mailbox with empty ref", status: DraftStatusInMailbox, ref: &emptyRef, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Draft{Status: tt.status, MailboxRef: tt.ref}
			assert.Equal(t, tt.want, d.Delivered())
		})
	}
}

func TestFeedbackValid(t *testing.T) {
	assert.True(t, FeedbackCorrect.Valid())
	assert.True(t, FeedbackIncorrect.Valid())
	assert.True(t, FeedbackPartiallyCorrect.Valid())
	assert.False(t, Feedback("").Valid())
	assert.False(t, Feedback("sort of").Valid())
}
