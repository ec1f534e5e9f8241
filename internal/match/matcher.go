// Package match evaluates rule matching criteria against threads.
package match

import (
	"regexp"
	"strings"

	"github.com/mailsift/sift/internal/model"
)

// Matcher evaluates threads against a fixed set of rules. Matching is a
// pure function of the rule criteria and the thread snapshot; regex
// patterns are compiled once at construction so a malformed pattern can
// never fail at match time (it simply never matches).
type Matcher struct {
	subjectRegex map[int64]*regexp.Regexp
	bodyRegex    map[int64]*regexp.Regexp
	rules        []model.Rule
}

// New creates a matcher over the given rules, preserving their order.
func New(rules []model.Rule) *Matcher {
	m := &Matcher{
		rules:        rules,
		subjectRegex: make(map[int64]*regexp.Regexp),
		bodyRegex:    make(map[int64]*regexp.Regexp),
	}

	for _, rule := range rules {
		if p := rule.Criteria.SubjectPattern; p != "" {
			if re, err := regexp.Compile("(?i)" + p); err == nil {
				m.subjectRegex[rule.ID] = re
			}
		}
		if p := rule.Criteria.BodyPattern; p != "" {
			if re, err := regexp.Compile("(?i)" + p); err == nil {
				m.bodyRegex[rule.ID] = re
			}
		}
	}

	return m
}

// Match returns the active rules whose criteria all hold for the thread,
// in the order the rules were supplied.
func (m *Matcher) Match(thread model.Thread) []model.Rule {
	var matches []model.Rule

	for _, rule := range m.rules {
		if !rule.IsActive {
			continue
		}
		if m.Matches(rule, thread) {
			matches = append(matches, rule)
		}
	}

	return matches
}

// Matches reports whether every present criteria field of the rule holds
// for the thread. A rule with an entirely empty criteria set matches
// every thread.
func (m *Matcher) Matches(rule model.Rule, thread model.Thread) bool {
	c := rule.Criteria

	if !m.matchesSender(c, thread) {
		return false
	}
	if !m.matchesSubject(rule.ID, c, thread.Subject) {
		return false
	}
	if !m.matchesBody(rule.ID, c, thread.Body) {
		return false
	}
	if !matchesThreadFields(c, thread) {
		return false
	}

	return true
}

func (m *Matcher) matchesSender(c model.MatchingCriteria, thread model.Thread) bool {
	sender := strings.ToLower(thread.Sender)

	if len(c.SenderDomains) > 0 {
		domain := thread.SenderDomain()
		if domain == "" || !containsFold(c.SenderDomains, domain) {
			return false
		}
	}

	if len(c.SenderEmails) > 0 {
		if sender == "" || !containsFold(c.SenderEmails, sender) {
			return false
		}
	}

	if len(c.SenderContains) > 0 {
		if sender == "" || !anySubstring(sender, c.SenderContains) {
			return false
		}
	}

	return true
}

func (m *Matcher) matchesSubject(ruleID int64, c model.MatchingCriteria, subject string) bool {
	if len(c.SubjectContains) > 0 && !anySubstring(strings.ToLower(subject), c.SubjectContains) {
		return false
	}

	if len(c.SubjectExact) > 0 && !containsFold(c.SubjectExact, subject) {
		return false
	}

	if c.SubjectPattern != "" {
		re, ok := m.subjectRegex[ruleID]
		if !ok || !re.MatchString(subject) {
			return false
		}
	}

	return true
}

func (m *Matcher) matchesBody(ruleID int64, c model.MatchingCriteria, body string) bool {
	if len(c.BodyContains) > 0 {
		if body == "" || !anySubstring(strings.ToLower(body), c.BodyContains) {
			return false
		}
	}

	if c.BodyPattern != "" {
		re, ok := m.bodyRegex[ruleID]
		if !ok || body == "" || !re.MatchString(body) {
			return false
		}
	}

	return true
}

func matchesThreadFields(c model.MatchingCriteria, thread model.Thread) bool {
	if len(c.Categories) > 0 {
		found := false
		for _, cat := range c.Categories {
			if cat == thread.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.Priorities) > 0 {
		found := false
		for _, pri := range c.Priorities {
			if pri == thread.Priority {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(c.ParticipantsInclude) > 0 && !anyParticipant(thread.Participants, c.ParticipantsInclude) {
		return false
	}

	if len(c.ParticipantsExclude) > 0 && anyParticipant(thread.Participants, c.ParticipantsExclude) {
		return false
	}

	// Temporal criteria (recurring, frequency, time-of-day, day-of-week)
	// are declarative only and not enforced at match time.

	return true
}

// containsFold reports whether any list entry equals s, ignoring case.
func containsFold(list []string, s string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, s) {
			return true
		}
	}
	return false
}

// anySubstring reports whether any list entry occurs in the lower-cased
// haystack. Entries are lower-cased before testing.
func anySubstring(haystack string, needles []string) bool {
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

// anyParticipant reports whether any address in the list appears among
// the thread participants, ignoring case.
func anyParticipant(participants, addresses []string) bool {
	for _, p := range participants {
		if containsFold(addresses, p) {
			return true
		}
	}
	return false
}
