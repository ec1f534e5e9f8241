// Package parse converts free-text triage instructions into structured rules.
//
// Parsing is heuristic and deterministic: the same instruction and
// example thread always yield the same rule, and arbitrary text never
// fails. When nothing is recognized the result is a low-value rule named
// "Custom Rule" with empty criteria, which matches every thread; callers
// should warn the user before saving one.
package parse

import (
	"regexp"
	"strings"

	"github.com/mailsift/sift/internal/model"
)

// ParsedRule is the structured result of parsing one instruction.
type ParsedRule struct {
	Name       string
	Criteria   model.MatchingCriteria
	Actions    model.RuleActions
	Confidence float64
}

const (
	// DefaultRuleName is used when neither the instruction nor the
	// example thread yields a better name.
	DefaultRuleName = "Custom Rule"
	// DefaultFolder is the filing fallback when a move is requested but
	// no folder can be extracted.
	DefaultFolder = "Processed Items"

	confidenceWithExample = 0.9
	confidenceTextOnly    = 0.8

	maxSubjectKeywords = 3
	maxRuleNameLen     = 60
)

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "await": {}, "been": {}, "before": {},
	"email": {}, "from": {}, "have": {}, "into": {}, "please": {},
	"request": {}, "that": {}, "their": {}, "them": {}, "these": {},
	"this": {}, "update": {}, "with": {}, "would": {}, "your": {},
}

// Free public mail providers whose domains identify no organization.
var publicProviders = []string{"gmail", "yahoo", "hotmail", "outlook"}

var (
	wordRe         = regexp.MustCompile(`[A-Za-z0-9]+`)
	quotedFolderRe = regexp.MustCompile(`(?i)move[^"']*["']([^"']+)["']`)
	folderRe       = regexp.MustCompile(`(?i)move\s+(?:them\s+|these\s+|those\s+|it\s+)?(?:in)?to\s+(?:the\s+)?([A-Za-z0-9][A-Za-z0-9 _/-]*?)\s*(?:folder)?\s*(?:[.!,;]|$)`)
	emailRe        = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	subjectPrefix  = regexp.MustCompile(`(?i)^(re|fwd?|fw)\s*:\s*`)
)

// Parse derives a rule from a free-text instruction, optionally anchored
// to an example thread. It never fails on arbitrary input.
func Parse(instruction string, example *model.Thread) ParsedRule {
	p := ParsedRule{
		Name:       DefaultRuleName,
		Confidence: confidenceTextOnly,
	}

	if example != nil {
		p.Confidence = confidenceWithExample
		applyExample(&p, example)
	}

	lower := strings.ToLower(instruction)

	applyCriteriaTriggers(&p, lower)
	applyActionTriggers(&p, instruction, lower, example)

	return p
}

// applyExample derives baseline criteria and a rule name from the
// example thread.
func applyExample(p *ParsedRule, example *model.Thread) {
	p.Criteria.SubjectContains = subjectKeywords(example.Subject, maxSubjectKeywords)

	if domain := example.SenderDomain(); domain != "" && !isPublicProvider(domain) {
		p.Criteria.SenderDomains = []string{domain}
	}

	if example.Category != "" && example.Category != model.CategorySpam && example.Category != model.CategoryUnknown {
		p.Criteria.Categories = []model.Category{example.Category}
	}

	if name := cleanSubject(example.Subject); name != "" {
		p.Name = name
	} else if domain := example.SenderDomain(); domain != "" {
		p.Name = "From " + domain
	}
}

// applyCriteriaTriggers layers criteria extracted from trigger phrases in
// the instruction text on top of the baseline.
func applyCriteriaTriggers(p *ParsedRule, lower string) {
	if strings.Contains(lower, "admin") {
		p.Criteria.SenderContains = appendUnique(p.Criteria.SenderContains, "admin")
	}
	for _, word := range []string{"automated", "notification"} {
		if strings.Contains(lower, word) {
			p.Criteria.SubjectContains = appendUnique(p.Criteria.SubjectContains, word)
		}
	}
	if strings.Contains(lower, "newsletter") {
		p.Criteria.SubjectContains = appendUnique(p.Criteria.SubjectContains, "newsletter")
	}
}

// applyActionTriggers derives actions from trigger phrases.
func applyActionTriggers(p *ParsedRule, instruction, lower string, example *model.Thread) {
	if strings.Contains(lower, "no action") {
		p.Actions.AutoProcess = true
		low := model.PriorityLow
		p.Actions.Priority = &low
	}

	if strings.Contains(lower, "mark as processed") || strings.Contains(lower, "mark as done") ||
		strings.Contains(lower, "mark them as processed") || strings.Contains(lower, "mark them as done") {
		p.Actions.AutoProcess = true
	}

	if strings.Contains(lower, "move ") {
		p.Actions.MoveToFolder = extractFolder(instruction, example)
	}

	switch {
	case strings.Contains(lower, "succinct") || strings.Contains(lower, "brief") || strings.Contains(lower, "concise"):
		p.Actions.ResponseStyle = model.ResponseStyleBrief
	case strings.Contains(lower, "detailed"):
		p.Actions.ResponseStyle = model.ResponseStyleDetailed
	case strings.Contains(lower, "formal"):
		p.Actions.ResponseStyle = model.ResponseStyleFormal
	case strings.Contains(lower, "casual"):
		p.Actions.ResponseStyle = model.ResponseStyleCasual
	}

	if strings.Contains(lower, "forward") {
		p.Actions.ForwardTo = emailRe.FindAllString(instruction, -1)
	}

	if strings.Contains(lower, "notify me") || strings.Contains(lower, "let me know") {
		p.Actions.NotifyUser = true
	}

	if strings.Contains(lower, "create a task") || strings.Contains(lower, "add a task") {
		p.Actions.CreateTask = true
	}

	if strings.Contains(lower, "respond automatically") || strings.Contains(lower, "reply automatically") ||
		strings.Contains(lower, "auto-respond") {
		p.Actions.AutoRespond = true
	}
}

// extractFolder resolves the target folder for a move action. Fallback
// order: explicit quoted or "move to X" phrase, keyword match against
// the example subject, then the generic default.
func extractFolder(instruction string, example *model.Thread) string {
	if m := quotedFolderRe.FindStringSubmatch(instruction); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := folderRe.FindStringSubmatch(instruction); m != nil {
		if folder := strings.TrimSpace(m[1]); folder != "" {
			return folder
		}
	}

	if example != nil {
		subject := strings.ToLower(example.Subject)
		switch {
		case strings.Contains(subject, "admin"):
			return "Admin Notifications"
		case strings.Contains(subject, "newsletter"):
			return "Newsletters"
		case strings.Contains(subject, "invoice"), strings.Contains(subject, "receipt"), strings.Contains(subject, "billing"):
			return "Finance"
		case strings.Contains(subject, "meeting"), strings.Contains(subject, "calendar"):
			return "Meetings"
		}
	}

	return DefaultFolder
}

// subjectKeywords extracts up to max non-trivial keywords from a subject
// line: longer than three characters, not a stopword, lower-cased,
// de-duplicated, in order of appearance.
func subjectKeywords(subject string, max int) []string {
	var keywords []string
	seen := make(map[string]struct{})

	for _, word := range wordRe.FindAllString(subject, -1) {
		if len(keywords) >= max {
			break
		}
		lower := strings.ToLower(word)
		if len(lower) <= 3 {
			continue
		}
		if _, stop := stopwords[lower]; stop {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		keywords = append(keywords, lower)
	}

	return keywords
}

// cleanSubject normalizes a subject line into a rule name: reply/forward
// prefixes stripped, whitespace collapsed, truncated.
func cleanSubject(subject string) string {
	s := subject
	for {
		stripped := subjectPrefix.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}
	s = strings.Join(strings.Fields(s), " ")
	if runes := []rune(s); len(runes) > maxRuleNameLen {
		s = strings.TrimSpace(string(runes[:maxRuleNameLen]))
	}
	return s
}

func isPublicProvider(domain string) bool {
	for _, provider := range publicProviders {
		if strings.Contains(domain, provider) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	for _, entry := range list {
		if entry == s {
			return list
		}
	}
	return append(list, s)
}
