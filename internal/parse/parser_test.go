package parse

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsift/sift/internal/model"
)

const adminInstruction = "These admin notifications require no action. Move them to the Admin folder."

func TestParse_InstructionOnly(t *testing.T) {
	got := Parse(adminInstruction, nil)

	assert.True(t, got.Actions.AutoProcess)
	assert.Contains(t, got.Actions.MoveToFolder, "Admin")
	assert.Equal(t, DefaultRuleName, got.Name)
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)

	require.NotNil(t, got.Actions.Priority)
	assert.Equal(t, model.PriorityLow, *got.Actions.Priority)

	assert.Contains(t, got.Criteria.SenderContains, "admin")
	assert.Contains(t, got.Criteria.SubjectContains, "notification")
}

func TestParse_WithExampleThread(t *testing.T) {
	example := &model.Thread{
		ID:       "t1",
		Subject:  "Resource Admin: Access Request",
		Sender:   "noreply@internal-tools.example.com",
		Category: model.CategoryFYIOnly,
	}

	got := Parse(adminInstruction, example)

	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, []string{"internal-tools.example.com"}, got.Criteria.SenderDomains)
	assert.Subset(t, got.Criteria.SubjectContains, []string{"resource", "admin", "access"})
	assert.Equal(t, []model.Category{model.CategoryFYIOnly}, got.Criteria.Categories)
	assert.Equal(t, "Resource Admin: Access Request", got.Name)
	assert.Contains(t, got.Actions.MoveToFolder, "Admin")
}

func TestParse_Deterministic(t *testing.T) {
	example := &model.Thread{
		Subject: "Nightly build failed",
		Sender:  "ci@build.example.com",
	}

	first := Parse("Mark them as done.", example)
	second := Parse("Mark them as done.", example)
	assert.Equal(t, first, second)
}

func TestParse_UnrecognizedTextNeverFails(t *testing.T) {
	got := Parse("~~~!!! совершенно непонятный ввод 12345", nil)

	assert.Equal(t, DefaultRuleName, got.Name)
	assert.True(t, got.Criteria.IsEmpty())
	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
}

func TestParse_PublicProviderDomainSkipped(t *testing.T) {
	example := &model.Thread{
		Subject: "Lunch on Friday?",
		Sender:  "friend@gmail.com",
	}

	got := Parse("Mark as done.", example)
	assert.Empty(t, got.Criteria.SenderDomains)
}

func TestParse_SpamCategoryNotCopied(t *testing.T) {
	example := &model.Thread{
		Subject:  "You won a prize",
		Sender:   "win@sketchy.biz",
		Category: model.CategorySpam,
	}

	got := Parse("Mark as processed.", example)
	assert.Empty(t, got.Criteria.Categories)
}

func TestParse_ResponseStyle(t *testing.T) {
	got := Parse("Reply to these, keep it short and succinct.", nil)
	assert.Equal(t, model.ResponseStyleBrief, got.Actions.ResponseStyle)
}

func TestExtractFolder(t *testing.T) {
	tests := []struct {
		name        string
		instruction string
		example     *model.Thread
		want        string
	}{
		{
			name:        "explicit move-to phrase",
			instruction: "Move them to the Receipts folder.",
			want:        "Receipts",
		},
		{
			name:        "quoted folder name",
			instruction: `Move these into "Vendor Invoices 2024" please`,
			want:        "Vendor Invoices 2024",
		},
		{
			name:        "move without target falls back to example subject keyword",
			instruction: "Please move these somewhere sensible",
			example:     &model.Thread{Subject: "Admin access expiring"},
			want:        "Admin Notifications",
		},
		{
			name:        "newsletter keyword fallback",
			instruction: "move elsewhere",
			example:     &model.Thread{Subject: "Weekly newsletter #87"},
			want:        "Newsletters",
		},
		{
			name:        "generic fallback",
			instruction: "move these away",
			want:        DefaultFolder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractFolder(tt.instruction, tt.example))
		})
	}
}

func TestSubjectKeywords(t *testing.T) {
	got := subjectKeywords("Re: The URGENT server migration for this week", 3)
	assert.Equal(t, []string{"urgent", "server", "migration"}, got)
}

func TestCleanSubject(t *testing.T) {
	assert.Equal(t, "Quarterly numbers", cleanSubject("Re: Fwd:  Quarterly   numbers"))
}

func TestCleanSubject_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", maxRuleNameLen+10)

	got := cleanSubject(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxRuleNameLen, utf8.RuneCountInString(got))
}
