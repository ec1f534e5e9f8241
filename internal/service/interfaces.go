// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/mailsift/sift/internal/model"
)

// Storage defines the contract for our persistence layer. Every
// operation is scoped to the owning user; implementations must never
// return or mutate another user's data.
type Storage interface {
	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, userID string, id int64) (*model.Rule, error)
	GetUserRules(ctx context.Context, userID string) ([]model.Rule, error)
	GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	SetRuleActive(ctx context.Context, userID string, id int64, active bool) error
	SetRuleConfidence(ctx context.Context, userID string, id int64, confidence float64) error
	DeleteRule(ctx context.Context, userID string, id int64) error

	// Rule application operations
	RecordApplication(ctx context.Context, app *model.RuleApplication) error
	GetApplication(ctx context.Context, userID, id string) (*model.RuleApplication, error)
	GetRuleApplications(ctx context.Context, userID string, ruleID int64) ([]model.RuleApplication, error)
	CountRuleApplications(ctx context.Context, userID string, ruleID int64) (int, error)
	SetApplicationFeedback(ctx context.Context, userID, id string, feedback model.Feedback, notes string) error

	// Thread operations
	SaveThreads(ctx context.Context, threads []model.Thread) error
	GetThread(ctx context.Context, userID, id string) (*model.Thread, error)
	GetUnprocessedThreads(ctx context.Context, userID string) ([]model.Thread, error)
	ListThreads(ctx context.Context, userID string, includeHidden bool) ([]model.Thread, error)
	MarkThreadProcessed(ctx context.Context, userID, id, reason string, hidden bool) error
	UnmarkThreadProcessed(ctx context.Context, userID, id string) error
	SetThreadFolder(ctx context.Context, userID, id, folder string) error
	GetProcessingStats(ctx context.Context, userID string) (*model.ProcessingStats, error)

	// Draft and task operations
	SaveDrafts(ctx context.Context, drafts []model.Draft) error
	GetThreadDrafts(ctx context.Context, userID, threadID string) ([]model.Draft, error)
	SaveTasks(ctx context.Context, tasks []model.Task) error
	GetThreadTasks(ctx context.Context, userID, threadID string) ([]model.Task, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Mailbox files threads into folders on the mail service.
type Mailbox interface {
	// MoveThread moves a thread into the named folder, creating the
	// folder if the backing service supports that.
	MoveThread(ctx context.Context, userID, threadID, folder string) error
}

// RetryOptions configures retry behavior for operations against external
// collaborators.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
