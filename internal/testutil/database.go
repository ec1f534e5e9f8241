// Package testutil provides test utilities for the sift project.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mailsift/sift/internal/model"
	"github.com/mailsift/sift/internal/service"
	"github.com/mailsift/sift/internal/storage"
)

// TestDB represents a test database with associated helpers.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database. It automatically
// handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedThread stores a thread snapshot, filling in an ID when absent.
func (db *TestDB) SeedThread(thread model.Thread) model.Thread {
	db.t.Helper()

	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	if thread.UserID == "" {
		thread.UserID = "test-user"
	}
	if thread.LastMessageDate.IsZero() {
		thread.LastMessageDate = time.Now().UTC().Add(-time.Hour)
	}

	if err := db.Storage.SaveThreads(context.Background(), []model.Thread{thread}); err != nil {
		db.t.Fatalf("failed to seed thread: %v", err)
	}
	return thread
}

// SeedRule stores a rule, defaulting the owning user and name.
func (db *TestDB) SeedRule(rule model.Rule) model.Rule {
	db.t.Helper()

	if rule.UserID == "" {
		rule.UserID = "test-user"
	}
	if rule.Name == "" {
		rule.Name = "test rule"
	}

	if err := db.Storage.CreateRule(context.Background(), &rule); err != nil {
		db.t.Fatalf("failed to seed rule: %v", err)
	}
	return rule
}

// SeedDraft stores a draft for a thread.
func (db *TestDB) SeedDraft(draft model.Draft) model.Draft {
	db.t.Helper()

	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.UserID == "" {
		draft.UserID = "test-user"
	}

	if err := db.Storage.SaveDrafts(context.Background(), []model.Draft{draft}); err != nil {
		db.t.Fatalf("failed to seed draft: %v", err)
	}
	return draft
}

// SeedTask stores a task for a thread.
func (db *TestDB) SeedTask(task model.Task) model.Task {
	db.t.Helper()

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.UserID == "" {
		task.UserID = "test-user"
	}

	if err := db.Storage.SaveTasks(context.Background(), []model.Task{task}); err != nil {
		db.t.Fatalf("failed to seed task: %v", err)
	}
	return task
}
