package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mailsift/sift/internal/model"
)

// SaveDrafts upserts response drafts for threads.
func (s *SQLiteStorage) SaveDrafts(ctx context.Context, drafts []model.Draft) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin draft transaction: %w", err)
	}

	now := time.Now().UTC()
	for i := range drafts {
		draft := &drafts[i]
		if draft.Status == "" {
			draft.Status = model.DraftStatusDraft
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO drafts (id, user_id, thread_id, status, mailbox_ref, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				status = excluded.status,
				mailbox_ref = excluded.mailbox_ref,
				updated_at = excluded.updated_at
		`, draft.ID, draft.UserID, draft.ThreadID, draft.Status, draft.MailboxRef, now, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit drafts: %w", err)
	}

	return nil
}

// GetThreadDrafts retrieves the drafts attached to a thread.
func (s *SQLiteStorage) GetThreadDrafts(ctx context.Context, userID, threadID string) ([]model.Draft, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(threadID, "threadID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, thread_id, status, mailbox_ref, created_at, updated_at
		FROM drafts
		WHERE user_id = ? AND thread_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var drafts []model.Draft
	for rows.Next() {
		var draft model.Draft
		var mailboxRef sql.NullString
		if err := rows.Scan(
			&draft.ID, &draft.UserID, &draft.ThreadID, &draft.Status,
			&mailboxRef, &draft.CreatedAt, &draft.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		if mailboxRef.Valid {
			draft.MailboxRef = &mailboxRef.String
		}
		drafts = append(drafts, draft)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return drafts, nil
}

// SaveTasks upserts extracted tasks for threads.
func (s *SQLiteStorage) SaveTasks(ctx context.Context, tasks []model.Task) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin task transaction: %w", err)
	}

	now := time.Now().UTC()
	for i := range tasks {
		task := &tasks[i]
		if task.Status == "" {
			task.Status = model.TaskStatusPending
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, user_id, thread_id, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				description = excluded.description,
				status = excluded.status,
				updated_at = excluded.updated_at
		`, task.ID, task.UserID, task.ThreadID, task.Description, task.Status, now, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save task %s: %w", task.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tasks: %w", err)
	}

	return nil
}

// GetThreadTasks retrieves the tasks extracted from a thread.
func (s *SQLiteStorage) GetThreadTasks(ctx context.Context, userID, threadID string) ([]model.Task, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(threadID, "threadID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, thread_id, description, status, created_at, updated_at
		FROM tasks
		WHERE user_id = ? AND thread_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(
			&task.ID, &task.UserID, &task.ThreadID, &task.Description,
			&task.Status, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}
