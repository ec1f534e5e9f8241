package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mailsift/sift/internal/common"
	"github.com/mailsift/sift/internal/model"
)

const threadColumns = `id, user_id, subject, sender, body, participants,
	category, priority, has_unread, last_message_date,
	is_processed, is_hidden, processed_at, processing_reason,
	folder, created_at, updated_at`

// SaveThreads upserts thread snapshots. Re-importing a thread refreshes
// its mailbox attributes but preserves the engine's processing fields.
func (s *SQLiteStorage) SaveThreads(ctx context.Context, threads []model.Thread) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateThreads(threads); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin thread transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO threads (
			id, user_id, subject, sender, body, participants,
			category, priority, has_unread, last_message_date,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			subject = excluded.subject,
			sender = excluded.sender,
			body = excluded.body,
			participants = excluded.participants,
			category = excluded.category,
			priority = excluded.priority,
			has_unread = excluded.has_unread,
			last_message_date = excluded.last_message_date,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to prepare thread upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range threads {
		thread := &threads[i]
		if thread.Category == "" {
			thread.Category = model.CategoryUnknown
		}
		if thread.Priority == "" {
			thread.Priority = model.PriorityNormal
		}

		participantsJSON, err := json.Marshal(thread.Participants)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to marshal participants: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			thread.ID, thread.UserID, thread.Subject, thread.Sender, thread.Body,
			string(participantsJSON), thread.Category, thread.Priority,
			thread.HasUnread, nullableTime(thread.LastMessageDate), now, now,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save thread %s: %w", thread.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit threads: %w", err)
	}

	return nil
}

// GetThread retrieves a thread by ID, scoped to the owning user.
func (s *SQLiteStorage) GetThread(ctx context.Context, userID, id string) (*model.Thread, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+threadColumns+` FROM threads WHERE id = ? AND user_id = ?`,
		id, userID)

	thread, err := scanThread(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("thread %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return thread, nil
}

// GetUnprocessedThreads retrieves a user's unprocessed threads, oldest
// message first so the auto-process batch drains the backlog in order.
func (s *SQLiteStorage) GetUnprocessedThreads(ctx context.Context, userID string) ([]model.Thread, error) {
	return s.queryThreads(ctx, userID, `
		SELECT `+threadColumns+` FROM threads
		WHERE user_id = ? AND is_processed = 0
		ORDER BY last_message_date ASC, id ASC
	`)
}

// ListThreads retrieves a user's threads, optionally including hidden ones.
func (s *SQLiteStorage) ListThreads(ctx context.Context, userID string, includeHidden bool) ([]model.Thread, error) {
	query := `
		SELECT ` + threadColumns + ` FROM threads
		WHERE user_id = ?
		ORDER BY last_message_date DESC, id DESC
	`
	if !includeHidden {
		query = `
		SELECT ` + threadColumns + ` FROM threads
		WHERE user_id = ? AND is_hidden = 0
		ORDER BY last_message_date DESC, id DESC
	`
	}
	return s.queryThreads(ctx, userID, query)
}

func (s *SQLiteStorage) queryThreads(ctx context.Context, userID, query string) ([]model.Thread, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var threads []model.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, *thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}

	return threads, nil
}

// MarkThreadProcessed sets the processing fields on a thread.
func (s *SQLiteStorage) MarkThreadProcessed(ctx context.Context, userID, id, reason string, hidden bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE threads
		SET is_processed = 1, is_hidden = ?, processed_at = ?,
			processing_reason = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, hidden, now, reason, now, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark thread processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check mark result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("thread %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// UnmarkThreadProcessed clears the processing fields on a thread.
func (s *SQLiteStorage) UnmarkThreadProcessed(ctx context.Context, userID, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE threads
		SET is_processed = 0, is_hidden = 0, processed_at = NULL,
			processing_reason = '', updated_at = ?
		WHERE id = ? AND user_id = ?
	`, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to unmark thread: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check unmark result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("thread %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// SetThreadFolder records the folder a thread was filed into.
func (s *SQLiteStorage) SetThreadFolder(ctx context.Context, userID, id, folder string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE threads SET folder = ?, updated_at = ? WHERE id = ? AND user_id = ?
	`, folder, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to set thread folder: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check folder result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("thread %s: %w", id, common.ErrNotFound)
	}

	return nil
}

// GetProcessingStats aggregates a user's triage state.
func (s *SQLiteStorage) GetProcessingStats(ctx context.Context, userID string) (*model.ProcessingStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	stats := &model.ProcessingStats{
		ProcessingReasons: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_processed = 1 THEN 1 ELSE 0 END), 0)
		FROM threads WHERE user_id = ?
	`, userID).Scan(&stats.Total, &stats.Processed)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate thread stats: %w", err)
	}
	stats.Active = stats.Total - stats.Processed

	rows, err := s.db.QueryContext(ctx, `
		SELECT processing_reason, COUNT(*)
		FROM threads
		WHERE user_id = ? AND is_processed = 1 AND processing_reason != ''
		GROUP BY processing_reason
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate processing reasons: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var reason string
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, fmt.Errorf("failed to scan reason count: %w", err)
		}
		stats.ProcessingReasons[reason] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reason counts: %w", err)
	}

	return stats, nil
}

func scanThread(row rowScanner) (*model.Thread, error) {
	var thread model.Thread
	var participantsJSON string
	var lastMessage, processedAt sql.NullTime

	err := row.Scan(
		&thread.ID, &thread.UserID, &thread.Subject, &thread.Sender, &thread.Body,
		&participantsJSON, &thread.Category, &thread.Priority,
		&thread.HasUnread, &lastMessage,
		&thread.IsProcessed, &thread.IsHidden, &processedAt, &thread.ProcessingReason,
		&thread.Folder, &thread.CreatedAt, &thread.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(participantsJSON), &thread.Participants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal participants: %w", err)
	}
	if lastMessage.Valid {
		thread.LastMessageDate = lastMessage.Time
	}
	if processedAt.Valid {
		thread.ProcessedAt = &processedAt.Time
	}

	return &thread, nil
}

// nullableTime maps the zero time to NULL for storage.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
