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

const applicationColumns = `id, user_id, rule_id, thread_id, actions_taken,
	user_feedback, feedback_notes, applied_at, feedback_at`

// RecordApplication appends one rule application to the log and bumps the
// rule's times_applied counter in the same transaction. The increment is
// done SQL-side so concurrent applications of the same rule cannot lose
// updates, and a failed log write never leaves an orphaned increment.
func (s *SQLiteStorage) RecordApplication(ctx context.Context, app *model.RuleApplication) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateApplication(app); err != nil {
		return err
	}

	actionsJSON, err := json.Marshal(app.ActionsTaken)
	if err != nil {
		return fmt.Errorf("failed to marshal actions snapshot: %w", err)
	}

	if app.AppliedAt.IsZero() {
		app.AppliedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin application transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rule_applications (id, user_id, rule_id, thread_id, actions_taken, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, app.ID, app.UserID, app.RuleID, app.ThreadID, string(actionsJSON), app.AppliedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record rule application: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE rules
		SET times_applied = times_applied + 1, last_applied_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, app.AppliedAt, app.AppliedAt, app.RuleID, app.UserID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to increment rule use count: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to check rule update: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("rule %d: %w", app.RuleID, common.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule application: %w", err)
	}

	return nil
}

// GetApplication retrieves one rule application, scoped to the owning user.
func (s *SQLiteStorage) GetApplication(ctx context.Context, userID, id string) (*model.RuleApplication, error) {
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
		`SELECT `+applicationColumns+` FROM rule_applications WHERE id = ? AND user_id = ?`,
		id, userID)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule application %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule application: %w", err)
	}

	return app, nil
}

// GetRuleApplications retrieves a rule's application log, newest first.
func (s *SQLiteStorage) GetRuleApplications(ctx context.Context, userID string, ruleID int64) ([]model.RuleApplication, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+applicationColumns+` FROM rule_applications
		WHERE user_id = ? AND rule_id = ?
		ORDER BY applied_at DESC, id DESC
	`, userID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule applications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var apps []model.RuleApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule application: %w", err)
		}
		apps = append(apps, *app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule applications: %w", err)
	}

	return apps, nil
}

// CountRuleApplications counts the log entries for a rule. The count is
// the source of truth for times_applied; callers can reconcile the
// counter from it after a partial failure.
func (s *SQLiteStorage) CountRuleApplications(ctx context.Context, userID string, ruleID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rule_applications WHERE user_id = ? AND rule_id = ?",
		userID, ruleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rule applications: %w", err)
	}

	return count, nil
}

// SetApplicationFeedback records a user verdict on one application and
// keeps the rule's correctness counters in step. Feedback may be given
// once per application; a second verdict overwrites the first, and the
// counters are adjusted so times_correct + times_incorrect never exceeds
// times_applied.
func (s *SQLiteStorage) SetApplicationFeedback(ctx context.Context, userID, id string, feedback model.Feedback, notes string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if !feedback.Valid() {
		return fmt.Errorf("%w: %q", common.ErrInvalidFeedback, feedback)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin feedback transaction: %w", err)
	}

	var ruleID int64
	var previous sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT rule_id, user_feedback FROM rule_applications WHERE id = ? AND user_id = ?",
		id, userID).Scan(&ruleID, &previous)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("rule application %s: %w", id, common.ErrNotFound)
		}
		return fmt.Errorf("failed to load rule application: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE rule_applications
		SET user_feedback = ?, feedback_notes = ?, feedback_at = ?
		WHERE id = ? AND user_id = ?
	`, string(feedback), notes, now, id, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to set feedback: %w", err)
	}

	correctDelta, incorrectDelta := feedbackDeltas(previous, feedback)
	if correctDelta != 0 || incorrectDelta != 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE rules
			SET times_correct = times_correct + ?,
				times_incorrect = times_incorrect + ?,
				updated_at = ?
			WHERE id = ? AND user_id = ?
		`, correctDelta, incorrectDelta, now, ruleID, userID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update rule counters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}

	return nil
}

// feedbackDeltas computes counter adjustments when feedback transitions
// from the previous verdict to the new one. partially_correct counts
// toward neither counter.
func feedbackDeltas(previous sql.NullString, next model.Feedback) (correct, incorrect int) {
	if previous.Valid {
		switch model.Feedback(previous.String) {
		case model.FeedbackCorrect:
			correct--
		case model.FeedbackIncorrect:
			incorrect--
		}
	}
	switch next {
	case model.FeedbackCorrect:
		correct++
	case model.FeedbackIncorrect:
		incorrect++
	}
	return correct, incorrect
}

func scanApplication(row rowScanner) (*model.RuleApplication, error) {
	var app model.RuleApplication
	var actionsJSON string
	var feedback sql.NullString
	var feedbackAt sql.NullTime

	err := row.Scan(
		&app.ID, &app.UserID, &app.RuleID, &app.ThreadID, &actionsJSON,
		&feedback, &app.FeedbackNotes, &app.AppliedAt, &feedbackAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(actionsJSON), &app.ActionsTaken); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions snapshot: %w", err)
	}
	if feedback.Valid {
		fb := model.Feedback(feedback.String)
		app.UserFeedback = &fb
	}
	if feedbackAt.Valid {
		app.FeedbackAt = &feedbackAt.Time
	}

	return &app, nil
}
