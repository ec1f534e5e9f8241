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

const ruleColumns = `id, user_id, name, description, is_active,
	matching_criteria, actions, confidence_score,
	times_applied, times_correct, times_incorrect,
	created_at, updated_at, last_applied_at`

// CreateRule creates a new rule. Regex criteria that fail to compile are
// dropped rather than rejected, so a bad pattern degrades the rule
// instead of blocking its creation.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if dropped := rule.Criteria.DropInvalidPatterns(); len(dropped) > 0 {
		common.LogInfo("Dropped invalid regex criteria from rule", common.Fields{
			"rule_name": rule.Name,
			"fields":    dropped,
		})
	}

	criteriaJSON, err := json.Marshal(rule.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal matching criteria: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (
			user_id, name, description, is_active,
			matching_criteria, actions, confidence_score,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.UserID, rule.Name, rule.Description, rule.IsActive,
		string(criteriaJSON), string(actionsJSON), rule.ConfidenceScore,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now

	return nil
}

// GetRule retrieves a rule by ID, scoped to the owning user.
func (s *SQLiteStorage) GetRule(ctx context.Context, userID string, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE id = ? AND user_id = ?`,
		id, userID)

	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// GetUserRules retrieves all of a user's rules, active or not, newest first.
func (s *SQLiteStorage) GetUserRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, userID, `
		SELECT `+ruleColumns+` FROM rules
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`)
}

// GetActiveRules retrieves a user's active rules ranked for matching:
// highest confidence first, most recently created breaking ties.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, userID, `
		SELECT `+ruleColumns+` FROM rules
		WHERE user_id = ? AND is_active = 1
		ORDER BY confidence_score DESC, created_at DESC, id DESC
	`)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, userID, query string) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// UpdateRule updates a rule's name, description, criteria, actions and
// active flag. Counters and confidence have dedicated operations.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if dropped := rule.Criteria.DropInvalidPatterns(); len(dropped) > 0 {
		common.LogInfo("Dropped invalid regex criteria from rule", common.Fields{
			"rule_id": rule.ID,
			"fields":  dropped,
		})
	}

	criteriaJSON, err := json.Marshal(rule.Criteria)
	if err != nil {
		return fmt.Errorf("failed to marshal matching criteria: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET name = ?, description = ?, is_active = ?,
			matching_criteria = ?, actions = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`,
		rule.Name, rule.Description, rule.IsActive,
		string(criteriaJSON), string(actionsJSON), time.Now().UTC(),
		rule.ID, rule.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.ID, common.ErrNotFound)
	}

	return nil
}

// SetRuleActive toggles a rule's active flag. Setting the flag to its
// current value is a no-op success.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, userID string, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules SET is_active = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, active, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to toggle rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check toggle result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// SetRuleConfidence sets a rule's confidence score. Confidence is never
// derived automatically from feedback counters; this is the explicit
// adjustment operation.
func (s *SQLiteStorage) SetRuleConfidence(ctx context.Context, userID string, id int64, confidence float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if confidence < 0 || confidence > 1 {
		return common.ErrInvalidConfidence
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules SET confidence_score = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, confidence, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to set rule confidence: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check confidence result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

// DeleteRule hard-deletes a rule and its application log. Deleting a
// rule that does not exist is a no-op success.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, userID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM rule_applications WHERE rule_id = ? AND user_id = ?",
		id, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete rule applications: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM rules WHERE id = ? AND user_id = ?",
		id, userID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rule delete: %w", err)
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var criteriaJSON, actionsJSON string
	var lastApplied sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Name, &rule.Description, &rule.IsActive,
		&criteriaJSON, &actionsJSON, &rule.ConfidenceScore,
		&rule.TimesApplied, &rule.TimesCorrect, &rule.TimesIncorrect,
		&rule.CreatedAt, &rule.UpdatedAt, &lastApplied,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(criteriaJSON), &rule.Criteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal matching criteria: %w", err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	if lastApplied.Valid {
		rule.LastAppliedAt = &lastApplied.Time
	}

	return &rule, nil
}
