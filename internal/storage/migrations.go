package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					is_active BOOLEAN NOT NULL DEFAULT 1,
					matching_criteria TEXT NOT NULL DEFAULT '{}',
					actions TEXT NOT NULL DEFAULT '{}',
					confidence_score REAL NOT NULL DEFAULT 0,
					times_applied INTEGER NOT NULL DEFAULT 0,
					times_correct INTEGER NOT NULL DEFAULT 0,
					times_incorrect INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_applied_at DATETIME
				)`,
				`CREATE INDEX idx_rules_user_active ON rules(user_id, is_active)`,

				`CREATE TABLE IF NOT EXISTS rule_applications (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					rule_id INTEGER NOT NULL,
					thread_id TEXT NOT NULL,
					actions_taken TEXT NOT NULL,
					user_feedback TEXT,
					applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					feedback_at DATETIME,
					FOREIGN KEY (rule_id) REFERENCES rules(id)
				)`,
				`CREATE INDEX idx_rule_applications_rule ON rule_applications(rule_id)`,
				`CREATE INDEX idx_rule_applications_thread ON rule_applications(user_id, thread_id)`,

				`CREATE TABLE IF NOT EXISTS threads (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					subject TEXT NOT NULL DEFAULT '',
					sender TEXT NOT NULL DEFAULT '',
					body TEXT NOT NULL DEFAULT '',
					participants TEXT NOT NULL DEFAULT '[]',
					category TEXT NOT NULL DEFAULT 'UNKNOWN',
					priority TEXT NOT NULL DEFAULT 'normal',
					has_unread BOOLEAN NOT NULL DEFAULT 0,
					last_message_date DATETIME,
					is_processed BOOLEAN NOT NULL DEFAULT 0,
					is_hidden BOOLEAN NOT NULL DEFAULT 0,
					processed_at DATETIME,
					processing_reason TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_threads_user_processed ON threads(user_id, is_processed)`,

				`CREATE TABLE IF NOT EXISTS drafts (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					thread_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'draft',
					mailbox_ref TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_drafts_thread ON drafts(user_id, thread_id)`,

				`CREATE TABLE IF NOT EXISTS tasks (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					thread_id TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'pending',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_tasks_thread ON tasks(user_id, thread_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Track thread folder for mailbox filing",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE threads ADD COLUMN folder TEXT NOT NULL DEFAULT ''`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Add feedback notes to rule applications",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE rule_applications ADD COLUMN feedback_notes TEXT NOT NULL DEFAULT ''`)
			return err
		},
	},
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Ensure the schema version table exists
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= current {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			migration.Version, migration.Description,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	final, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if final != ExpectedSchemaVersion {
		return fmt.Errorf("database at schema version %d, expected %d", final, ExpectedSchemaVersion)
	}

	return nil
}

// schemaVersion returns the highest applied migration version.
func (s *SQLiteStorage) schemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_versions").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
