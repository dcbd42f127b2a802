package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
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
		Description: "Learned mappings",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS learned_mappings (
					id TEXT PRIMARY KEY,
					normalized_text TEXT NOT NULL,
					context_hash TEXT NOT NULL,
					code TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					unit TEXT NOT NULL DEFAULT '',
					confidence REAL NOT NULL DEFAULT 0,
					validated_by_user INTEGER NOT NULL DEFAULT 0,
					usage_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					last_used_at DATETIME NOT NULL,
					UNIQUE(normalized_text, context_hash)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_learned_mappings_code ON learned_mappings(code)`,
				`CREATE INDEX IF NOT EXISTS idx_learned_mappings_last_used ON learned_mappings(last_used_at)`,
				`CREATE INDEX IF NOT EXISTS idx_learned_mappings_validated_text
					ON learned_mappings(normalized_text) WHERE validated_by_user = 1`,
			)
		},
	},
	{
		Version:     2,
		Description: "Related items",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS related_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					parent_mapping_id TEXT NOT NULL,
					code TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					unit TEXT NOT NULL DEFAULT '',
					reason_text TEXT NOT NULL DEFAULT '',
					relationship_type TEXT NOT NULL DEFAULT 'companion',
					co_occurrence_count INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					UNIQUE(parent_mapping_id, code),
					FOREIGN KEY (parent_mapping_id) REFERENCES learned_mappings(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_related_items_parent ON related_items(parent_mapping_id)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Mapping feedback audit",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS mapping_feedback (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					mapping_id TEXT NOT NULL,
					code TEXT NOT NULL,
					action TEXT NOT NULL CHECK (action IN ('APPROVE', 'REJECT')),
					comment TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					FOREIGN KEY (mapping_id) REFERENCES learned_mappings(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX IF NOT EXISTS idx_mapping_feedback_mapping ON mapping_feedback(mapping_id)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
