package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/katalog/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the learned mapping database to the latest schema.

Every command migrates the database on open; this command is for checking
the schema version or preparing a database ahead of time.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	dbPath := settings.Database.Path

	slog.Info("Starting database migration",
		"database", dbPath,
		"status_only", status)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		slog.Info("📊 Database Migration Status",
			"database", dbPath,
			"current_version", current,
			"latest_version", storage.ExpectedSchemaVersion,
			"up_to_date", current >= storage.ExpectedSchemaVersion)
		return nil
	}

	if current >= storage.ExpectedSchemaVersion {
		slog.Info("✅ Database is already up to date", "version", current)
		return nil
	}

	slog.Info("🗄️  Running database migrations...", "from", current, "to", storage.ExpectedSchemaVersion)
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("✅ Database migrations completed successfully!")
	return nil
}
