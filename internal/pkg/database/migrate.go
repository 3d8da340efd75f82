package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

// migrationLockID keys the advisory lock held while a migration is applied
const migrationLockID int64 = 7201100001

// Migrate applies every *.sql file in fsys that is not yet recorded in
// schema_migrations, in lexical order, each inside its own transaction.
// Concurrent instances serialize on a transaction-scoped advisory lock.
func Migrate(ctx context.Context, db *DB, fsys fs.FS) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		version := strings.TrimSuffix(file, ".sql")

		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", version, err)
		}

		applied, err := applyMigration(ctx, db, version, string(body))
		if err != nil {
			return err
		}
		if applied {
			slog.Info("Applied migration", "version", version)
		}
	}

	return nil
}

// applyMigration reports false when the version was already recorded
func applyMigration(ctx context.Context, db *DB, version, body string) (bool, error) {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, fmt.Errorf("failed to lock migration %s: %w", version, err)
	}

	var done bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&done); err != nil {
		return false, fmt.Errorf("failed to check migration %s: %w", version, err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.Exec(ctx, body); err != nil {
		return false, fmt.Errorf("migration %s failed: %w", version, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", version, err)
	}
	return true, nil
}
