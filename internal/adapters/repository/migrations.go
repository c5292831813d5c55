package repository

import (
	"context"
	"fmt"

	"github.com/okian/fitscore/pkg/logger"
)

type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{ //nolint:gochecknoglobals // ordered schema history
	{version: 1, name: "initial_schema", stmts: []string{
		`CREATE TABLE IF NOT EXISTS items (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			category TEXT NOT NULL,
			image_ref TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			outfit TEXT NOT NULL,
			scores TEXT NOT NULL,
			best_score REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_owner ON recommendations(owner_id, position)`,
	}},
}

func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d %s: %w", m.version, m.name, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if s.log != nil {
			s.log.Info(ctx, "applied migration", logger.Int("version", m.version), logger.String("name", m.name))
		}
	}
	return nil
}
