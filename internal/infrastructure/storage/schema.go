package storage

import (
	"context"
	"fmt"
)

// migrations are applied in order; their index+1 is the schema version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL,
		author TEXT NOT NULL,
		author_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		published_at BIGINT,
		categories TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		images TEXT NOT NULL DEFAULT 'null',
		infobox TEXT,
		is_ai_generated BOOLEAN NOT NULL DEFAULT FALSE,
		categories_locked_by_ai BOOLEAN NOT NULL DEFAULT FALSE,
		current_version_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_status ON articles (status)`,
	`CREATE TABLE IF NOT EXISTS article_versions (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL REFERENCES articles (id),
		version INTEGER NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author TEXT NOT NULL,
		author_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		changes TEXT NOT NULL,
		UNIQUE (article_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS pending_revisions (
		id TEXT PRIMARY KEY,
		article_id TEXT NOT NULL REFERENCES articles (id),
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		author TEXT NOT NULL,
		author_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		changes TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		status TEXT NOT NULL,
		reviewed_by TEXT NOT NULL DEFAULT '',
		reviewed_at BIGINT,
		review_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_revisions_status ON pending_revisions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_revisions_article ON pending_revisions (article_id)`,
}

// Migrate brings the schema up to date and returns the resulting version.
func (s *SQLStore) Migrate(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.schemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return current, fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return current, fmt.Errorf("apply migration %d: %w", version, err)
		}

		query, args, err := s.sb.Insert("schema_migrations").Columns("version").Values(version).ToSql()
		if err != nil {
			_ = tx.Rollback()
			return current, fmt.Errorf("build migration record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return current, fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return current, fmt.Errorf("commit migration %d: %w", version, err)
		}
		current = version
	}

	return current, nil
}

func (s *SQLStore) schemaVersion(ctx context.Context) (int, error) {
	query, args, err := s.sb.Select("COALESCE(MAX(version), 0)").From("schema_migrations").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build schema version: %w", err)
	}
	var v int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v), nil
}
