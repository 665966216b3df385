// Package storage keeps posts and site settings in SQL. Postgres is the
// production backend; the pure Go SQLite driver serves local runs and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrDuplicatePost = errors.New("post with this external url already exists")
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS posts (
  id           TEXT PRIMARY KEY,
  title        TEXT NOT NULL,
  content      TEXT NOT NULL DEFAULT '',
  created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  media_url    TEXT,
  video_url    TEXT,
  external_url TEXT,
  new_tab      BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
DROP INDEX IF EXISTS idx_posts_external_url;
CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_external_url_unique ON posts(external_url);
CREATE TABLE IF NOT EXISTS site_settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL DEFAULT ''
);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS posts (
  id           TEXT PRIMARY KEY,
  title        TEXT NOT NULL,
  content      TEXT NOT NULL DEFAULT '',
  created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  media_url    TEXT,
  video_url    TEXT,
  external_url TEXT,
  new_tab      BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
DROP INDEX IF EXISTS idx_posts_external_url;
CREATE UNIQUE INDEX IF NOT EXISTS idx_posts_external_url_unique ON posts(external_url);
CREATE TABLE IF NOT EXISTS site_settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL DEFAULT ''
);
`

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var schema string
	switch db.DriverName() {
	case "postgres", "pgx":
		schema = postgresSchema
	case "sqlite", "sqlite3":
		schema = sqliteSchema
	default:
		return fmt.Errorf("unsupported database driver %q", db.DriverName())
	}

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint of
// either backend.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			code == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}

	return false
}
