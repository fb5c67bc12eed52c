package store

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS publication (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		attorney_name TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		published_at DATE NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		jurisdiction TEXT NOT NULL,
		court TEXT NOT NULL DEFAULT '',
		case_number TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		is_read BOOLEAN NOT NULL DEFAULT 0,
		is_important BOOLEAN NOT NULL DEFAULT 0,
		is_sealed BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS publication_owner_published ON publication(owner_id, published_at)`,

	`CREATE TABLE IF NOT EXISTS run_log (
		run_id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		sources TEXT NOT NULL DEFAULT '[]',
		reports TEXT NOT NULL DEFAULT '[]',
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL)`,
}

// checkSchema creates the tables for sqlite. Other drivers are expected to
// be migrated out of band.
func (s *SQLStore) checkSchema(ctx context.Context) error {
	if s.driverName != "sqlite3" {
		return nil
	}

	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
