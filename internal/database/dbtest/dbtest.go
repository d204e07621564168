// Package dbtest opens throwaway SQLite databases with the full schema for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"pestops-bknd/internal/config"
	"pestops-bknd/internal/database"

	"github.com/uptrace/bun"
)

// New creates a migrated database under t.TempDir() and closes it on cleanup.
func New(t testing.TB) *bun.DB {
	t.Helper()

	cfg := &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.New(cfg)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.CreateSchema(context.Background(), db); err != nil {
		_ = db.Close()
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
