// Package storagetest opens migrated in-memory databases for store and handler tests.
package storagetest

import (
	"context"
	"testing"

	"crm/internal/adapters/storage"
)

// Open returns a fully migrated in-memory SQLite database closed at test cleanup.
func Open(t testing.TB) *storage.TimedDB {
	t.Helper()
	db, err := storage.Open(context.Background(), storage.Options{Driver: "sqlite", DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.MigrateDB(context.Background(), db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
