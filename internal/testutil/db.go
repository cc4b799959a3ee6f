// Package testutil provides shared helpers for database-backed tests.
package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/pkg/database"
)

// OpenTestDB opens a throwaway on-disk SQLite database under t.TempDir()
// and applies all migrations. The connection is closed when the test ends.
func OpenTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	if err := migrator.RunMigrations(migrationsDir(t)); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// migrationsDir locates the repo's migrations directory relative to this
// source file, so tests work regardless of the package they run from.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to locate caller for migrations dir")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}
