// Package testutil holds helpers shared by package tests: a migrated
// SQLite database and seeded users.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/iliyamo/seat-reservation-admin/internal/config"
	"github.com/iliyamo/seat-reservation-admin/internal/database"
)

// NewDB opens a fresh SQLite file under t.TempDir and applies migrations.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "seats.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := database.Migrate(context.Background(), db, config.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
