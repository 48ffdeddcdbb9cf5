// Package testing provides testing utilities and helpers shared across packages.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/watchfolio/internal/database"
)

// NewTestDB creates a temporary file-backed SQLite database with the schema
// registered for name applied ("holdings", "cache"). Unknown names yield an
// empty database. The returned cleanup closes and removes it; it is also
// registered with t.Cleanup and safe to call twice.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "watchfolio_test_*")
	if err != nil {
		t.Fatalf("Failed to create temporary directory: %v", err)
	}

	profile := database.ProfileStandard
	if name == "cache" {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    filepath.Join(dir, name+".db"),
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.RemoveAll(dir)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		if err := os.RemoveAll(dir); err != nil {
			t.Logf("Warning: Failed to remove temporary directory %s: %v", dir, err)
		}
	}
	t.Cleanup(cleanup)

	return db, cleanup
}
