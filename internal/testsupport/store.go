package testsupport

import (
	"testing"

	"showrunner/internal/config"
	"showrunner/internal/store"
)

// MustOpenDB opens a store.DB for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *store.DB {
	t.Helper()

	db, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
