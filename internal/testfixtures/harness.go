package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/persistence/badger"
	"github.com/example/weekend-scheduler/internal/persistence/sqlite"
)

// NewSQLiteHarness opens a migrated SQLite store in a temporary directory.
// The store is closed when the test finishes.
func NewSQLiteHarness(tb testing.TB) persistence.Store {
	tb.Helper()
	return OpenSQLiteAt(tb, filepath.Join(tb.TempDir(), "scheduler.db"))
}

// OpenSQLiteAt opens and migrates the database file at path. Opening the same
// path twice simulates a process restart against persisted state.
func OpenSQLiteAt(tb testing.TB, path string) persistence.Store {
	tb.Helper()

	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := storage.Migrate(context.Background()); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	tb.Cleanup(func() { _ = storage.Close() })
	return storage
}

// NewBadgerHarness opens an in-memory badger store.
func NewBadgerHarness(tb testing.TB) persistence.Store {
	tb.Helper()

	store, err := badger.OpenInMemory(nil)
	if err != nil {
		tb.Fatalf("failed to open badger: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return store
}

// Backend names a store constructor for contract tests.
type Backend struct {
	Name string
	Open func(testing.TB) persistence.Store
}

// Backends lists every persistence.Store implementation.
func Backends() []Backend {
	return []Backend{
		{Name: "sqlite", Open: NewSQLiteHarness},
		{Name: "badger", Open: NewBadgerHarness},
	}
}
