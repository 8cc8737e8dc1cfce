// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/paperasse/internal/docstore"
	"github.com/starford/paperasse/internal/jobs"
	"github.com/starford/paperasse/internal/storage"
)

// TestDB opens a temporary SQLite document store that is closed on cleanup.
func TestDB(t *testing.T) *docstore.DB {
	t.Helper()
	db, err := docstore.Open(filepath.Join(t.TempDir(), "paperasse-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestObjects creates an object store rooted in a temporary directory.
func TestObjects(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir(), "/files")
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// TestQueue creates a job queue sharing the connection of db.
func TestQueue(t *testing.T, db *docstore.DB) *jobs.Queue {
	t.Helper()
	q := jobs.New(db.Conn(), jobs.Options{MaxAttempts: 3})
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	return q
}
