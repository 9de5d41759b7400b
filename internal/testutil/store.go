package testutil

import (
	"path/filepath"
	"testing"

	"github.com/roach88/possync/internal/store"
)

// OpenStore opens a fresh SQLite store in t's temp directory and closes it
// on cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "possync.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
