package testsupport

import (
	"testing"

	"nightfeed/internal/config"
	"nightfeed/internal/runlog"
	"nightfeed/internal/snapshot"
)

// MustOpenSnapshotStore opens a snapshot store in the config's data dir and
// closes it when the test finishes.
func MustOpenSnapshotStore(t *testing.T, cfg *config.Config) *snapshot.Store {
	t.Helper()
	store, err := snapshot.Open(cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close snapshot store: %v", err)
		}
	})
	return store
}

// MustOpenRunLog opens a run log store in the config's data dir and closes it
// when the test finishes.
func MustOpenRunLog(t *testing.T, cfg *config.Config) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("open runlog store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close runlog store: %v", err)
		}
	})
	return store
}
