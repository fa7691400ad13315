package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"nightfeed/internal/detect"
)

// Store is the artifact hand-off contract between the pipeline and the
// external script writer. Any backend satisfying it substitutes for the
// filesystem implementation.
type Store interface {
	WriteBundle(ctx context.Context, bundle detect.Bundle) (string, error)
	ReadBundle(ctx context.Context, date string) (*detect.Bundle, error)
}

// FSStore writes signal bundles as JSON files under <root>/signals, keyed by
// run date.
type FSStore struct {
	root string
}

// NewFSStore builds a filesystem artifact store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// BundlePath returns the artifact location for a run date.
func (s *FSStore) BundlePath(date string) string {
	return filepath.Join(s.root, "signals", date+".json")
}

// WriteBundle serializes the bundle atomically: the artifact appears complete
// or not at all, never half-written.
func (s *FSStore) WriteBundle(_ context.Context, bundle detect.Bundle) (string, error) {
	path := s.BundlePath(bundle.Date)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create signals directory: %w", err)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal bundle for %s: %w", bundle.Date, err)
	}

	tmp, err := os.CreateTemp(dir, "."+bundle.Date+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("publish artifact for %s: %w", bundle.Date, err)
	}
	return path, nil
}

// ReadBundle loads a previously written artifact. Returns nil when no
// artifact exists for the date.
func (s *FSStore) ReadBundle(_ context.Context, date string) (*detect.Bundle, error) {
	data, err := os.ReadFile(s.BundlePath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact for %s: %w", date, err)
	}
	var bundle detect.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("decode artifact for %s: %w", date, err)
	}
	return &bundle, nil
}
