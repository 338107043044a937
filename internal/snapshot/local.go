package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var safeContentID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// LocalStore archives HTML snapshots on the local filesystem.
type LocalStore struct {
	dir string
}

// NewLocal creates a filesystem-backed snapshot store rooted at dir.
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) filePath(contentID string) (string, error) {
	if !safeContentID.MatchString(contentID) {
		return "", fmt.Errorf("invalid content id %q", contentID)
	}
	return filepath.Join(s.dir, contentID+".html"), nil
}

// Put writes the HTML snapshot to disk and returns a file:// URI.
func (s *LocalStore) Put(_ context.Context, contentID string, html []byte) (string, error) {
	path, err := s.filePath(contentID)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return "file://" + path, nil
}

// Get reads a previously archived snapshot, reporting whether it exists.
func (s *LocalStore) Get(_ context.Context, contentID string) ([]byte, bool, error) {
	path, err := s.filePath(contentID)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return data, true, nil
}
