package ptrsync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SnapshotStore persists pre-apply zone backups so a botched apply can
// be reverted manually through the server's restore endpoint.
type SnapshotStore interface {
	// Save stores a backup archive for a node and returns where it went.
	Save(nodeName string, data []byte) (string, error)
}

// FileSnapshotStore writes backup archives under a base directory, one
// file per run, named after the node and timestamp.
type FileSnapshotStore struct {
	dir string
	now func() time.Time
}

// NewFileSnapshotStore creates a store rooted at dir
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir, now: time.Now}
}

// Save writes data to <dir>/<node>-<timestamp>.zip
func (s *FileSnapshotStore) Save(nodeName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.zip", sanitizeFileName(nodeName), s.now().UTC().Format("20060102-150405"))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// sanitizeFileName keeps node names filesystem-safe
func sanitizeFileName(name string) string {
	if name == "" {
		return "node"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
