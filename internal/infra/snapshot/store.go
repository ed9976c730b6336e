// Package snapshot persists harvest snapshots as JSON files so summaries
// can be regenerated without touching the gateway again.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"discord-digest-bot/internal/domain"
)

// FileStore writes snapshots into a directory, one file per run, named
// "<guild>_data_<timestamp>.json".
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates a store rooted at dir. Empty dir means the working
// directory.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir, now: time.Now}
}

// Save writes the snapshot and returns its path.
func (s *FileStore) Save(snapshot domain.Snapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create dir: %w", err)
	}

	name := fmt.Sprintf("%s_data_%s.json",
		strings.ReplaceAll(snapshot.GuildName, " ", "_"),
		s.now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("snapshot: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return path, nil
}

// Load reads a snapshot back from disk.
func (s *FileStore) Load(path string) (domain.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	return snapshot, nil
}
