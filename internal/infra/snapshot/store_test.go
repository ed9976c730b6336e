package snapshot

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"discord-digest-bot/internal/domain"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	store.now = func() time.Time { return time.Date(2025, 3, 28, 9, 30, 0, 0, time.UTC) }

	snap := domain.Snapshot{
		GuildName: "Acme HQ",
		Timestamp: time.Date(2025, 3, 28, 9, 30, 0, 0, time.UTC),
		Messages: []domain.Message{
			{ID: "1", Author: "ana", Content: "hello", ChannelName: "general", Timestamp: time.Date(2025, 3, 27, 12, 0, 0, 0, time.UTC)},
		},
		ThreadSummaries: map[string]string{"general > launch": "Launch recap."},
	}

	path, err := store.Save(snap)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if got := filepath.Base(path); got != "Acme_HQ_data_20250328_093000.json" {
		t.Fatalf("unexpected snapshot name: %s", got)
	}

	loaded, err := store.Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !loaded.Timestamp.Equal(snap.Timestamp) {
		t.Fatalf("timestamp mismatch: %v", loaded.Timestamp)
	}
	loaded.Timestamp = snap.Timestamp
	if !reflect.DeepEqual(loaded, snap) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", loaded, snap)
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if _, err := store.Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing snapshot")
	} else if !strings.Contains(err.Error(), "snapshot: read") {
		t.Fatalf("unexpected error: %v", err)
	}
}
