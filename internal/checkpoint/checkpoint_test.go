package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "position.json")
	store := NewStore(path)

	pos := Position{
		Path:   "/var/log/teams/logs.txt",
		Offset: 4096,
		Device: 2049,
		Inode:  123456,
	}

	if err := store.Save(pos); err != nil {
		t.Fatalf("Failed to save position: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to load position: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected a position, got nil")
	}
	if *loaded != pos {
		t.Errorf("Expected %+v, got %+v", pos, *loaded)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))

	pos, err := store.Load()
	if err != nil {
		t.Fatalf("Expected no error for a missing checkpoint, got %v", err)
	}
	if pos != nil {
		t.Errorf("Expected nil position, got %+v", pos)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	store := NewStore(path)
	if _, err := store.Load(); err == nil {
		t.Error("Expected an error for corrupt checkpoint data")
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "position.json")
	store := NewStore(path)

	if err := store.Save(Position{Offset: 10}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	if err := store.Save(Position{Offset: 20}); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if loaded.Offset != 20 {
		t.Errorf("Expected offset 20, got %d", loaded.Offset)
	}
}
