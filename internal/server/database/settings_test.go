package database

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsStore_IsInitialized(t *testing.T) {
	t.Run("false when document missing", func(t *testing.T) {
		store := NewSettingsStore(t.TempDir())
		if store.IsInitialized() {
			t.Error("expected uninitialized store")
		}
	})

	t.Run("true after write", func(t *testing.T) {
		store := NewSettingsStore(t.TempDir())
		if err := store.Write(&Settings{PasswordHash: "x", MaxFileSizeMB: 50}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !store.IsInitialized() {
			t.Error("expected initialized store")
		}
	})
}

func TestSettingsStore_Read(t *testing.T) {
	t.Run("missing document", func(t *testing.T) {
		store := NewSettingsStore(t.TempDir())
		_, err := store.Read()
		if !errors.Is(err, ErrDocumentNotFound) {
			t.Errorf("expected ErrDocumentNotFound, got %v", err)
		}
	})

	t.Run("round trips all fields", func(t *testing.T) {
		store := NewSettingsStore(t.TempDir())
		want := &Settings{PasswordHash: "hash", MaxFileSizeMB: 200, Announcement: "closed sunday"}
		if err := store.Write(want); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *got != *want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("backfills missing fields and persists them", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, SettingsFile)
		if err := os.WriteFile(path, []byte(`{"password": "e99a18c428cb38d5f260853678922e03"}`), 0644); err != nil {
			t.Fatalf("failed to seed document: %v", err)
		}

		store := NewSettingsStore(dir)
		got, err := store.Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.MaxFileSizeMB != DefaultMaxFileSizeMB {
			t.Errorf("expected default max size %d, got %d", DefaultMaxFileSizeMB, got.MaxFileSizeMB)
		}
		if got.Announcement != "" {
			t.Errorf("expected empty announcement, got %q", got.Announcement)
		}
		if got.LegacyPassword != "e99a18c428cb38d5f260853678922e03" {
			t.Errorf("legacy password not preserved: %q", got.LegacyPassword)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read document: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			t.Fatalf("invalid document: %v", err)
		}
		if _, ok := doc["max_file_size"]; !ok {
			t.Error("expected max_file_size to be written back")
		}
		if _, ok := doc["announcement"]; !ok {
			t.Error("expected announcement to be written back")
		}
	})

	t.Run("keeps explicit empty announcement", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, SettingsFile)
		os.WriteFile(path, []byte(`{"password_hash": "h", "max_file_size": 10, "announcement": ""}`), 0644)
		before, _ := os.Stat(path)

		got, err := NewSettingsStore(dir).Read()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.MaxFileSizeMB != 10 {
			t.Errorf("expected 10, got %d", got.MaxFileSizeMB)
		}

		after, _ := os.Stat(path)
		if !after.ModTime().Equal(before.ModTime()) {
			t.Error("complete document should not be rewritten")
		}
	})
}

func TestSettings_MaxUploadBytes(t *testing.T) {
	s := &Settings{MaxFileSizeMB: 50}
	if got := s.MaxUploadBytes(); got != 50*1024*1024 {
		t.Errorf("expected %d, got %d", 50*1024*1024, got)
	}
}
