package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFileSystemStore_Save(t *testing.T) {
	t.Run("saves file under code-prefixed name", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		path, n, err := store.Save("1234", "notes.txt", bytes.NewReader([]byte("test content")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if n != 12 {
			t.Errorf("expected 12 bytes written, got %d", n)
		}
		if path != filepath.Join(dir, "1234_notes.txt") {
			t.Errorf("unexpected path %s", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test content" {
			t.Errorf("expected 'test content', got %q", content)
		}
	})

	t.Run("saves large content", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		largeContent := strings.Repeat("x", 1024*1024)
		_, n, err := store.Save("5555", "large.bin", strings.NewReader(largeContent))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != int64(len(largeContent)) {
			t.Errorf("expected %d bytes, got %d", len(largeContent), n)
		}
	})

	t.Run("fails when directory is missing", func(t *testing.T) {
		store := NewFileSystemStore(filepath.Join(t.TempDir(), "missing"))
		if _, _, err := store.Save("1111", "a.txt", strings.NewReader("a")); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestFileSystemStore_Stat(t *testing.T) {
	t.Run("returns info for existing file", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		filePath := filepath.Join(dir, "1234_a.txt")
		os.WriteFile(filePath, []byte("data"), 0644)

		info, err := store.Stat(filePath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Size() != 4 {
			t.Errorf("expected size 4, got %d", info.Size())
		}
	})

	t.Run("returns ErrFileNotFound for missing file", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		_, err := store.Stat(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("directories are not files", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		_, err := store.Stat(dir)
		if !errors.Is(err, ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})
}

func TestFileSystemStore_Rename(t *testing.T) {
	t.Run("swaps the code prefix", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		oldPath := filepath.Join(dir, "1234_report_1234.pdf")
		os.WriteFile(oldPath, []byte("pdf"), 0644)

		newPath, err := store.Rename(oldPath, "1234", "98765")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if newPath != filepath.Join(dir, "98765_report_1234.pdf") {
			t.Errorf("unexpected new path %s", newPath)
		}
		if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
			t.Error("old path should be gone")
		}
		if _, err := os.Stat(newPath); err != nil {
			t.Errorf("new path missing: %v", err)
		}
	})

	t.Run("prefixes names that lack the old code", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		oldPath := filepath.Join(dir, "legacy.txt")
		os.WriteFile(oldPath, []byte("x"), 0644)

		newPath, err := store.Rename(oldPath, "1234", "55555")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Base(newPath) != "55555_legacy.txt" {
			t.Errorf("unexpected name %s", filepath.Base(newPath))
		}
	})

	t.Run("missing source is an error", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)

		if _, err := store.Rename(filepath.Join(dir, "1234_x"), "1234", "55555"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	t.Run("deletes existing file", func(t *testing.T) {
		dir := t.TempDir()
		store := NewFileSystemStore(dir)
		filePath := filepath.Join(dir, "1234_del.txt")
		os.WriteFile(filePath, []byte("data"), 0644)

		if err := store.Delete(filePath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(filePath); !os.IsNotExist(err) {
			t.Error("expected file to be deleted")
		}
	})

	t.Run("no error for missing file", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if err := store.Delete(filepath.Join(t.TempDir(), "nonexistent")); err != nil {
			t.Errorf("expected no error for missing file, got: %v", err)
		}
	})
}

func TestFileSystemStore_EnsureDir(t *testing.T) {
	t.Run("creates directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "storage", "path")
		store := NewFileSystemStore(dir)

		if err := store.EnsureDir(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected a directory")
		}
	})

	t.Run("succeeds if directory exists", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if err := store.EnsureDir(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple name", "file.zip", "file.zip"},
		{"unicode name", "报告.pdf", "报告.pdf"},
		{"strips directory", "/path/to/file.zip", "file.zip"},
		{"strips windows path", "C:\\Users\\test\\file.zip", "file.zip"},
		{"empty name", "", "upload"},
		{"dot name", ".", "upload"},
		{"parent name", "..", "upload"},
		{"traversal", "../../etc/passwd", "passwd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}

	t.Run("limits length and keeps extension", func(t *testing.T) {
		result := SanitizeFilename(strings.Repeat("a", 300) + ".txt")
		if len(result) != 200 {
			t.Errorf("expected length 200, got %d", len(result))
		}
		if !strings.HasSuffix(result, ".txt") {
			t.Errorf("expected .txt suffix, got %q", result[len(result)-8:])
		}
	})

	t.Run("cuts long multi-byte names on a character boundary", func(t *testing.T) {
		result := SanitizeFilename(strings.Repeat("报", 70) + ".txt")
		if !utf8.ValidString(result) {
			t.Fatalf("result is not valid UTF-8: %q", result)
		}
		if len(result) > 200 {
			t.Errorf("expected at most 200 bytes, got %d", len(result))
		}
		if result != strings.Repeat("报", 65)+".txt" {
			t.Errorf("unexpected result %q", result)
		}
	})
}
