package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helpers

func setupTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file %s: %v", name, err)
	}
	return path
}

func setupTestDir(t *testing.T, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func verifyZipContents(t *testing.T, zipBytes []byte, expectedFiles map[string]string) {
	t.Helper()

	reader, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		t.Fatalf("failed to create zip reader: %v", err)
	}

	if len(reader.File) != len(expectedFiles) {
		t.Errorf("expected %d files in zip, got %d", len(expectedFiles), len(reader.File))
	}

	for _, f := range reader.File {
		expectedContent, exists := expectedFiles[f.Name]
		if !exists {
			t.Errorf("unexpected file in zip: %s", f.Name)
			continue
		}

		rc, err := f.Open()
		if err != nil {
			t.Errorf("failed to open file %s in zip: %v", f.Name, err)
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Errorf("failed to read file %s: %v", f.Name, err)
			continue
		}

		if string(content) != expectedContent {
			t.Errorf("file %s: expected content %q, got %q", f.Name, expectedContent, string(content))
		}
	}
}

func readSource(t *testing.T, src *Source) []byte {
	t.Helper()
	rc, err := src.Open()
	if err != nil {
		t.Fatalf("failed to open source: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("failed to read source: %v", err)
	}
	return data
}

var testNow = time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)

// Tests

func TestParseArgs(t *testing.T) {
	t.Run("empty args returns error", func(t *testing.T) {
		result, err := ParseArgs(nil)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if result != nil {
			t.Error("expected nil result for empty args")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := ParseArgs([]string{filepath.Join(t.TempDir(), "nope")})
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) || validationErr.Cause != "not found or not accessible" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("classifies files and dirs", func(t *testing.T) {
		file := setupTestFile(t, "a.txt", "a")
		dir := t.TempDir()

		parsed, err := ParseArgs([]string{file, dir + "/", file})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(parsed) != 2 {
			t.Fatalf("duplicates should collapse, got %d paths", len(parsed))
		}
		if parsed[0].Kind != PathFile || parsed[1].Kind != PathDir {
			t.Errorf("unexpected kinds %+v", parsed)
		}
		if parsed[1].FullPath != filepath.Clean(dir) {
			t.Errorf("path not cleaned: %s", parsed[1].FullPath)
		}
	})
}

func TestTree_WriteZip(t *testing.T) {
	t.Run("directory with nested files", func(t *testing.T) {
		dir := setupTestDir(t, "photos", map[string]string{
			"a.jpg":        "AAA",
			"trip/b.jpg":   "BBB",
			"trip/c/d.txt": "DDD",
		})
		parsed, _ := ParseArgs([]string{dir})
		tree, err := BuildTree(parsed, testNow)
		if err != nil {
			t.Fatal(err)
		}

		var buf bytes.Buffer
		if err := tree.WriteZip(&buf); err != nil {
			t.Fatalf("failed to compress: %v", err)
		}

		verifyZipContents(t, buf.Bytes(), map[string]string{
			"photos/a.jpg":        "AAA",
			"photos/trip/b.jpg":   "BBB",
			"photos/trip/c/d.txt": "DDD",
		})

		size, err := tree.UncompressedSize()
		if err != nil || size != 9 {
			t.Errorf("expected 9 bytes, got %d %v", size, err)
		}
	})

	t.Run("several paths share a virtual root", func(t *testing.T) {
		a := setupTestFile(t, "a.txt", "hello")
		dir := setupTestDir(t, "docs", map[string]string{"b.md": "# b"})

		parsed, _ := ParseArgs([]string{a, dir})
		tree, err := BuildTree(parsed, testNow)
		if err != nil {
			t.Fatal(err)
		}
		if tree.Root.Name() != "bundle_20260405_060708" {
			t.Errorf("unexpected root name %s", tree.Root.Name())
		}

		var buf bytes.Buffer
		if err := tree.WriteZip(&buf); err != nil {
			t.Fatal(err)
		}
		verifyZipContents(t, buf.Bytes(), map[string]string{
			"bundle_20260405_060708/a.txt":     "hello",
			"bundle_20260405_060708/docs/b.md": "# b",
		})
	})
}

func TestPrepare(t *testing.T) {
	t.Run("single file is sent as-is", func(t *testing.T) {
		path := setupTestFile(t, "report.pdf", "%PDF")
		src, err := Prepare([]string{path}, testNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if src.Name != "report.pdf" || src.Size != 4 || src.Bundled {
			t.Errorf("unexpected source %+v", src)
		}
		if got := readSource(t, src); string(got) != "%PDF" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("directory is zipped", func(t *testing.T) {
		dir := setupTestDir(t, "music", map[string]string{"x.mp3": "x", "y.mp3": "y"})
		src, err := Prepare([]string{dir}, testNow)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if src.Name != "music.zip" || !src.Bundled || src.Size != -1 || src.Files != 2 {
			t.Errorf("unexpected source %+v", src)
		}
		verifyZipContents(t, readSource(t, src), map[string]string{
			"music/x.mp3": "x",
			"music/y.mp3": "y",
		})

		// Each Open streams a fresh archive.
		if len(readSource(t, src)) == 0 {
			t.Error("second open should produce data too")
		}
	})

	t.Run("several files are zipped", func(t *testing.T) {
		a := setupTestFile(t, "a.txt", "a")
		b := setupTestFile(t, "b.txt", "b")
		src, err := Prepare([]string{a, b}, testNow)
		if err != nil {
			t.Fatal(err)
		}
		if src.Name != "bundle_20260405_060708.zip" || src.Files != 2 {
			t.Errorf("unexpected source %+v", src)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Prepare([]string{dir}, testNow)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})
}
