package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrFileNotFound is returned when a stored upload is missing from disk.
var ErrFileNotFound = errors.New("stored file not found")

// Store defines the interface for upload storage backends.
type Store interface {
	Save(code, filename string, data io.Reader) (string, int64, error)
	Stat(path string) (fs.FileInfo, error)
	Rename(path, oldCode, newCode string) (string, error)
	Delete(path string) error
	EnsureDir() error
}

// FileSystemStore stores uploads on the local filesystem as {code}_{filename}.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (s *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", s.basePath, err)
	}
	return nil
}

// Save writes data to {code}_{filename} and returns the path and byte count.
func (s *FileSystemStore) Save(code, filename string, data io.Reader) (string, int64, error) {
	filePath := filepath.Join(s.basePath, StoredName(code, filename))

	file, err := os.Create(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}

	n, err := io.Copy(file, data)
	if err != nil {
		file.Close()
		os.Remove(filePath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	return filePath, n, nil
}

// Stat returns file info for a stored upload, or ErrFileNotFound.
func (s *FileSystemStore) Stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	return info, nil
}

// Rename moves a stored upload so that its name carries newCode instead of
// oldCode, and returns the new path.
func (s *FileSystemStore) Rename(path, oldCode, newCode string) (string, error) {
	base := filepath.Base(path)
	name := strings.TrimPrefix(base, oldCode+"_")
	newPath := filepath.Join(filepath.Dir(path), StoredName(newCode, name))

	if err := os.Rename(path, newPath); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return newPath, nil
}

// Delete removes a stored upload. A missing file is not an error.
func (s *FileSystemStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

// StoredName returns the on-disk name for an upload.
func StoredName(code, filename string) string {
	return code + "_" + filename
}

// SanitizeFilename strips directory components and limits length to 200
// bytes without splitting a multi-byte character.
func SanitizeFilename(name string) string {
	// Normalize Windows-style backslashes before filepath.Base, which is
	// platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	if len(name) > 200 {
		ext := filepath.Ext(name)
		if len(ext) > 20 {
			ext = ""
		}
		cut := 200 - len(ext)
		for cut > 0 && !utf8.ValidString(name[:cut]) {
			cut--
		}
		name = name[:cut] + ext
	}

	if name == "" || name == "." || name == "/" || name == ".." {
		name = "upload"
	}

	return name
}
