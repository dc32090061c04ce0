package database

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// SettingsFile is the settings document name inside the data directory.
const SettingsFile = "settings.json"

// settingsDocument mirrors Settings with optional fields so that documents
// written before a field existed can be told apart from explicit zero values.
type settingsDocument struct {
	PasswordHash   string  `json:"password_hash,omitempty"`
	LegacyPassword string  `json:"password,omitempty"`
	MaxFileSizeMB  *int    `json:"max_file_size"`
	Announcement   *string `json:"announcement"`
}

// SettingsStore persists the administrator settings document.
type SettingsStore struct {
	path string
}

// NewSettingsStore creates a settings store under dataDir.
func NewSettingsStore(dataDir string) *SettingsStore {
	return &SettingsStore{path: filepath.Join(dataDir, SettingsFile)}
}

// Path returns the document location.
func (s *SettingsStore) Path() string {
	return s.path
}

// IsInitialized reports whether the settings document exists.
func (s *SettingsStore) IsInitialized() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read loads the settings document. Missing optional fields are filled with
// defaults and the completed document is written back before returning.
func (s *SettingsStore) Read() (*Settings, error) {
	var doc settingsDocument
	if err := readJSON(s.path, &doc); err != nil {
		return nil, err
	}

	settings := &Settings{
		PasswordHash:   doc.PasswordHash,
		LegacyPassword: doc.LegacyPassword,
		MaxFileSizeMB:  DefaultMaxFileSizeMB,
	}

	backfilled := false
	if doc.MaxFileSizeMB != nil {
		settings.MaxFileSizeMB = *doc.MaxFileSizeMB
	} else {
		backfilled = true
	}
	if doc.Announcement != nil {
		settings.Announcement = *doc.Announcement
	} else {
		backfilled = true
	}

	if backfilled {
		if err := s.Write(settings); err != nil {
			return nil, fmt.Errorf("failed to persist backfilled settings: %w", err)
		}
		slog.Info("settings document migrated", "path", s.path)
	}

	return settings, nil
}

// Write overwrites the settings document.
func (s *SettingsStore) Write(settings *Settings) error {
	if settings == nil {
		return errors.New("nil settings")
	}
	return writeJSON(s.path, settings)
}
