package service

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"locker/internal/server/database"
	"locker/internal/server/storage"

	"golang.org/x/crypto/bcrypt"
)

// Locker contains the business logic of the pickup locker. Every operation
// re-reads the documents from disk; mu serialises each read-modify-write.
type Locker struct {
	mu         sync.Mutex
	settings   *database.SettingsStore
	records    *database.RecordStore
	files      storage.Store
	background *storage.BackgroundStore

	now      func() time.Time
	rand     io.Reader
	hashCost int
}

// NewLocker creates a new locker service.
func NewLocker(settings *database.SettingsStore, records *database.RecordStore, files storage.Store, background *storage.BackgroundStore) *Locker {
	return &Locker{
		settings:   settings,
		records:    records,
		files:      files,
		background: background,
		now:        time.Now,
		rand:       rand.Reader,
		hashCost:   bcrypt.DefaultCost,
	}
}

// Stats summarises the live uploads.
type Stats struct {
	ActiveUploads int
	StoredBytes   int64
}

// IsInitialized reports whether first-run setup has completed.
func (l *Locker) IsInitialized() bool {
	return l.settings.IsInitialized()
}

// Initialize stores the admin password and creates an empty record store.
// It can only succeed once.
func (l *Locker) Initialize(ctx context.Context, password string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.settings.IsInitialized() {
		return ErrAlreadyInitialized
	}
	if password == "" {
		return ErrEmptyPassword
	}

	hash, err := l.hashPassword(password)
	if err != nil {
		return err
	}

	settings := &database.Settings{
		PasswordHash:  hash,
		MaxFileSizeMB: database.DefaultMaxFileSizeMB,
	}
	if err := l.settings.Write(settings); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := l.records.WriteAll(database.Records{}); err != nil {
		return fmt.Errorf("failed to create record store: %w", err)
	}

	slog.Info("locker initialized")
	return nil
}

// Authenticate checks password against the stored admin password.
func (l *Locker) Authenticate(ctx context.Context, password string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	settings, err := l.readSettings()
	if err != nil {
		return err
	}

	if !passwordMatches(settings, password) {
		return ErrBadCredentials
	}

	if settings.PasswordHash == "" {
		if err := l.setPassword(settings, password); err != nil {
			slog.Error("failed to upgrade legacy password digest", "error", err)
		} else {
			slog.Info("legacy password digest upgraded")
		}
	}
	return nil
}

// Settings returns the current admin settings.
func (l *Locker) Settings(ctx context.Context) (*database.Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.readSettings()
}

// Announcement returns the site announcement.
func (l *Locker) Announcement(ctx context.Context) (string, error) {
	settings, err := l.Settings(ctx)
	if err != nil {
		return "", err
	}
	return settings.Announcement, nil
}

// SweepExpired purges every expired record and its file.
func (l *Locker) SweepExpired(ctx context.Context) (CleanupReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, report, err := l.sweepLocked()
	return report, err
}

// PurgeExpired implements storage.Purger.
func (l *Locker) PurgeExpired(ctx context.Context) (int, int, error) {
	report, err := l.SweepExpired(ctx)
	return len(report.Removed), len(report.Failed), err
}

// Stats returns counts over the live records.
func (l *Locker) Stats(ctx context.Context) (*Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.records.ReadAll()
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	now := l.now()
	for _, rec := range records {
		if rec.Expired(now) {
			continue
		}
		stats.ActiveUploads++
		stats.StoredBytes += rec.Size
	}
	return stats, nil
}

// --- Helpers (callers hold mu) ---

func (l *Locker) readSettings() (*database.Settings, error) {
	settings, err := l.settings.Read()
	if err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	return settings, nil
}

// sweepLocked purges expired records, deletes their files and persists the
// store when anything was removed. It returns the live records.
func (l *Locker) sweepLocked() (database.Records, CleanupReport, error) {
	var report CleanupReport

	records, err := l.records.ReadAll()
	if err != nil {
		return nil, report, err
	}

	live, removed := Sweep(records, l.now())
	if len(removed) == 0 {
		return live, report, nil
	}

	for _, rec := range removed {
		report.Removed = append(report.Removed, rec.Code)
		if err := l.files.Delete(rec.FilePath); err != nil {
			report.Failed = append(report.Failed, rec.Code)
			slog.Error("failed to delete expired file",
				"code", rec.Code,
				"path", rec.FilePath,
				"error", err,
			)
		}
	}

	if err := l.records.WriteAll(live); err != nil {
		return nil, report, fmt.Errorf("failed to persist swept records: %w", err)
	}

	slog.Info("expired uploads purged",
		"removed", len(report.Removed),
		"failed", len(report.Failed),
	)
	return live, report, nil
}

// dropLocked removes a single record and, best-effort, its file.
func (l *Locker) dropLocked(records database.Records, rec *database.Record, reason string) error {
	if err := l.files.Delete(rec.FilePath); err != nil {
		slog.Error("failed to delete stored file",
			"code", rec.Code,
			"path", rec.FilePath,
			"error", err,
		)
	}

	delete(records, rec.Code)
	if err := l.records.WriteAll(records); err != nil {
		return fmt.Errorf("failed to persist records: %w", err)
	}

	slog.Info("upload removed", "code", rec.Code, "reason", reason)
	return nil
}

func (l *Locker) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (l *Locker) setPassword(settings *database.Settings, password string) error {
	hash, err := l.hashPassword(password)
	if err != nil {
		return err
	}
	settings.PasswordHash = hash
	settings.LegacyPassword = ""
	return l.settings.Write(settings)
}

// passwordMatches compares against the bcrypt hash, falling back to the
// legacy MD5 digest when no bcrypt hash has been stored yet.
func passwordMatches(settings *database.Settings, password string) bool {
	if settings.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(settings.PasswordHash), []byte(password)) == nil
	}
	if settings.LegacyPassword == "" {
		return false
	}
	sum := md5.Sum([]byte(password))
	digest := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(digest), []byte(settings.LegacyPassword)) == 1
}
