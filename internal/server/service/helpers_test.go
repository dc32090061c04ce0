package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"locker/internal/server/database"
	"locker/internal/server/storage"

	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEnv struct {
	locker    *Locker
	clock     *fakeClock
	dataDir   string
	uploadDir string
	bgPath    string
}

// newTestEnv returns an uninitialized locker rooted in a temp directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		clock:     &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		dataDir:   filepath.Join(root, "data"),
		uploadDir: filepath.Join(root, "uploads"),
		bgPath:    filepath.Join(root, "data", "bg.png"),
	}

	files := storage.NewFileSystemStore(env.uploadDir)
	if err := files.EnsureDir(); err != nil {
		t.Fatalf("failed to create upload dir: %v", err)
	}

	env.locker = NewLocker(
		database.NewSettingsStore(env.dataDir),
		database.NewRecordStore(env.dataDir),
		files,
		storage.NewBackgroundStore(env.bgPath),
	)
	env.locker.now = env.clock.Now
	env.locker.hashCost = bcrypt.MinCost
	return env
}

// newReadyEnv returns a locker initialized with password "abc123".
func newReadyEnv(t *testing.T) *testEnv {
	t.Helper()
	env := newTestEnv(t)
	if err := env.locker.Initialize(context.Background(), "abc123"); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	return env
}

func (env *testEnv) upload(t *testing.T, name, content string, hours int) *UploadResult {
	t.Helper()
	res, err := env.locker.Upload(context.Background(), UploadRequest{
		Filename:    name,
		Size:        int64(len(content)),
		Body:        strings.NewReader(content),
		ExpireHours: hours,
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return res
}

func (env *testEnv) records(t *testing.T) database.Records {
	t.Helper()
	records, err := env.locker.records.ReadAll()
	if err != nil {
		t.Fatalf("failed to read records: %v", err)
	}
	return records
}
