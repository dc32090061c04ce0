package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"locker/internal/server/database"
	"locker/internal/server/storage"
)

// RotationWindow is the validity of a code issued by Rotate.
const RotationWindow = 10 * time.Minute

// VerifyResult confirms a pickup code before download.
type VerifyResult struct {
	Filename string `json:"filename"`
}

// Download locates a stored file for streaming.
type Download struct {
	Path     string
	Filename string
	Size     int64
	ModTime  time.Time
}

// RotateResult carries the replacement code.
type RotateResult struct {
	Code      string    `json:"new_code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Verify reports the original filename for a live code. An expired record is
// purged on the way.
func (l *Locker) Verify(ctx context.Context, code string) (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, rec, err := l.lookupLocked(code)
	if err != nil {
		return nil, err
	}

	if rec.Expired(l.now()) {
		if err := l.dropLocked(records, rec, "expired"); err != nil {
			return nil, err
		}
		return nil, ErrCodeExpired
	}

	return &VerifyResult{Filename: rec.OriginalFilename}, nil
}

// Open resolves a code to its stored file. Expired records and records whose
// file has disappeared are purged.
func (l *Locker) Open(ctx context.Context, code string) (*Download, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, rec, err := l.lookupLocked(code)
	if err != nil {
		return nil, err
	}

	if rec.Expired(l.now()) {
		if err := l.dropLocked(records, rec, "expired"); err != nil {
			return nil, err
		}
		return nil, ErrCodeExpired
	}

	info, err := l.statLocked(records, rec)
	if err != nil {
		return nil, err
	}

	return &Download{
		Path:     rec.FilePath,
		Filename: rec.OriginalFilename,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// Rotate moves a live record to a fresh five-digit code valid for
// RotationWindow, so that the original code cannot be used again. The file
// rename and the record move succeed or fail together.
func (l *Locker) Rotate(ctx context.Context, oldCode string) (*RotateResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, rec, err := l.lookupLocked(oldCode)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if rec.Expired(now) {
		if err := l.dropLocked(records, rec, "expired"); err != nil {
			return nil, err
		}
		return nil, ErrCodeExpired
	}

	if _, err := l.statLocked(records, rec); err != nil {
		return nil, err
	}

	newCode, err := IssueCode(l.rand, RotationCodes, records.Codes())
	if err != nil {
		return nil, err
	}

	newPath, err := l.files.Rename(rec.FilePath, oldCode, newCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	rotated := *rec
	rotated.Code = newCode
	rotated.FilePath = newPath
	rotated.ExpireTime = database.NewUnixTime(now.Add(RotationWindow))
	rotated.ExpireHours = RotationWindow.Hours()

	delete(records, oldCode)
	records[newCode] = &rotated

	if err := l.records.WriteAll(records); err != nil {
		if _, undoErr := l.files.Rename(newPath, newCode, oldCode); undoErr != nil {
			slog.Error("failed to undo rename after rotation failure",
				"old_code", oldCode,
				"new_code", newCode,
				"error", undoErr,
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	slog.Info("pickup code rotated", "old_code", oldCode, "new_code", newCode)

	return &RotateResult{
		Code:      newCode,
		ExpiresAt: rotated.ExpireTime.Time,
	}, nil
}

func (l *Locker) lookupLocked(code string) (database.Records, *database.Record, error) {
	if code == "" {
		return nil, nil, ErrCodeNotFound
	}

	records, err := l.records.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	rec, ok := records[code]
	if !ok {
		return nil, nil, ErrCodeNotFound
	}
	return records, rec, nil
}

// statLocked checks the backing file and purges the record when it is gone.
func (l *Locker) statLocked(records database.Records, rec *database.Record) (fs.FileInfo, error) {
	info, err := l.files.Stat(rec.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			if dropErr := l.dropLocked(records, rec, "file missing"); dropErr != nil {
				return nil, dropErr
			}
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return info, nil
}
