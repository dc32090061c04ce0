package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"locker/internal/server/database"
	"locker/internal/server/storage"
)

// ExpiryWindows are the validity windows, in hours, an uploader may choose.
var ExpiryWindows = []int{1, 3, 10, 24}

// UploadRequest describes an incoming file.
type UploadRequest struct {
	Filename    string
	Size        int64 // declared size; -1 when unknown
	Body        io.Reader
	ExpireHours int
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	Code      string    `json:"code"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileTooLargeError reports the limit that an upload exceeded.
type FileTooLargeError struct {
	LimitMB int
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file exceeds maximum allowed size of %d MB", e.LimitMB)
}

func (e *FileTooLargeError) Unwrap() error {
	return ErrFileTooLarge
}

// Upload validates and stores a file and issues a four-digit pickup code.
func (l *Locker) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if req.Body == nil || req.Filename == "" {
		return nil, ErrNoFileSelected
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	settings, err := l.readSettings()
	if err != nil {
		return nil, err
	}

	limit := settings.MaxUploadBytes()
	if req.Size > limit {
		return nil, &FileTooLargeError{LimitMB: settings.MaxFileSizeMB}
	}

	if !slices.Contains(ExpiryWindows, req.ExpireHours) {
		return nil, fmt.Errorf("%w: %d hours", ErrInvalidExpiryWindow, req.ExpireHours)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := l.records.ReadAll()
	if err != nil {
		return nil, err
	}

	code, err := IssueCode(l.rand, UploadCodes, records.Codes())
	if err != nil {
		return nil, err
	}

	filename := storage.SanitizeFilename(req.Filename)

	// Read one byte past the limit so that an understated size is caught.
	path, size, err := l.files.Save(code, filename, io.LimitReader(req.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if size > limit {
		if delErr := l.files.Delete(path); delErr != nil {
			slog.Error("failed to remove oversized upload", "path", path, "error", delErr)
		}
		return nil, &FileTooLargeError{LimitMB: settings.MaxFileSizeMB}
	}

	now := l.now()
	rec := &database.Record{
		Code:             code,
		FilePath:         path,
		OriginalFilename: filename,
		UploadTime:       database.NewUnixTime(now),
		ExpireTime:       database.NewUnixTime(now.Add(time.Duration(req.ExpireHours) * time.Hour)),
		ExpireHours:      float64(req.ExpireHours),
		Size:             size,
	}
	records[code] = rec

	if err := l.records.WriteAll(records); err != nil {
		// Don't leave a file behind that no record points at.
		if delErr := l.files.Delete(path); delErr != nil {
			slog.Error("failed to remove orphaned upload", "path", path, "error", delErr)
		}
		return nil, fmt.Errorf("failed to create upload record: %w", err)
	}

	slog.Info("upload stored",
		"code", code,
		"filename", filename,
		"size", size,
		"expire_hours", req.ExpireHours,
	)

	return &UploadResult{
		Code:      code,
		Filename:  filename,
		Size:      size,
		ExpiresAt: rec.ExpireTime.Time,
	}, nil
}
