package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"locker/internal/server/database"
)

// ListRecords purges expired uploads and returns the rest ordered by expiry.
func (l *Locker) ListRecords(ctx context.Context) ([]*database.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	live, _, err := l.sweepLocked()
	if err != nil {
		return nil, err
	}

	list := make([]*database.Record, 0, len(live))
	for _, rec := range live {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ExpireTime.Equal(list[j].ExpireTime.Time) {
			return list[i].ExpireTime.Before(list[j].ExpireTime.Time)
		}
		return list[i].Code < list[j].Code
	})
	return list, nil
}

// DeleteRecord removes an upload and, best-effort, its file.
func (l *Locker) DeleteRecord(ctx context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, rec, err := l.lookupLocked(code)
	if err != nil {
		return err
	}
	return l.dropLocked(records, rec, "deleted by admin")
}

// ExtendExpiry resets an upload's expiry to now plus hours.
func (l *Locker) ExtendExpiry(ctx context.Context, code string, hours int) error {
	if hours <= 0 {
		return ErrInvalidExtension
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	records, rec, err := l.lookupLocked(code)
	if err != nil {
		return err
	}

	rec.ExpireTime = database.NewUnixTime(l.now().Add(time.Duration(hours) * time.Hour))
	rec.ExpireHours = float64(hours)

	if err := l.records.WriteAll(records); err != nil {
		return fmt.Errorf("failed to persist records: %w", err)
	}

	slog.Info("upload expiry extended", "code", code, "hours", hours)
	return nil
}

// SettingsUpdate is one submission of the admin settings form. Empty fields
// leave the corresponding setting unchanged, except Announcement which is
// always replaced.
type SettingsUpdate struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
	MaxFileSizeMB   string
	Announcement    string
	BackgroundName  string
	Background      io.Reader
}

// SettingsOutcome reports which parts of a SettingsUpdate were applied.
type SettingsOutcome struct {
	Settings *database.Settings
	Messages []string
	Errors   []error
}

// Err joins every rejected part of the update.
func (o *SettingsOutcome) Err() error {
	return errors.Join(o.Errors...)
}

// UpdateSettings applies every valid part of update. A rejected part is
// reported in the outcome and does not stop the others.
func (l *Locker) UpdateSettings(ctx context.Context, update SettingsUpdate) (*SettingsOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	settings, err := l.readSettings()
	if err != nil {
		return nil, err
	}

	outcome := &SettingsOutcome{Settings: settings}
	fail := func(err error) {
		outcome.Errors = append(outcome.Errors, err)
	}

	if update.CurrentPassword != "" || update.NewPassword != "" || update.ConfirmPassword != "" {
		switch {
		case !passwordMatches(settings, update.CurrentPassword):
			fail(ErrBadCredentials)
		case update.NewPassword == "":
			fail(ErrEmptyPassword)
		case update.NewPassword != update.ConfirmPassword:
			fail(ErrPasswordMismatch)
		default:
			hash, err := l.hashPassword(update.NewPassword)
			if err != nil {
				return nil, err
			}
			settings.PasswordHash = hash
			settings.LegacyPassword = ""
			outcome.Messages = append(outcome.Messages, "password updated")
		}
	}

	if v := strings.TrimSpace(update.MaxFileSizeMB); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < database.MinMaxFileSizeMB || size > database.MaxMaxFileSizeMB {
			fail(ErrInvalidMaxSize)
		} else {
			settings.MaxFileSizeMB = size
			outcome.Messages = append(outcome.Messages, "max file size updated")
		}
	}

	settings.Announcement = update.Announcement

	if update.Background != nil && update.BackgroundName != "" {
		if err := l.background.Replace(update.BackgroundName, update.Background); err != nil {
			fail(err)
		} else {
			outcome.Messages = append(outcome.Messages, "background image updated")
		}
	}

	if err := l.settings.Write(settings); err != nil {
		return nil, fmt.Errorf("failed to write settings: %w", err)
	}

	if _, _, err := l.sweepLocked(); err != nil {
		slog.Error("sweep after settings update failed", "error", err)
	}

	slog.Info("settings updated",
		"applied", len(outcome.Messages),
		"rejected", len(outcome.Errors),
	)
	return outcome, nil
}
