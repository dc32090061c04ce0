package database

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Limits for the admin-configurable maximum upload size, in megabytes.
const (
	DefaultMaxFileSizeMB = 50
	MinMaxFileSizeMB     = 1
	MaxMaxFileSizeMB     = 1024
)

// Settings is the administrator settings document.
type Settings struct {
	PasswordHash string `json:"password_hash,omitempty"`
	// LegacyPassword is the hex MD5 digest written by older deployments.
	// It is replaced by PasswordHash on the first successful login.
	LegacyPassword string `json:"password,omitempty"`
	MaxFileSizeMB  int    `json:"max_file_size"`
	Announcement   string `json:"announcement"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s *Settings) MaxUploadBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

// Record is the metadata for one stored upload, keyed by its pickup code.
type Record struct {
	Code             string   `json:"-"`
	FilePath         string   `json:"file_path"`
	OriginalFilename string   `json:"original_filename"`
	UploadTime       UnixTime `json:"upload_time"`
	ExpireTime       UnixTime `json:"expire_time"`
	ExpireHours      float64  `json:"expire_hours"`
	Size             int64    `json:"size"`
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpireTime.Time)
}

// Records maps pickup codes to their records.
type Records map[string]*Record

// Codes returns the set of live codes.
func (rs Records) Codes() map[string]bool {
	codes := make(map[string]bool, len(rs))
	for code := range rs {
		codes[code] = true
	}
	return codes
}

// UnixTime is a time.Time persisted as fractional Unix seconds.
type UnixTime struct {
	time.Time
}

// NewUnixTime wraps t.
func NewUnixTime(t time.Time) UnixTime {
	return UnixTime{Time: t}
}

func (t UnixTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	secs := float64(t.UnixNano()) / float64(time.Second)
	return strconv.AppendFloat(nil, secs, 'f', -1, 64), nil
}

func (t *UnixTime) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("invalid unix timestamp %s: %w", data, err)
	}
	if secs == 0 {
		t.Time = time.Time{}
		return nil
	}
	whole, frac := math.Modf(secs)
	t.Time = time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second))))
	return nil
}
