package service

import (
	"sort"
	"time"

	"locker/internal/server/database"
)

// Sweep splits records into those still live at now and those past their
// expiry. The input map is not modified and no files are touched.
func Sweep(records database.Records, now time.Time) (database.Records, []*database.Record) {
	live := make(database.Records, len(records))
	var removed []*database.Record

	for code, rec := range records {
		if rec.Expired(now) {
			removed = append(removed, rec)
			continue
		}
		live[code] = rec
	}

	sort.Slice(removed, func(i, j int) bool {
		return removed[i].Code < removed[j].Code
	})
	return live, removed
}

// CleanupReport lists the codes purged by a sweep and those whose backing
// file could not be deleted. Failed codes are still removed from the store.
type CleanupReport struct {
	Removed []string
	Failed  []string
}
