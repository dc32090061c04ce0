package database

import (
	"errors"
	"path/filepath"
)

// RecordsFile is the file record document name inside the data directory.
const RecordsFile = "files.json"

// RecordStore persists the code -> record mapping as a single document.
// Every mutation is a read-modify-write of the whole mapping; callers must
// serialise those spans themselves.
type RecordStore struct {
	path string
}

// NewRecordStore creates a record store under dataDir.
func NewRecordStore(dataDir string) *RecordStore {
	return &RecordStore{path: filepath.Join(dataDir, RecordsFile)}
}

// Path returns the document location.
func (s *RecordStore) Path() string {
	return s.path
}

// ReadAll loads every record. A missing document reads as empty.
func (s *RecordStore) ReadAll() (Records, error) {
	records := make(Records)
	if err := readJSON(s.path, &records); err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return make(Records), nil
		}
		return nil, err
	}

	for code, rec := range records {
		if rec == nil {
			delete(records, code)
			continue
		}
		rec.Code = code
	}
	return records, nil
}

// WriteAll overwrites the document with records.
func (s *RecordStore) WriteAll(records Records) error {
	if records == nil {
		records = make(Records)
	}
	return writeJSON(s.path, records)
}
