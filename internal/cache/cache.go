package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/pkg/logging"
)

const (
	// CurrentVersion tags files written by this package.
	CurrentVersion = "2"

	// legacyVersion files store bare status strings under "moltest_version".
	legacyVersion = "1.0.0"

	logSubsystem = "Cache"
)

// Entry is the cached result of one RunID.
type Entry struct {
	Status api.Status `json:"status"`

	// Duration is in seconds.
	Duration float64 `json:"duration"`

	ExitCode  *int   `json:"exit_code"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// UnmarshalJSON accepts both the object form and the bare status string
// written by legacy cache files.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var status string
		if err := json.Unmarshal(data, &status); err != nil {
			return err
		}
		*e = Entry{Status: api.Status(status)}
		return nil
	}

	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Record is the persisted cache document.
type Record struct {
	Version   string           `json:"version"`
	LastRun   string           `json:"last_run,omitempty"`
	Scenarios map[string]Entry `json:"scenarios"`
}

// NewRecord returns an empty record of the current version.
func NewRecord() *Record {
	return &Record{Version: CurrentVersion, Scenarios: make(map[string]Entry)}
}

// ReadError means the cache file could not be used. The store falls back to
// an empty record; the error is a warning for the caller.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cache %s unusable, starting empty: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError means the new results could not be persisted. In-memory results
// are unaffected.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write cache %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store reads and writes one cache file. It is read once before scheduling
// and written once afterwards, so it holds no lock; two processes sharing a
// file race and the last writer wins.
type Store struct {
	path   string
	record *Record
	now    func() time.Time
}

// NewStore creates a store for the cache file at path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the cache file. It always returns a usable record; a missing
// file is an empty record without error, any other problem is an empty
// record plus a *ReadError.
func (s *Store) Load() (*Record, error) {
	record, err := s.read()
	if err != nil {
		logging.Warn(logSubsystem, "%v", err)
	}
	s.record = record
	return record, err
}

func (s *Store) read() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug(logSubsystem, "No cache at %s", s.path)
			return NewRecord(), nil
		}
		return NewRecord(), &ReadError{Path: s.path, Err: err}
	}

	var raw struct {
		Version        string           `json:"version"`
		MoltestVersion string           `json:"moltest_version"`
		LastRun        string           `json:"last_run"`
		Scenarios      map[string]Entry `json:"scenarios"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewRecord(), &ReadError{Path: s.path, Err: err}
	}

	switch {
	case raw.Version == CurrentVersion:
	case raw.Version == "" && raw.MoltestVersion == legacyVersion:
		logging.Debug(logSubsystem, "Migrating legacy cache %s", s.path)
	default:
		version := raw.Version
		if version == "" {
			version = raw.MoltestVersion
		}
		return NewRecord(), &ReadError{Path: s.path, Err: fmt.Errorf("unsupported cache version %q", version)}
	}
	if raw.Scenarios == nil {
		return NewRecord(), &ReadError{Path: s.path, Err: errors.New(`missing "scenarios" object`)}
	}

	return &Record{Version: CurrentVersion, LastRun: raw.LastRun, Scenarios: raw.Scenarios}, nil
}

func (s *Store) loaded() *Record {
	if s.record == nil {
		_, _ = s.Load()
	}
	return s.record
}

// PreviouslyFailed returns the RunIDs whose last recorded status is failed
// or error. A RunID absent from the cache is never reported.
func (s *Store) PreviouslyFailed() map[string]bool {
	failed := make(map[string]bool)
	for id, entry := range s.loaded().Scenarios {
		if entry.Status.IsFailure() {
			failed[id] = true
		}
	}
	return failed
}

// IsEmpty reports whether the loaded record holds no entries.
func (s *Store) IsEmpty() bool {
	return len(s.loaded().Scenarios) == 0
}

// Record merges outcomes over the loaded record and rewrites the file in one
// atomic replace. Entries for RunIDs not in outcomes are kept unchanged, and
// a skipped outcome never replaces an existing entry. The returned error, if
// any, is a *WriteError.
func (s *Store) Record(outcomes []api.Outcome) error {
	record := s.loaded()
	now := s.now().UTC().Format(time.RFC3339)

	for _, o := range outcomes {
		if _, exists := record.Scenarios[o.ID]; exists && o.Status == api.StatusSkipped {
			continue
		}
		record.Scenarios[o.ID] = Entry{
			Status:    o.Status,
			Duration:  roundSeconds(o.Duration),
			ExitCode:  o.ExitCode,
			UpdatedAt: now,
		}
	}
	record.Version = CurrentVersion
	record.LastRun = now

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		werr := &WriteError{Path: s.path, Err: err}
		logging.Warn(logSubsystem, "%v", werr)
		return werr
	}
	logging.Debug(logSubsystem, "Wrote %d entries to %s", len(record.Scenarios), s.path)
	return nil
}

// Clear removes the cache file. A missing file is not an error.
func (s *Store) Clear() error {
	s.record = NewRecord()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache %s: %w", s.path, err)
	}
	return nil
}

// NamedEntry pairs a RunID with its entry.
type NamedEntry struct {
	ID string
	Entry
}

// Entries returns the loaded entries sorted by RunID.
func (s *Store) Entries() []NamedEntry {
	record := s.loaded()
	entries := make([]NamedEntry, 0, len(record.Scenarios))
	for id, e := range record.Scenarios {
		entries = append(entries, NamedEntry{ID: id, Entry: e})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
