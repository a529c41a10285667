package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fawkesdbs/app-dt-lesira/internal/event"
)

// FileBackend stores each day's log as one JSON document on local disk,
// named log_YYYY-MM-DD.json. Append and Update are read-modify-write; with
// locking enabled the span is guarded by an advisory lock file so two
// terminals sharing the directory cannot interleave their rewrites.
type FileBackend struct {
	dir  string
	lock bool
}

// NewFileBackend creates a file-backed day log under dir.
func NewFileBackend(dir string, lock bool) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, lock: lock}, nil
}

func (f *FileBackend) logPath(day string) string {
	return filepath.Join(f.dir, "log_"+day+".json")
}

func (f *FileBackend) lockPath(day string) string {
	return f.logPath(day) + ".lock"
}

// Load reads the day's document. A missing file is an empty day, not an
// error; an unreadable or unparseable file is an error so that the following
// rewrite cannot silently clobber entries it could not read.
func (f *FileBackend) Load(day string) ([]event.Record, error) {
	data, err := os.ReadFile(f.logPath(day))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read day log %s: %w", day, err)
	}

	var entries []event.Record
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse day log %s: %w", day, err)
	}
	return entries, nil
}

func (f *FileBackend) save(day string, entries []event.Record) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal day log %s: %w", day, err)
	}
	if err := os.WriteFile(f.logPath(day), data, 0o644); err != nil {
		return fmt.Errorf("failed to write day log %s: %w", day, err)
	}
	return nil
}

// acquireLock takes the advisory lock for a day via exclusive file creation,
// retrying for up to five seconds.
func (f *FileBackend) acquireLock(day string) (release func(), err error) {
	if !f.lock {
		return func() {}, nil
	}

	path := f.lockPath(day)
	deadline := time.Now().Add(5 * time.Second)
	for {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			file.Close()
			return func() { os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lock file %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock file %s", path)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// Append adds entries to the day's document, preserving everything already
// stored.
func (f *FileBackend) Append(day string, entries []event.Record) error {
	release, err := f.acquireLock(day)
	if err != nil {
		return err
	}
	defer release()

	existing, err := f.Load(day)
	if err != nil {
		return err
	}
	return f.save(day, append(existing, entries...))
}

// Update overwrites entries by id. Ids with no stored counterpart are
// appended; the caller's copy wins.
func (f *FileBackend) Update(day string, entries []event.Record) error {
	release, err := f.acquireLock(day)
	if err != nil {
		return err
	}
	defer release()

	existing, err := f.Load(day)
	if err != nil {
		return err
	}

	byID := make(map[string]int, len(existing))
	for i, entry := range existing {
		byID[entry.ID] = i
	}
	for _, entry := range entries {
		if i, ok := byID[entry.ID]; ok {
			existing[i] = entry
		} else {
			existing = append(existing, entry)
		}
	}
	return f.save(day, existing)
}
