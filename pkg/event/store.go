// Package event persists event records on the local filesystem. Each event
// owns a directory named after its id; directory existence is the uniqueness
// constraint, claimed atomically with os.Mkdir instead of a check-then-act
// probe that would race under concurrent creates.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	recordFile = "project.json"
	uploadsDir = "uploads"
	filesDir   = "files"
)

// Store reads and writes event records under a data root directory.
type Store struct {
	root string
}

// NewStore creates a store rooted at dataRoot, creating the directory if
// needed. The path is resolved to absolute so later prefix checks are
// unambiguous.
func NewStore(dataRoot string) (*Store, error) {
	if dataRoot == "" {
		return nil, errors.New("event: data root is required")
	}
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("event: resolve data root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("event: create data root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute data root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the event's directory path. The id must already be validated;
// Dir itself never touches the filesystem.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// Create claims the event directory and persists the record. The os.Mkdir
// call is the uniqueness check: if the directory exists the create fails
// with ErrConflict, so exactly one of two concurrent creates with the same
// id wins.
func (s *Store) Create(ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	dir := s.Dir(ev.ID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrConflict, ev.ID)
		}
		return fmt.Errorf("event: claim directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, uploadsDir), 0o755); err != nil {
		return fmt.Errorf("event: create uploads dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, filesDir), 0o755); err != nil {
		return fmt.Errorf("event: create files dir: %w", err)
	}

	return s.writeRecord(ev)
}

// Get loads the record for id. A missing directory or record file maps to
// ErrNotFound; an unparseable record is a fault surfaced as ErrCorruptRecord.
func (s *Store) Get(id string) (*Event, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(id), recordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("event: read record: %w", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptRecord, id, err)
	}
	return &ev, nil
}

// Save overwrites the record file. Merging partial updates into the record
// is the caller's job; the store does not diff. The event must already
// exist on disk.
func (s *Store) Save(ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(s.Dir(ev.ID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, ev.ID)
		}
		return fmt.Errorf("event: stat directory: %w", err)
	}
	return s.writeRecord(ev)
}

// Delete removes the entire event tree. Idempotent: deleting a missing
// event is not an error.
func (s *Store) Delete(id string) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("event: delete: %w", err)
	}
	return nil
}

// IDAvailable is a non-authoritative probe used for availability hints in
// the UI. The authoritative uniqueness check is the atomic claim in Create.
func (s *Store) IDAvailable(id string) bool {
	if !ValidID(id) {
		return false
	}
	_, err := os.Stat(s.Dir(id))
	return os.IsNotExist(err)
}

func (s *Store) writeRecord(ev *Event) error {
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("event: encode record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(ev.ID), recordFile), data, 0o644); err != nil {
		return fmt.Errorf("event: write record: %w", err)
	}
	return nil
}
