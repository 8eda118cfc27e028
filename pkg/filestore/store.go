// Package filestore manages guest-visible files under an event's files/
// directory: listing, collision-safe placement of staged uploads, deletion,
// folder management and streaming zip archives. All client-supplied folder
// and file names pass through pkg/safename before any path is built.
package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrymomot/eventdrop/pkg/event"
	"github.com/dmitrymomot/eventdrop/pkg/safename"
)

const (
	filesDir   = "files"
	uploadsDir = "uploads"
)

// FileEntry describes one file in a listing. Derived from the directory
// entry on every call, never persisted separately.
type FileEntry struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Listing partitions a directory into files and one-level subfolders.
type Listing struct {
	Files   []FileEntry `json:"files"`
	Folders []string    `json:"folders"`
}

// Store performs file operations under the same data root the event store
// claims directories in.
type Store struct {
	root string
}

// NewStore creates a file store rooted at dataRoot.
func NewStore(dataRoot string) (*Store, error) {
	if dataRoot == "" {
		return nil, errors.New("filestore: data root is required")
	}
	abs, err := filepath.Abs(dataRoot)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve data root: %w", err)
	}
	return &Store{root: abs}, nil
}

// filesPath returns the files root for an event, optionally inside a folder.
// The event id and folder are validated before any join.
func (s *Store) filesPath(eventID string, folder safename.Folder) (string, error) {
	if !event.ValidID(eventID) {
		return "", fmt.Errorf("%w: %q", event.ErrInvalidID, eventID)
	}
	dir := filepath.Join(s.root, eventID, filesDir)
	if !folder.IsRoot() {
		dir = filepath.Join(dir, folder.String())
	}
	return dir, nil
}

// filePath resolves a single file inside an event folder, rejecting unsafe
// filenames before the join.
func (s *Store) filePath(eventID string, folder safename.Folder, name string) (string, error) {
	if !safename.IsSafeFilename(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	dir, err := s.filesPath(eventID, folder)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// EnsureFilesDir creates the event's files root if missing. Idempotent,
// safe to call unconditionally before the first write.
func (s *Store) EnsureFilesDir(eventID string) error {
	dir, err := s.filesPath(eventID, safename.Root)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: ensure files dir: %w", err)
	}
	return nil
}

// List reads the folder's entries, partitioned into files and one-level
// subfolders. A directory that was never created yields an empty listing:
// an event with no uploads yet is a normal state, not an error.
func (s *Store) List(eventID string, folder safename.Folder) (*Listing, error) {
	dir, err := s.filesPath(eventID, folder)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Listing{Files: []FileEntry{}, Folders: []string{}}, nil
		}
		return nil, fmt.Errorf("filestore: read dir: %w", err)
	}

	listing := &Listing{Files: []FileEntry{}, Folders: []string{}}
	for _, entry := range entries {
		if entry.IsDir() {
			listing.Folders = append(listing.Folders, entry.Name())
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Entry disappeared between ReadDir and stat, skip it.
			continue
		}
		listing.Files = append(listing.Files, FileEntry{
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}
	return listing, nil
}

// Open resolves and opens a stored file for streaming. A missing path or a
// path that is not a regular file both map to ErrNotFound.
func (s *Store) Open(eventID string, folder safename.Folder, name string) (io.ReadSeekCloser, FileEntry, error) {
	path, err := s.filePath(eventID, folder, name)
	if err != nil {
		return nil, FileEntry{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, FileEntry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, FileEntry{}, fmt.Errorf("filestore: stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, FileEntry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, FileEntry{}, fmt.Errorf("filestore: open: %w", err)
	}
	return f, FileEntry{Name: name, Size: info.Size(), CreatedAt: info.ModTime()}, nil
}

// ReadAll buffers the whole file in memory. Used by the preview pipeline,
// which needs the full source to decode.
func (s *Store) ReadAll(eventID string, folder safename.Folder, name string) ([]byte, FileEntry, error) {
	f, entry, err := s.Open(eventID, folder, name)
	if err != nil {
		return nil, FileEntry{}, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, FileEntry{}, fmt.Errorf("filestore: read: %w", err)
	}
	return data, entry, nil
}

// Delete removes a single file permanently. Stat-then-unlink with the same
// not-found mapping as Open.
func (s *Store) Delete(eventID string, folder safename.Folder, name string) error {
	path, err := s.filePath(eventID, folder, name)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("filestore: stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("filestore: delete: %w", err)
	}
	return nil
}
