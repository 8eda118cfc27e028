package filestore

import (
	"fmt"
	"os"

	"github.com/dmitrymomot/eventdrop/pkg/safename"
)

// CreateFolder creates a named folder under the event's files root. The
// folder must not be root; an existing sibling with the same name is a
// conflict.
func (s *Store) CreateFolder(eventID string, folder safename.Folder) error {
	if folder.IsRoot() {
		return fmt.Errorf("%w: folder name is required", ErrInvalidFolder)
	}
	if err := s.EnsureFilesDir(eventID); err != nil {
		return err
	}

	dir, err := s.filesPath(eventID, folder)
	if err != nil {
		return err
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrFolderExists, folder)
		}
		return fmt.Errorf("filestore: create folder: %w", err)
	}
	return nil
}

// RenameFolder renames a folder, refusing to clobber an existing sibling.
func (s *Store) RenameFolder(eventID string, from, to safename.Folder) error {
	if from.IsRoot() || to.IsRoot() {
		return fmt.Errorf("%w: folder name is required", ErrInvalidFolder)
	}

	src, err := s.filesPath(eventID, from)
	if err != nil {
		return err
	}
	dst, err := s.filesPath(eventID, to)
	if err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, from)
		}
		return fmt.Errorf("filestore: stat folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, from)
	}

	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrFolderExists, to)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("filestore: stat target: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("filestore: rename folder: %w", err)
	}
	return nil
}

// DeleteFolder removes a named folder and everything in it.
func (s *Store) DeleteFolder(eventID string, folder safename.Folder) error {
	if folder.IsRoot() {
		return fmt.Errorf("%w: folder name is required", ErrInvalidFolder)
	}

	dir, err := s.filesPath(eventID, folder)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, folder)
		}
		return fmt.Errorf("filestore: stat folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotFound, folder)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("filestore: delete folder: %w", err)
	}
	return nil
}
