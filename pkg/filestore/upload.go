package filestore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/eventdrop/pkg/event"
	"github.com/dmitrymomot/eventdrop/pkg/safename"
)

// StagedFile is an upload sitting in the event's uploads/ staging area,
// waiting to be committed into files/.
type StagedFile struct {
	Path         string
	OriginalName string
}

// StageUpload writes the reader's content into the staging area under a
// random name. The original filename travels alongside so placement can
// derive the destination name from it later.
func (s *Store) StageUpload(eventID string, r io.Reader, originalName string) (StagedFile, error) {
	if !event.ValidID(eventID) {
		return StagedFile{}, fmt.Errorf("%w: %q", event.ErrInvalidID, eventID)
	}

	stagingDir := filepath.Join(s.root, eventID, uploadsDir)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return StagedFile{}, fmt.Errorf("filestore: create staging dir: %w", err)
	}

	path := filepath.Join(stagingDir, uuid.NewString())
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StagedFile{}, fmt.Errorf("filestore: create staged file: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return StagedFile{}, fmt.Errorf("filestore: write staged file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return StagedFile{}, fmt.Errorf("filestore: close staged file: %w", err)
	}

	return StagedFile{Path: path, OriginalName: originalName}, nil
}

// DiscardStaged removes staged files that will not be committed, e.g. when
// the request fails after staging. Best-effort cleanup primitive for
// callers; missing files are ignored.
func (s *Store) DiscardStaged(staged ...StagedFile) {
	for _, sf := range staged {
		_ = os.Remove(sf.Path)
	}
}

// PlaceUploads commits staged files into the destination folder. The
// destination name is derived from the original filename; name collisions
// are resolved with an incrementing numeric suffix (name_1.ext, name_2.ext,
// ...). Each candidate is claimed with an exclusive create that atomically
// fails if the target appeared in the meantime, so two concurrent uploads
// choosing the same free name cannot overwrite each other. The staged copy
// is removed after a successful placement.
func (s *Store) PlaceUploads(eventID string, folder safename.Folder, staged []StagedFile) ([]FileEntry, error) {
	dir, err := s.filesPath(eventID, folder)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create destination dir: %w", err)
	}

	placed := make([]FileEntry, 0, len(staged))
	for _, sf := range staged {
		base := sanitizeFilename(sf.OriginalName)
		if !safename.IsSafeFilename(base) {
			return placed, fmt.Errorf("%w: %q", ErrInvalidFilename, sf.OriginalName)
		}

		name, err := s.placeOne(dir, sf.Path, base)
		if err != nil {
			return placed, err
		}
		_ = os.Remove(sf.Path)

		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			return placed, fmt.Errorf("filestore: stat placed file: %w", err)
		}
		placed = append(placed, FileEntry{Name: name, Size: info.Size(), CreatedAt: info.ModTime()})
	}
	return placed, nil
}

// placeOne copies the staged file under the first free candidate name. An
// exclusive create closes the check-then-act race: if another request
// claims the same candidate between our attempts, the create fails with
// fs.ErrExist and the loop moves on to the next suffix.
func (s *Store) placeOne(dir, stagedPath, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; ; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}

		err := copyExclusive(stagedPath, filepath.Join(dir, name))
		if err == nil {
			return name, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", err
	}
}

// copyExclusive copies src to dst, failing atomically if dst already
// exists. On a write error the partial destination is removed.
func copyExclusive(src, dst string) error {
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fs.ErrExist
		}
		return fmt.Errorf("filestore: create destination: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("filestore: open staged file: %w", err)
	}
	defer func() { _ = in.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("filestore: copy: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("filestore: close destination: %w", err)
	}
	return nil
}

// sanitizeFilename strips path components and control bytes from a
// client-supplied original filename, leaving only a base name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\x00", "")

	if name == "." || name == ".." || name == "" || name == "/" {
		name = "unnamed"
	}
	return name
}
