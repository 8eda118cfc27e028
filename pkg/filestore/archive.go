package filestore

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrymomot/eventdrop/pkg/safename"
)

// archiveCompressionLevel trades CPU for throughput; archives are built per
// request and streamed, so a fast level keeps downloads responsive.
const archiveCompressionLevel = flate.BestSpeed

// WriteZip streams a zip archive of the folder's contents, subfolders
// included, to w. The archive is produced incrementally; nothing is
// buffered to disk. A folder that does not exist fails with ErrNoFiles
// rather than producing an empty archive.
func (s *Store) WriteZip(w io.Writer, eventID string, folder safename.Folder) error {
	dir, err := s.filesPath(eventID, folder)
	if err != nil {
		return err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoFiles, eventID)
		}
		return fmt.Errorf("filestore: stat archive source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoFiles, eventID)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, archiveCompressionLevel)
	})

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			// Directory entries keep empty folders visible in the archive.
			_, err := zw.Create(rel + "/")
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = rel
		header.Method = zip.Deflate

		dst, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		_, err = io.Copy(dst, src)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("filestore: build archive: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("filestore: finalize archive: %w", err)
	}
	return nil
}
