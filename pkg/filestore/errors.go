package filestore

import "errors"

var (
	// ErrInvalidFilename indicates a client-supplied filename failed the
	// safety validator.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrInvalidFolder indicates the operation needs a named folder and got
	// the root folder, or the folder name failed validation upstream.
	ErrInvalidFolder = errors.New("invalid folder")

	// ErrNotFound indicates the file or folder does not exist, or the path
	// is not a regular file. Expected outcome, callers branch on it.
	ErrNotFound = errors.New("file not found")

	// ErrFolderExists indicates a folder create or rename target collides
	// with an existing sibling.
	ErrFolderExists = errors.New("folder already exists")

	// ErrNoFiles indicates an archive was requested for a directory that
	// does not exist.
	ErrNoFiles = errors.New("no files available")
)
