package preview

import "errors"

var (
	// ErrUnsupportedType indicates the filename's extension is not a
	// recognized raster format.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrInvalidParams indicates a transform parameter is out of range.
	// Checked before any decoding.
	ErrInvalidParams = errors.New("invalid preview parameters")

	// ErrInvalidImage indicates the source bytes could not be decoded.
	ErrInvalidImage = errors.New("invalid image")
)
