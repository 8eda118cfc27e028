// Package preview renders bounded in-memory image previews. Only a small
// set of raster formats is accepted; parameters are validated and capped
// before any pixel work happens, so an oversized request is rejected
// without touching the source bytes.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// Registers the webp decoder; webp sources are re-encoded as jpeg or png.
	_ "golang.org/x/image/webp"
)

// MaxDimension caps requested width and height to bound per-request memory
// and CPU.
const MaxDimension = 2048

const defaultQuality = 80

// Fit modes: Cover fills the whole target box and crops the overflow,
// Contain fits the image inside the box preserving aspect ratio.
const (
	FitCover   = "cover"
	FitContain = "contain"
)

// supportedExts lists the raster extensions the pipeline will decode.
var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// outputFormats maps requested output formats to the encoder and the
// response content type.
var outputFormats = map[string]struct {
	format      imaging.Format
	contentType string
}{
	"jpeg": {imaging.JPEG, "image/jpeg"},
	"jpg":  {imaging.JPEG, "image/jpeg"},
	"png":  {imaging.PNG, "image/png"},
	"gif":  {imaging.GIF, "image/gif"},
}

// Params are the optional transform parameters. Zero values mean "keep the
// source's property".
type Params struct {
	Width   int
	Height  int
	Quality int    // 1-100, jpeg only
	Format  string // jpeg, png or gif; empty derives from the source extension
	Fit     string // cover or contain; applies when both dimensions are set
}

// Image is a fully rendered preview held in memory. The output is a
// deterministic function of (source bytes, params), so callers may serve it
// with long-lived cache headers.
type Image struct {
	Data        []byte
	ContentType string
}

// Supported reports whether the filename carries a recognized raster
// extension.
func Supported(filename string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(filename))]
}

// validate rejects out-of-range parameters before any decoding work.
func (p Params) validate() error {
	if p.Width < 0 || p.Width > MaxDimension {
		return fmt.Errorf("%w: width must be between 0 and %d", ErrInvalidParams, MaxDimension)
	}
	if p.Height < 0 || p.Height > MaxDimension {
		return fmt.Errorf("%w: height must be between 0 and %d", ErrInvalidParams, MaxDimension)
	}
	if p.Quality < 0 || p.Quality > 100 {
		return fmt.Errorf("%w: quality must be between 1 and 100", ErrInvalidParams)
	}
	switch p.Fit {
	case "", FitCover, FitContain:
	default:
		return fmt.Errorf("%w: unknown fit mode %q", ErrInvalidParams, p.Fit)
	}
	if p.Format != "" {
		if _, ok := outputFormats[strings.ToLower(p.Format)]; !ok {
			return fmt.Errorf("%w: unknown output format %q", ErrInvalidParams, p.Format)
		}
	}
	return nil
}

// Render produces a preview of src. The source is decoded honoring embedded
// orientation metadata; the result never exceeds the source's native
// resolution. Decode failures are reported as ErrInvalidImage, not as a
// server fault.
func Render(src []byte, filename string, p Params) (*Image, error) {
	if !Supported(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(filename))
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img = resample(img, p)

	out := outputFor(filename, p.Format)
	quality := p.Quality
	if quality == 0 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, out.format, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("preview: encode: %w", err)
	}

	return &Image{Data: buf.Bytes(), ContentType: out.contentType}, nil
}

// resample applies the requested dimensions, clamped so the output never
// upscales past the source.
func resample(img image.Image, p Params) image.Image {
	bounds := img.Bounds()
	width := min(p.Width, bounds.Dx())
	height := min(p.Height, bounds.Dy())

	switch {
	case width > 0 && height > 0:
		if p.Fit == FitCover {
			return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
		}
		return imaging.Fit(img, width, height, imaging.Lanczos)
	case width > 0:
		return imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0:
		return imaging.Resize(img, 0, height, imaging.Lanczos)
	default:
		return img
	}
}

func outputFor(filename, requested string) struct {
	format      imaging.Format
	contentType string
} {
	if requested != "" {
		return outputFormats[strings.ToLower(requested)]
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return outputFormats["png"]
	case ".gif":
		return outputFormats["gif"]
	default:
		return outputFormats["jpeg"]
	}
}
