// Package imagemeta reads source image metadata without decoding pixel
// data: raw dimensions from the image header and the EXIF orientation
// tag. The rest of the tool consumes this as-is and never re-derives
// orientation on its own.
package imagemeta

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/rwcarlsen/goexif/exif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Meta describes one source image as read from disk.
type Meta struct {
	// Width and Height are the raw decoded dimensions, before any
	// orientation handling.
	Width  int
	Height int
	// Format is the decoded format name ("jpeg", "png", ...).
	Format string
	// Orientation is the EXIF orientation tag (1-8), or 0 when the
	// file carries no readable EXIF block.
	Orientation int
}

// Read probes the image header at path. Dimension errors are real
// errors; a missing or unreadable EXIF block is not (orientation 0).
func Read(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Meta{}, fmt.Errorf("decode header: %w", err)
	}

	m := Meta{Width: cfg.Width, Height: cfg.Height, Format: format}

	if _, err := f.Seek(0, 0); err != nil {
		return m, nil
	}
	m.Orientation = readOrientation(f)
	return m, nil
}

func readOrientation(f *os.File) int {
	x, err := exif.Decode(f)
	if err != nil {
		return 0
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 0
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 0
	}
	return v
}
