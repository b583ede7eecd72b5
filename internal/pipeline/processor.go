package pipeline

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/AnyUserName/imgkit-cli/internal/cache"
	"github.com/AnyUserName/imgkit-cli/internal/encoder"
	"github.com/AnyUserName/imgkit-cli/internal/hasher"
	"github.com/AnyUserName/imgkit-cli/internal/manifest"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// processResult holds the result of processing a single source image.
type processResult struct {
	source     string
	entry      manifest.Entry
	inputBytes int64
	hit        bool
	err        error
}

// formatWidth keys one planned output inside a single image.
type formatWidth struct {
	format string
	width  int
}

// processImage handles one planned image: cache lookup, or decode,
// orient, resize, encode and write every planned output. The paths
// written are exactly the planned ones; nothing is derived here.
func (p *Pipeline) processImage(t imageTask, encs []encoder.Encoder, store *cache.Store) processResult {
	result := processResult{source: t.src.RelPath, inputBytes: t.src.Size}

	// Cache hit: reuse the prior descriptors verbatim, no codec work.
	if rec, ok := store.Lookup(t.fingerprint); ok {
		p.logf("cache hit: %s", t.src.RelPath)
		result.entry = p.entryFromDescs(rec.Outputs)
		result.hit = true
		return result
	}

	entry := manifest.NewEntry()
	fail := func(err error) processResult {
		entry.AddError(err.Error())
		result.entry = entry
		result.err = err
		return result
	}

	f, err := os.Open(t.src.AbsPath)
	if err != nil {
		return fail(fmt.Errorf("open: %w", err))
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fail(fmt.Errorf("decode: %w", err))
	}

	// Pixels follow the orientation already resolved at preflight; the
	// encoders receive final, display-oriented images.
	img = orient(img, t.orientation)

	// Index the planned paths; generation must land on exactly these.
	planned := make(map[formatWidth]string, len(t.plan.Outputs))
	for _, o := range t.plan.Outputs {
		planned[formatWidth{o.Format, o.Width}] = o.Path
	}

	var descs []cache.OutputDesc
	for _, w := range t.widths {
		h := int(float64(t.effHeight) * float64(w) / float64(t.effWidth))
		if h < 1 {
			h = 1
		}
		resized := imaging.Resize(img, w, h, imaging.Lanczos)
		if p.cfg.Profile.Blur {
			resized = imaging.Blur(resized, p.cfg.Profile.BlurSigma)
		}

		for _, enc := range encs {
			relPath := planned[formatWidth{enc.Format(), w}]

			if err := store.VerifyOwnership(relPath); err != nil {
				return fail(err)
			}

			data, err := enc.Encode(resized, p.cfg.Profile.Quality)
			if err != nil {
				return fail(fmt.Errorf("encode %s@%d: %w", enc.Format(), w, err))
			}

			outPath := filepath.Join(p.cfg.OutputDir, filepath.FromSlash(relPath))
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fail(fmt.Errorf("create dir: %w", err))
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fail(fmt.Errorf("write %s: %w", relPath, err))
			}
			store.MarkOwned(relPath)

			descs = append(descs, cache.OutputDesc{
				Format: enc.Format(),
				Width:  w,
				Height: h,
				Path:   relPath,
				Size:   int64(len(data)),
				Hash:   hasher.ContentHash(data, 16),
			})
		}
	}

	// Only a fully generated image is recorded; a partial failure above
	// leaves the fingerprint a miss for the next run.
	store.Record(t.fingerprint, t.src.RelPath, descs)
	result.entry = p.entryFromDescs(descs)
	return result
}

// entryFromDescs groups output descriptors per format into a manifest
// entry. AddFormat establishes ascending width order and derives the
// primary pointer.
func (p *Pipeline) entryFromDescs(descs []cache.OutputDesc) manifest.Entry {
	byFormat := make(map[string][]manifest.Output)
	for _, d := range descs {
		byFormat[d.Format] = append(byFormat[d.Format], manifest.Output{
			Width:  d.Width,
			Height: d.Height,
			Path:   d.Path,
			Size:   d.Size,
			Hash:   d.Hash,
		})
	}
	entry := manifest.NewEntry()
	for format, outs := range byFormat {
		entry.AddFormat(format, outs, p.cfg.Profile.Responsive)
	}
	return entry
}

// orient maps decoded pixels through the EXIF orientation tag so that
// downstream resizing works on display-oriented images. Mirrors the
// width/height swap geometry.EffectiveDimensions performs for tags 5-8.
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
