package encoder

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// runExternal encodes img by writing it as a temp PNG, invoking an
// external encoder binary via buildArgs(src, dst), and reading the
// result back. Shared by the cwebp and avifenc encoders; avoids CGO.
func runExternal(img image.Image, tool, dstExt string, buildArgs func(src, dst string) []string) ([]byte, error) {
	id := tempCounter.Add(1)

	srcFile, err := os.CreateTemp("", fmt.Sprintf("imgkit_src_%d_*.png", id))
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	dstFile, err := os.CreateTemp("", fmt.Sprintf("imgkit_dst_%d_*.%s", id, dstExt))
	if err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	if err := png.Encode(srcFile, img); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	srcFile.Close()

	cmd := exec.Command(tool, buildArgs(srcPath, dstPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", tool, err, string(out))
	}
	return os.ReadFile(dstPath)
}

// WebPEncoder encodes images to WebP by shelling out to cwebp.
// Install: brew install webp / apt install webp
type WebPEncoder struct {
	once      sync.Once
	available bool
	cwebpPath string
}

func (e *WebPEncoder) Format() string    { return "webp" }
func (e *WebPEncoder) Extension() string { return "webp" }

func (e *WebPEncoder) Available() bool {
	e.once.Do(func() {
		if path, err := exec.LookPath("cwebp"); err == nil {
			e.available = true
			e.cwebpPath = path
		}
	})
	return e.available
}

func (e *WebPEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if !e.Available() {
		return nil, fmt.Errorf("cwebp not found in PATH; install with: apt install webp")
	}
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	return runExternal(img, e.cwebpPath, "webp", func(src, dst string) []string {
		return []string{
			"-q", fmt.Sprintf("%d", quality),
			"-m", "6", // compression method (0=fast, 6=best)
			"-mt",
			"-quiet",
			src,
			"-o", dst,
		}
	})
}

// AVIFEncoder encodes images to AVIF by shelling out to avifenc.
// Install: brew install libavif / apt install libavif-bin
type AVIFEncoder struct {
	once        sync.Once
	available   bool
	avifencPath string
}

func (e *AVIFEncoder) Format() string    { return "avif" }
func (e *AVIFEncoder) Extension() string { return "avif" }

func (e *AVIFEncoder) Available() bool {
	e.once.Do(func() {
		if path, err := exec.LookPath("avifenc"); err == nil {
			e.available = true
			e.avifencPath = path
		}
	})
	return e.available
}

func (e *AVIFEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	if !e.Available() {
		return nil, fmt.Errorf("avifenc not found in PATH; install with: apt install libavif-bin")
	}
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	// avifenc uses an inverted 0-63 quality scale.
	avifQ := 63 - (quality * 63 / 100)
	return runExternal(img, e.avifencPath, "avif", func(src, dst string) []string {
		return []string{
			"--min", fmt.Sprintf("%d", avifQ),
			"--max", fmt.Sprintf("%d", avifQ),
			"--speed", "6",
			"-j", "all",
			src,
			dst,
		}
	})
}
