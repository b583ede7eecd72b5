package pipeline

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/imgkit-cli/internal/cache"
	"github.com/AnyUserName/imgkit-cli/internal/geometry"
	"github.com/AnyUserName/imgkit-cli/internal/plan"
	"github.com/AnyUserName/imgkit-cli/internal/profile"
)

// writePNG writes a w x h gradient PNG at path. The tint keeps file
// contents distinct between test images, so content-identity tests
// never depend on two fixtures accidentally hashing alike.
func writePNG(t *testing.T, path string, w, h int, tint uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), tint, 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testConfig(input, output string) Config {
	return Config{
		InputDir:  input,
		OutputDir: output,
		Profile: profile.Profile{
			Name:       "test",
			Widths:     []int{30, 50, 200},
			Formats:    []string{"png"},
			Quality:    80,
			Responsive: true,
		},
		Workers:   2,
		CacheMode: cache.ModeOn,
	}
}

func TestRunGeneratesPlannedOutputs(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)
	writePNG(t, filepath.Join(input, "sub", "b.png"), 60, 40, 20)

	m, err := New(testConfig(input, output)).Run()
	require.NoError(t, err)

	require.Len(t, m.Images, 2)
	assert.Equal(t, 0, m.Stats.CacheHits)
	assert.Equal(t, 2, m.Stats.CacheMisses)
	assert.Equal(t, 0, m.Stats.Failed)

	// a.png is 100 wide: 30 and 50 are eligible, 200 is not.
	a := m.Images["a.png"]
	require.Contains(t, a.Outputs, "png")
	assert.Equal(t, "a-50.png", a.Outputs["png"].Path)
	require.Len(t, a.Variants["png"], 2)
	assert.Equal(t, "a-30.png", a.Variants["png"][0].Path)
	assert.Equal(t, "a-50.png", a.Variants["png"][1].Path)

	// Primary is the maximum-width variant.
	vs := a.Variants["png"]
	assert.Equal(t, vs[len(vs)-1].Path, a.Outputs["png"].Path)

	// Nested sources keep their directory in the planned path.
	b := m.Images["sub/b.png"]
	assert.Equal(t, "sub/b-50.png", b.Outputs["png"].Path)

	// Every manifest path exists under the physical output root.
	for _, entry := range m.Images {
		for _, outs := range entry.Variants {
			for _, o := range outs {
				info, err := os.Stat(filepath.Join(output, filepath.FromSlash(o.Path)))
				require.NoError(t, err, o.Path)
				assert.Equal(t, o.Size, info.Size())
			}
		}
	}
}

func TestRunSecondTimeIsAllCacheHits(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)
	writePNG(t, filepath.Join(input, "b.png"), 60, 40, 20)

	cfg := testConfig(input, output)
	first, err := New(cfg).Run()
	require.NoError(t, err)
	require.Equal(t, 2, first.Stats.CacheMisses)

	second, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, second.Stats.CacheHits)
	assert.Equal(t, 0, second.Stats.CacheMisses)

	// Hit entries reuse the recorded descriptors verbatim.
	assert.Equal(t, first.Images["a.png"].Outputs, second.Images["a.png"].Outputs)
	assert.Equal(t, first.Images["a.png"].Variants, second.Images["a.png"].Variants)
}

func TestRunIdenticalContentSources(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	// Same dimensions and same tint: the two files are byte-identical,
	// but they are distinct sources with distinct planned paths.
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)
	writePNG(t, filepath.Join(input, "b.png"), 100, 80, 10)

	cfg := testConfig(input, output)
	first, err := New(cfg).Run()
	require.NoError(t, err)
	require.Equal(t, 0, first.Stats.Failed)
	assert.Equal(t, 2, first.Stats.CacheMisses)

	second, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 2, second.Stats.CacheHits, "each source keeps its own record")

	// Each entry points at outputs under its own key, never the twin's.
	assert.Equal(t, "a-50.png", second.Images["a.png"].Outputs["png"].Path)
	assert.Equal(t, "b-50.png", second.Images["b.png"].Outputs["png"].Path)
	for _, name := range []string{"a-30.png", "a-50.png", "b-30.png", "b-50.png"} {
		_, err := os.Stat(filepath.Join(output, name))
		require.NoError(t, err, name)
	}
}

func TestRunWidthChangeInvalidatesCache(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)

	cfg := testConfig(input, output)
	_, err := New(cfg).Run()
	require.NoError(t, err)

	// Adding a width changes the fingerprint and forces regeneration.
	cfg.Profile.Widths = []int{30, 50, 80, 200}
	m, err := New(cfg).Run()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Stats.CacheMisses)
	assert.Equal(t, 0, m.Stats.CacheHits)
	require.Len(t, m.Images["a.png"].Variants["png"], 3)
}

func TestRunFallbackWidth(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "tiny.png"), 40, 30, 30)

	cfg := testConfig(input, output)
	cfg.Profile.Widths = []int{320, 640}
	m, err := New(cfg).Run()
	require.NoError(t, err)

	// No requested width fits: the source's own width is the sole
	// fallback, never an upscale.
	entry := m.Images["tiny.png"]
	require.Len(t, entry.Variants["png"], 1)
	assert.Equal(t, 40, entry.Variants["png"][0].Width)
	assert.Equal(t, "tiny-40.png", entry.Outputs["png"].Path)
}

func TestRunNonResponsiveOmitsVariants(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)

	cfg := testConfig(input, output)
	cfg.Profile.Responsive = false
	m, err := New(cfg).Run()
	require.NoError(t, err)

	entry := m.Images["a.png"]
	assert.Nil(t, entry.Variants)
	assert.Equal(t, "a-50.png", entry.Outputs["png"].Path)

	// Only the primary width was generated.
	_, err = os.Stat(filepath.Join(output, "a-30.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunOwnershipConflict(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)
	writePNG(t, filepath.Join(input, "b.png"), 100, 80, 20)

	// A foreign file already sits at one of a.png's planned paths.
	foreign := filepath.Join(output, "a-30.png")
	require.NoError(t, os.WriteFile(foreign, []byte("not ours"), 0o644))

	m, err := New(testConfig(input, output)).Run()
	require.NoError(t, err, "one conflicting image must not abort the batch")

	assert.Equal(t, 1, m.Stats.Failed)
	assert.NotEmpty(t, m.Images["a.png"].Errors)
	assert.Empty(t, m.Images["b.png"].Errors)
	assert.NotEmpty(t, m.Images["b.png"].Outputs)

	// The foreign file was not clobbered.
	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	assert.Equal(t, "not ours", string(data))
}

func TestRunCollisionAbortsBeforeAnyWrite(t *testing.T) {
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")
	writePNG(t, filepath.Join(input, "Photo.PNG"), 100, 80, 40)
	writePNG(t, filepath.Join(input, "photo.png"), 100, 80, 50)

	_, err := New(testConfig(input, output)).Run()
	var ce *plan.CollisionError
	require.ErrorAs(t, err, &ce)

	// Preflight failed, so the output directory was never created.
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunValidatesWidthsFirst(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)

	cfg := testConfig(input, output)
	cfg.Profile.Widths = nil
	_, err := New(cfg).Run()
	var ve *geometry.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRunValidatesQuality(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)

	cfg := testConfig(input, output)
	cfg.Profile.Quality = 150
	_, err := New(cfg).Run()
	var ve *geometry.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "quality")
}

func TestCheckRoundtrip(t *testing.T) {
	input, output := t.TempDir(), t.TempDir()
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)
	writePNG(t, filepath.Join(input, "b.png"), 60, 40, 20)

	cfg := testConfig(input, output)

	// Before any run everything is stale.
	res, err := New(cfg).Check()
	require.NoError(t, err)
	assert.False(t, res.UpToDate)
	assert.Len(t, res.Stale, 2)

	_, err = New(cfg).Run()
	require.NoError(t, err)

	// Unchanged inputs and options: up-to-date.
	res, err = New(cfg).Check()
	require.NoError(t, err)
	assert.True(t, res.UpToDate)
	assert.Equal(t, 2, res.Hits)

	// Any fingerprint-affecting option change flips it back to stale.
	changed := cfg
	changed.Profile.Quality = 50
	res, err = New(changed).Check()
	require.NoError(t, err)
	assert.False(t, res.UpToDate)

	// A deleted tracked output also counts as stale.
	require.NoError(t, os.Remove(filepath.Join(output, "a-30.png")))
	res, err = New(cfg).Check()
	require.NoError(t, err)
	assert.False(t, res.UpToDate)
	require.Len(t, res.Stale, 1)
	assert.Equal(t, "a.png", res.Stale[0].Source)
}

func TestCheckWritesNothing(t *testing.T) {
	input := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")
	writePNG(t, filepath.Join(input, "a.png"), 100, 80, 10)

	_, err := New(testConfig(input, output)).Check()
	require.NoError(t, err)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestScanImagesDeterministicOrder(t *testing.T) {
	input := t.TempDir()
	writePNG(t, filepath.Join(input, "z.png"), 10, 10, 60)
	writePNG(t, filepath.Join(input, "a.png"), 10, 10, 61)
	writePNG(t, filepath.Join(input, "m", "x.png"), 10, 10, 62)
	require.NoError(t, os.WriteFile(filepath.Join(input, "notes.txt"), []byte("skip"), 0o644))

	sources, err := ScanImages(input)
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "a.png", sources[0].RelPath)
	assert.Equal(t, "m/x.png", sources[1].RelPath)
	assert.Equal(t, "z.png", sources[2].RelPath)
	assert.Equal(t, "m/x", sources[1].Key)
}

func TestScanImagesUppercaseExtension(t *testing.T) {
	input := t.TempDir()
	writePNG(t, filepath.Join(input, "Photo.PNG"), 10, 10, 40)

	sources, err := ScanImages(input)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	// The extension is stripped case-insensitively: the key must be
	// bare "Photo" so case-folded collision detection can see it.
	assert.Equal(t, "Photo", sources[0].Key)
	assert.Equal(t, "png", sources[0].Format)
}
