// Package pipeline drives the batch: scan, preflight planning, cached
// generation, manifest aggregation. Preflight is a synchronous
// whole-batch phase (including collision detection) that completes
// before any worker writes; check mode runs exactly the same preflight
// and stops there.
package pipeline

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/AnyUserName/imgkit-cli/internal/cache"
	"github.com/AnyUserName/imgkit-cli/internal/encoder"
	"github.com/AnyUserName/imgkit-cli/internal/geometry"
	"github.com/AnyUserName/imgkit-cli/internal/hasher"
	"github.com/AnyUserName/imgkit-cli/internal/imagemeta"
	"github.com/AnyUserName/imgkit-cli/internal/manifest"
	"github.com/AnyUserName/imgkit-cli/internal/plan"
	"github.com/AnyUserName/imgkit-cli/internal/profile"
)

// Config holds all parameters for one run.
type Config struct {
	InputDir  string
	OutputDir string
	Profile   profile.Profile
	Workers   int
	Verbose   bool
	CacheMode cache.Mode
}

// Pipeline orchestrates image processing.
type Pipeline struct {
	cfg      Config
	registry *encoder.Registry
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.CacheMode == "" {
		cfg.CacheMode = cache.ModeOn
	}
	return &Pipeline{
		cfg:      cfg,
		registry: encoder.NewRegistry(),
	}
}

// imageTask is one fully planned source image, ready for a worker.
type imageTask struct {
	src         Source
	contentHash string
	orientation int
	effWidth    int
	effHeight   int
	widths      []int // effective widths for this image, ascending
	plan        plan.ImagePlan
	fingerprint string
}

// preflight is everything that happens before any file is written:
// validation, scanning, metadata, geometry, path planning, collision
// detection and fingerprinting. Identical for check mode and real runs.
type preflight struct {
	tasks    []imageTask
	skipped  []skippedImage // images that failed metadata/hash reading
	encoders []encoder.Encoder
}

type skippedImage struct {
	src Source
	err error
}

func (p *Pipeline) runPreflight() (*preflight, error) {
	prof := p.cfg.Profile

	if err := geometry.ValidateWidths(prof.Widths); err != nil {
		return nil, err
	}
	if err := geometry.ValidateQuality(prof.Quality); err != nil {
		return nil, err
	}
	normalized := geometry.NormalizeWidths(prof.Widths)

	encs, err := p.registry.Resolve(prof.Formats)
	if err != nil {
		return nil, err
	}
	planFormats := make([]plan.Format, len(encs))
	formatNames := make([]string, len(encs))
	for i, enc := range encs {
		planFormats[i] = plan.Format{Name: enc.Format(), Ext: enc.Extension()}
		formatNames[i] = enc.Format()
	}

	sources, err := ScanImages(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	p.logf("found %d images", len(sources))

	pre := &preflight{encoders: encs}
	for _, src := range sources {
		contentHash, err := hasher.HashFile(src.AbsPath)
		if err != nil {
			pre.skipped = append(pre.skipped, skippedImage{src: src, err: fmt.Errorf("hash: %w", err)})
			continue
		}
		meta, err := imagemeta.Read(src.AbsPath)
		if err != nil {
			pre.skipped = append(pre.skipped, skippedImage{src: src, err: fmt.Errorf("metadata: %w", err)})
			continue
		}

		effW, effH := geometry.EffectiveDimensions(meta.Width, meta.Height, meta.Orientation)
		widths := geometry.EffectiveWidths(effW, normalized)
		if !prof.Responsive {
			// Non-responsive runs generate only the primary width.
			widths = widths[len(widths)-1:]
		}

		pre.tasks = append(pre.tasks, imageTask{
			src:         src,
			contentHash: contentHash,
			orientation: meta.Orientation,
			effWidth:    effW,
			effHeight:   effH,
			widths:      widths,
			plan:        plan.ForImage(src.RelPath, src.Key, widths, planFormats),
			fingerprint: cache.Fingerprint(src.RelPath, contentHash, cache.Options{
				Formats:    formatNames,
				Quality:    prof.Quality,
				Blur:       prof.Blur,
				BlurSigma:  prof.BlurSigma,
				Responsive: prof.Responsive,
				Widths:     normalized,
			}),
		})
	}

	plans := make([]plan.ImagePlan, len(pre.tasks))
	for i, t := range pre.tasks {
		plans[i] = t.plan
	}
	if err := plan.DetectCollisions(plans); err != nil {
		return nil, err
	}
	return pre, nil
}

// Run executes the full build and returns the manifest. Per-image
// failures are reported inside the manifest (Stats.Failed, per-entry
// errors); only whole-batch failures return an error.
func (p *Pipeline) Run() (*manifest.Manifest, error) {
	p.logf("%s", p.registry.String())

	pre, err := p.runPreflight()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	store := cache.Open(p.cfg.OutputDir, p.cfg.CacheMode)

	// Preflight is complete: every path is planned and collision-free.
	// Workers may now mutate.
	results := make([]processResult, len(pre.tasks))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, t := range pre.tasks {
		wg.Add(1)
		go func(idx int, task imageTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			p.logf("processing: %s", task.src.RelPath)
			results[idx] = p.processImage(task, pre.encoders, store)
		}(i, t)
	}
	wg.Wait()

	m := manifest.New(p.cfg.Profile.Name)
	var inputBytes int64
	var failed int
	for _, r := range results {
		m.Images[r.source] = r.entry
		inputBytes += r.inputBytes
		if r.hit {
			m.Stats.CacheHits++
		} else {
			m.Stats.CacheMisses++
		}
		if r.err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "[imgkit] error: %s: %v\n", r.source, r.err)
		}
	}
	for _, s := range pre.skipped {
		entry := manifest.NewEntry()
		entry.AddError(s.err.Error())
		m.Images[s.src.RelPath] = entry
		m.Stats.CacheMisses++
		failed++
		fmt.Fprintf(os.Stderr, "[imgkit] error: %s: %v\n", s.src.RelPath, s.err)
	}
	m.Stats.TotalInputBytes = inputBytes

	if err := store.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "[imgkit] warning: save cache: %v\n", err)
	}

	total := len(pre.tasks) + len(pre.skipped)
	if failed == total {
		return nil, fmt.Errorf("all %d images failed to process", total)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "[imgkit] warning: %d of %d images had errors\n", failed, total)
	}

	m.ComputeStats()
	return m, nil
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.cfg.Verbose {
		fmt.Fprintf(os.Stderr, "[imgkit] "+format+"\n", args...)
	}
}
