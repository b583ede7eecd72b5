package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgkit-cli/internal/cache"
	"github.com/AnyUserName/imgkit-cli/internal/manifest"
	"github.com/AnyUserName/imgkit-cli/internal/pipeline"
	"github.com/AnyUserName/imgkit-cli/internal/profile"
)

// ManifestFileName is the manifest written into the output directory.
const ManifestFileName = "imgkit.manifest.json"

var (
	buildOutDir     string
	buildProfile    string
	buildConfig     string
	buildWorkers    int
	buildWidths     []int
	buildFormats    []string
	buildQuality    int
	buildBlur       bool
	buildBlurSigma  float64
	buildResponsive bool
	buildCacheMode  string
	buildCheck      bool
)

var buildCmd = &cobra.Command{
	Use:   "build <input_dir>",
	Short: "Process images and generate planned variants + manifest",
	Long: `Scans the input directory for images (png, jpg, jpeg, webp, gif, bmp,
tiff), plans the full output set up front (width normalization, upscale
avoidance, case-insensitive collision detection), then generates only
what the cache does not already cover.

Output paths follow <key>-<width>.<ext>, relative to the input root.
With --check nothing is written: the exit code reports whether a real
run is needed (0 up-to-date, 1 needs-run, 2 validation error).`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutDir, "out-dir", "o", "./imgkit_out", "output directory")
	buildCmd.Flags().StringVarP(&buildProfile, "profile", "p", profile.DefaultName,
		fmt.Sprintf("processing profile (%s)", strings.Join(profile.Names(), ", ")))
	buildCmd.Flags().StringVar(&buildConfig, "config", "", "YAML file with additional profiles")
	buildCmd.Flags().IntVarP(&buildWorkers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	buildCmd.Flags().IntSliceVar(&buildWidths, "widths", nil, "requested widths (overrides profile)")
	buildCmd.Flags().StringSliceVar(&buildFormats, "formats", nil, "output formats (overrides profile)")
	buildCmd.Flags().IntVarP(&buildQuality, "quality", "q", 0, "quality 1-100 (0 = profile default)")
	buildCmd.Flags().BoolVar(&buildBlur, "blur", false, "blur outputs (placeholder generation)")
	buildCmd.Flags().Float64Var(&buildBlurSigma, "blur-sigma", 4, "blur strength when --blur is set")
	buildCmd.Flags().BoolVar(&buildResponsive, "responsive", true, "generate every eligible width, not just the largest")
	buildCmd.Flags().StringVar(&buildCacheMode, "cache", "on", "cache mode: on, off or rebuild")
	buildCmd.Flags().BoolVar(&buildCheck, "check", false, "report staleness without writing anything")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	start := time.Now()

	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	absOutput, err := filepath.Abs(buildOutDir)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	prof, err := profile.Load(buildProfile, buildConfig)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("widths") {
		prof.Widths = buildWidths
	}
	if cmd.Flags().Changed("formats") {
		prof.Formats = buildFormats
	}
	if buildQuality > 0 {
		prof.Quality = buildQuality
	}
	if cmd.Flags().Changed("blur") {
		prof.Blur = buildBlur
	}
	if cmd.Flags().Changed("blur-sigma") {
		prof.BlurSigma = buildBlurSigma
	}
	if cmd.Flags().Changed("responsive") {
		prof.Responsive = buildResponsive
	}

	mode, err := cache.ParseMode(buildCacheMode)
	if err != nil {
		return err
	}

	logVerbose("input:   %s", absInput)
	logVerbose("output:  %s", absOutput)
	logVerbose("profile: %s (widths=%v, formats=%v, quality=%d)",
		prof.Name, prof.Widths, prof.Formats, prof.Quality)

	p := pipeline.New(pipeline.Config{
		InputDir:  absInput,
		OutputDir: absOutput,
		Profile:   prof,
		Workers:   buildWorkers,
		Verbose:   verbose,
		CacheMode: mode,
	})

	if buildCheck {
		return runCheck(p, absInput, prof, mode)
	}

	m, err := p.Run()
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	manifestPath := filepath.Join(absOutput, ManifestFileName)
	if err := manifest.WriteJSON(m, manifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	printBuildReport(m, time.Since(start))

	if m.Stats.Failed > 0 {
		return fmt.Errorf("%d of %d images failed", m.Stats.Failed, m.Stats.TotalImages)
	}
	return nil
}

// runCheck evaluates staleness without mutating anything and prints the
// exact command that would perform the needed run.
func runCheck(p *pipeline.Pipeline, absInput string, prof profile.Profile, mode cache.Mode) error {
	res, err := p.Check()
	if err != nil {
		return err
	}

	if res.UpToDate {
		fmt.Printf("up-to-date: %d images, all outputs cached and intact\n", res.Total)
		return nil
	}

	fmt.Printf("needs-run: %d of %d images stale\n", len(res.Stale), res.Total)
	for _, s := range res.Stale {
		fmt.Printf("  %s: %s\n", s.Source, s.Reason)
	}
	fmt.Println()
	fmt.Printf("run:\n  %s\n", reproductionCommand(absInput, prof, mode))
	os.Exit(1)
	return nil
}

// reproductionCommand rebuilds the full build invocation from the
// effective options, so automation can re-run it verbatim.
func reproductionCommand(absInput string, prof profile.Profile, mode cache.Mode) string {
	widths := make([]string, len(prof.Widths))
	for i, w := range prof.Widths {
		widths[i] = strconv.Itoa(w)
	}
	parts := []string{
		"imgkit build", absInput,
		"--out-dir", buildOutDir,
		"--widths", strings.Join(widths, ","),
		"--formats", strings.Join(prof.Formats, ","),
		"--quality", strconv.Itoa(prof.Quality),
		"--cache", string(mode),
	}
	if prof.Blur {
		parts = append(parts, "--blur", "--blur-sigma", strconv.FormatFloat(prof.BlurSigma, 'g', -1, 64))
	}
	if !prof.Responsive {
		parts = append(parts, "--responsive=false")
	}
	return strings.Join(parts, " ")
}

func printBuildReport(m *manifest.Manifest, elapsed time.Duration) {
	s := m.Stats
	fmt.Println()
	fmt.Printf("  Images:      %d\n", s.TotalImages)
	fmt.Printf("  Outputs:     %d\n", s.TotalOutputs)
	fmt.Printf("  Cache:       %d hits, %d misses\n", s.CacheHits, s.CacheMisses)
	fmt.Printf("  Input size:  %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size: %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		fmt.Printf("  Ratio:       %.1f%% of original\n",
			float64(s.TotalOutputBytes)/float64(s.TotalInputBytes)*100)
	}
	if s.Failed > 0 {
		fmt.Printf("  Failed:      %d images\n", s.Failed)
	}
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	// Top 10 heaviest images by generated bytes.
	type imageSize struct {
		source string
		bytes  int64
	}
	var items []imageSize
	for source, e := range m.Images {
		var sum int64
		if e.Variants != nil {
			for _, vs := range e.Variants {
				for _, v := range vs {
					sum += v.Size
				}
			}
		} else {
			for _, o := range e.Outputs {
				sum += o.Size
			}
		}
		items = append(items, imageSize{source, sum})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].bytes > items[j].bytes })
	n := len(items)
	if n > 10 {
		n = 10
	}
	if n > 0 {
		fmt.Printf("  Top %d heaviest outputs:\n", n)
		for _, it := range items[:n] {
			fmt.Printf("    %-40s %8s\n", truncKey(it.source, 40), formatBytes(it.bytes))
		}
		fmt.Println()
	}

	fmt.Printf("  Manifest:    %s\n", ManifestFileName)
	fmt.Println()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
