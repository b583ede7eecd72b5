package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgkit-cli/internal/manifest"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for a built output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, ManifestFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	printStats(&m)
	return nil
}

func printStats(m *manifest.Manifest) {
	fmt.Println()
	fmt.Printf("  Manifest version: %d\n", m.Version)
	fmt.Printf("  Generated:        %s\n", m.GeneratedAt)
	fmt.Printf("  Profile:          %s\n", m.Profile)
	fmt.Println()

	s := m.Stats
	fmt.Printf("  Total images:     %d\n", s.TotalImages)
	fmt.Printf("  Total outputs:    %d\n", s.TotalOutputs)
	fmt.Printf("  Cache:            %d hits, %d misses\n", s.CacheHits, s.CacheMisses)
	fmt.Printf("  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Printf("  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		fmt.Printf("  Compression:      %.1f%% of original\n",
			float64(s.TotalOutputBytes)/float64(s.TotalInputBytes)*100)
	}
	fmt.Println()

	// Per-format breakdown.
	formatStats := map[string]struct {
		count int
		bytes int64
	}{}
	widthStats := map[int]int{}
	forEachOutput(m, func(format string, o manifest.Output) {
		fs := formatStats[format]
		fs.count++
		fs.bytes += o.Size
		formatStats[format] = fs
		widthStats[o.Width]++
	})

	fmt.Println("  Format breakdown:")
	for _, f := range []string{"avif", "webp", "jpeg", "png"} {
		if fs, ok := formatStats[f]; ok {
			fmt.Printf("    %-6s  %4d files  %s\n", f, fs.count, formatBytes(fs.bytes))
		}
	}
	fmt.Println()

	var widths []int
	for w := range widthStats {
		widths = append(widths, w)
	}
	sort.Ints(widths)
	fmt.Println("  Width breakdown:")
	for _, w := range widths {
		fmt.Printf("    %5dpx  %4d outputs\n", w, widthStats[w])
	}
	fmt.Println()

	var failed []string
	for source, e := range m.Images {
		if len(e.Errors) > 0 {
			failed = append(failed, source)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		fmt.Printf("  Failed images (%d):\n", len(failed))
		for _, source := range failed {
			for _, msg := range m.Images[source].Errors {
				fmt.Printf("    ⚠ %s: %s\n", source, msg)
			}
		}
		fmt.Println()
	}
}

// forEachOutput visits every generated output once, preferring the
// variant lists when present.
func forEachOutput(m *manifest.Manifest, fn func(format string, o manifest.Output)) {
	for _, e := range m.Images {
		if e.Variants != nil {
			for format, vs := range e.Variants {
				for _, v := range vs {
					fn(format, v)
				}
			}
			continue
		}
		for format, o := range e.Outputs {
			fn(format, o)
		}
	}
}
