package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgkit-cli/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <manifest_path>",
	Short: "Validate an imgkit manifest and check referenced files exist",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	manifestPath := args[0]

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	baseDir := filepath.Dir(manifestPath)
	errs := validateManifest(&m, baseDir)

	if len(errs) == 0 {
		fmt.Println("  ✓ Manifest is valid")
		fmt.Printf("  ✓ %d images, %d outputs — all files present\n",
			m.Stats.TotalImages, m.Stats.TotalOutputs)
		return nil
	}

	fmt.Printf("  ✗ Manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

// validateManifest checks schema fields, the structural invariants
// (primary pointer, ascending variants, case-insensitive path
// uniqueness) and that every referenced file exists with its recorded
// size.
func validateManifest(m *manifest.Manifest, baseDir string) []string {
	var errs []string

	if m.Version != manifest.SupportedVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}

	seenPaths := map[string]string{} // folded path -> image that claimed it

	for source, entry := range m.Images {
		if len(entry.Errors) > 0 {
			// Failed images may legitimately be incomplete.
			continue
		}
		if len(entry.Outputs) == 0 {
			errs = append(errs, fmt.Sprintf("image %q: no outputs", source))
			continue
		}

		for format, primary := range entry.Outputs {
			if primary.Path == "" {
				errs = append(errs, fmt.Sprintf("image %q format %q: primary output has no path", source, format))
				continue
			}

			// Primary must be the largest variant when variants are
			// present; variants themselves must ascend by width.
			if entry.Variants != nil {
				vs, ok := entry.Variants[format]
				if !ok || len(vs) == 0 {
					errs = append(errs, fmt.Sprintf("image %q format %q: outputs present but variants missing", source, format))
					continue
				}
				for i := 1; i < len(vs); i++ {
					if vs[i].Width <= vs[i-1].Width {
						errs = append(errs, fmt.Sprintf("image %q format %q: variants not ascending at index %d", source, format, i))
					}
				}
				if last := vs[len(vs)-1]; last.Path != primary.Path || last.Width != primary.Width {
					errs = append(errs, fmt.Sprintf("image %q format %q: primary %q is not the largest variant %q",
						source, format, primary.Path, last.Path))
				}
			}
		}

		// Collect every path once for uniqueness and file checks.
		var outputs []manifest.Output
		if entry.Variants != nil {
			for _, vs := range entry.Variants {
				outputs = append(outputs, vs...)
			}
		} else {
			for _, o := range entry.Outputs {
				outputs = append(outputs, o)
			}
		}

		for _, o := range outputs {
			folded := strings.ToLower(o.Path)
			if owner, ok := seenPaths[folded]; ok {
				errs = append(errs, fmt.Sprintf("image %q: path %q collides with image %q (case-insensitive)", source, o.Path, owner))
			}
			seenPaths[folded] = source

			fullPath := filepath.Join(baseDir, filepath.FromSlash(o.Path))
			info, err := os.Stat(fullPath)
			if err != nil {
				errs = append(errs, fmt.Sprintf("image %q: file not found: %s", source, o.Path))
			} else if o.Size > 0 && info.Size() != o.Size {
				errs = append(errs, fmt.Sprintf("image %q: size mismatch for %s: manifest=%d, disk=%d",
					source, o.Path, o.Size, info.Size()))
			}
		}
	}

	if m.Stats.TotalImages != len(m.Images) {
		errs = append(errs, fmt.Sprintf("stats.total_images mismatch: %d != %d", m.Stats.TotalImages, len(m.Images)))
	}

	return errs
}
