package cmd

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgkit-cli/internal/geometry"
	"github.com/AnyUserName/imgkit-cli/internal/plan"
)

var (
	version = "0.1.0"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "imgkit",
	Short: "Batch image pipeline with deterministic planning and caching",
	Long: `imgkit — turns a directory of source images into resized, re-encoded
variants plus a manifest describing them.

Planning is deterministic: a --check run predicts exactly the output
set a real run produces, so staleness can be answered without touching
a single pixel. Outputs are cached by content fingerprint and never
overwrite files imgkit did not produce itself.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an Execute error to the process exit code: 2 for
// whole-batch validation and collision errors, 1 for everything else.
func ExitCode(err error) int {
	var ve *geometry.ValidationError
	var ce *plan.CollisionError
	if errors.As(err, &ve) || errors.As(err, &ce) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgkit %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[imgkit] "+format+"\n", args...)
	}
}
