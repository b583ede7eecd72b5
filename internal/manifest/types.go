package manifest

// Manifest is the top-level output of an imgkit build.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Profile     string           `json:"profile"`
	// BasePath anchors every entry path: all paths are relative to the
	// input root, independent of where outputs are physically written.
	BasePath string           `json:"base_path"`
	Images   map[string]Entry `json:"images"`
	Stats    Stats            `json:"stats"`
}

// Entry describes all generated outputs for one source image.
type Entry struct {
	// Outputs points at the primary (largest-width) variant per format.
	// Always derived from the variant list, never resolved separately.
	Outputs map[string]Output `json:"outputs"`
	// Variants lists every generated variant per format, ascending by
	// width. Absent when responsive generation is disabled; consumers
	// must treat it as optional.
	Variants map[string][]Output `json:"variants,omitempty"`
	// Errors collects per-image failures (ownership conflicts, codec
	// errors). A non-empty list means Outputs may be incomplete.
	Errors []string `json:"errors,omitempty"`
}

// Output is one generated file.
type Output struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash,omitempty"`
}

// Stats aggregates run metrics.
type Stats struct {
	TotalImages      int   `json:"total_images"`
	TotalOutputs     int   `json:"total_outputs"`
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	CacheHits        int   `json:"cache_hits"`
	CacheMisses      int   `json:"cache_misses"`
	Failed           int   `json:"failed,omitempty"`
}

// SupportedVersion is the current schema version. The schema evolves
// additively only; adding variants did not bump it.
const SupportedVersion = 1
