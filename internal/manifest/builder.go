package manifest

import (
	"encoding/json"
	"os"
	"sort"
	"time"
)

// New creates an empty manifest with defaults.
func New(profileName string) *Manifest {
	return &Manifest{
		Version:     SupportedVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:     profileName,
		BasePath:    "./",
		Images:      make(map[string]Entry),
	}
}

// NewEntry creates an empty per-image entry.
func NewEntry() Entry {
	return Entry{Outputs: make(map[string]Output)}
}

// AddFormat records the generated variants for one format. The primary
// output is derived here as the maximum-width variant, which is what
// guarantees outputs.<format> always equals the largest entry of
// variants.<format>. Variant order is established at construction:
// ascending by width, regardless of input order. When responsive is
// false only the primary pointer is kept and the variant list is
// omitted from the entry.
func (e *Entry) AddFormat(format string, variants []Output, responsive bool) {
	if len(variants) == 0 {
		return
	}
	sorted := append([]Output(nil), variants...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Width < sorted[j].Width })

	e.Outputs[format] = sorted[len(sorted)-1]
	if responsive {
		if e.Variants == nil {
			e.Variants = make(map[string][]Output)
		}
		e.Variants[format] = sorted
	}
}

// AddError appends a per-image failure message.
func (e *Entry) AddError(msg string) {
	e.Errors = append(e.Errors, msg)
}

// ComputeStats recalculates aggregate statistics from entries. Cache
// hit counters are set by the pipeline, not derived here.
func (m *Manifest) ComputeStats() {
	hits, misses := m.Stats.CacheHits, m.Stats.CacheMisses
	var s Stats
	s.CacheHits, s.CacheMisses = hits, misses
	s.TotalImages = len(m.Images)
	for _, e := range m.Images {
		if len(e.Errors) > 0 {
			s.Failed++
		}
		if e.Variants != nil {
			for _, vs := range e.Variants {
				s.TotalOutputs += len(vs)
				for _, v := range vs {
					s.TotalOutputBytes += v.Size
				}
			}
			continue
		}
		for _, o := range e.Outputs {
			s.TotalOutputs++
			s.TotalOutputBytes += o.Size
		}
	}
	s.TotalInputBytes = m.Stats.TotalInputBytes
	m.Stats = s
}

// WriteJSON serializes the manifest to a JSON file. Map keys are
// emitted sorted, so identical input sets produce byte-identical
// manifests, which keeps runs diffable.
func WriteJSON(m *Manifest, path string) error {
	m.ComputeStats()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
