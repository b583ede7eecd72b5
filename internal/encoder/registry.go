package encoder

import (
	"fmt"
	"strings"
)

// Registry holds all available encoders.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry, probing all encoders for availability.
func NewRegistry() *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	all := []Encoder{
		&AVIFEncoder{},
		&WebPEncoder{},
		&JPEGEncoder{},
		&PNGEncoder{},
	}
	for _, enc := range all {
		if enc.Available() {
			r.encoders[enc.Format()] = enc
		}
	}
	return r
}

// Get returns an encoder for the given format, or nil if unavailable.
func (r *Registry) Get(format string) Encoder {
	return r.encoders[strings.ToLower(format)]
}

// Available returns all available format names in priority order.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range []string{"avif", "webp", "jpeg", "png"} {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// Resolve filters the requested format list to the encoders actually
// available, deduplicating and preserving request order. The resolved
// set is fixed for the whole run: output formats must be known at
// planning time and may not vary per image, or the planned output set
// would stop predicting the produced one. Falls back to jpeg (always
// available) when nothing requested is usable.
func (r *Registry) Resolve(requested []string) ([]Encoder, error) {
	var resolved []Encoder
	seen := map[string]bool{}
	for _, f := range requested {
		f = strings.ToLower(f)
		if seen[f] {
			continue
		}
		if enc, ok := r.encoders[f]; ok {
			resolved = append(resolved, enc)
			seen[f] = true
		}
	}
	if len(resolved) == 0 {
		if enc, ok := r.encoders["jpeg"]; ok {
			resolved = append(resolved, enc)
		}
	}
	if len(resolved) == 0 {
		return nil, fmt.Errorf("no encoders available for formats %v", requested)
	}
	return resolved, nil
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}
