// Package geometry resolves source dimensions and target width sets.
// Everything here is pure: both the preflight check and the real build
// call these same functions, so the planned output set and the produced
// output set can never drift apart.
package geometry

import (
	"fmt"
	"sort"
)

// Constraints on user-supplied options.
const (
	MinWidth        = 1
	MaxWidth        = 16384
	MaxUniqueWidths = 16
	MinQuality      = 1
	MaxQuality      = 100
)

// ValidationError reports a malformed option value. It is raised once,
// before any image is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// EffectiveDimensions maps raw decoded dimensions through the EXIF
// orientation tag. Orientations 5-8 encode a 90/270 degree transpose,
// so width and height swap; every other value (including 0 for absent
// or unreadable EXIF) passes through unchanged.
func EffectiveDimensions(rawWidth, rawHeight, orientation int) (int, int) {
	switch orientation {
	case 5, 6, 7, 8:
		return rawHeight, rawWidth
	default:
		return rawWidth, rawHeight
	}
}

// ValidateWidths enforces the input contract on a raw width list:
// at least one value, each within [MinWidth, MaxWidth], and at most
// MaxUniqueWidths distinct values.
func ValidateWidths(requested []int) error {
	if len(requested) == 0 {
		return &ValidationError{Reason: "at least one width is required"}
	}
	unique := map[int]bool{}
	for _, w := range requested {
		if w < MinWidth || w > MaxWidth {
			return &ValidationError{Reason: fmt.Sprintf("width %d out of range [%d, %d]", w, MinWidth, MaxWidth)}
		}
		unique[w] = true
	}
	if len(unique) > MaxUniqueWidths {
		return &ValidationError{Reason: fmt.Sprintf("%d unique widths exceeds limit of %d", len(unique), MaxUniqueWidths)}
	}
	return nil
}

// ValidateQuality enforces the encoder quality range. Like
// ValidateWidths it runs at input acceptance, never per image.
func ValidateQuality(quality int) error {
	if quality < MinQuality || quality > MaxQuality {
		return &ValidationError{Reason: fmt.Sprintf("quality %d out of range [%d, %d]", quality, MinQuality, MaxQuality)}
	}
	return nil
}

// NormalizeWidths dedupes and sorts a requested width list ascending.
// The normalized form is the canonical one: cache keys, planning and
// the manifest all see this, never the raw request.
func NormalizeWidths(requested []int) []int {
	seen := map[int]bool{}
	out := make([]int, 0, len(requested))
	for _, w := range requested {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out
}

// EffectiveWidths filters a normalized width list down to the widths
// actually generatable for a source of the given effective width:
// everything larger than the source is dropped (no upscaling, ever),
// and if nothing survives the source's own width is the sole fallback.
// Idempotent: feeding the result back in returns it unchanged.
func EffectiveWidths(sourceWidth int, normalized []int) []int {
	out := make([]int, 0, len(normalized))
	for _, w := range normalized {
		if w <= sourceWidth {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		out = append(out, sourceWidth)
	}
	return out
}
