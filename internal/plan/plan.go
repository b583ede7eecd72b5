// Package plan computes the deterministic output set for a batch before
// anything is written. Both check mode and a real build go through the
// same planning functions, so a preflight prediction is always exactly
// the path set a run would produce.
package plan

import (
	"fmt"
	"path"
	"strings"
)

// Format pairs an output format name with its file extension.
type Format struct {
	Name string
	Ext  string
}

// Output is one planned variant: a (format, width) pair and the path it
// will be written to. Paths are input-root-relative with forward
// slashes, regardless of where the physical output directory lives.
type Output struct {
	Format string
	Width  int
	Path   string
}

// ImagePlan is the full planned output set for one source image.
type ImagePlan struct {
	// Source is the input-root-relative path of the source image.
	Source  string
	Outputs []Output
}

// CollisionError reports two logical outputs mapping to the same path
// under case-insensitive comparison. Raised preflight; nothing has been
// written when it occurs.
type CollisionError struct {
	Path   string // the planned path (as first seen)
	First  string // source image that planned it first
	Second string // source image that collided
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("output path collision: %q planned by both %q and %q (case-insensitive)", e.Path, e.First, e.Second)
}

// OutputPath builds the path for one variant of an asset key:
// <key>-<width>.<ext>, keeping the key's directory. This is the single
// path convention; nothing else in the tool assembles output names.
func OutputPath(key string, width int, ext string) string {
	return path.Clean(fmt.Sprintf("%s-%d.%s", key, width, ext))
}

// ForImage plans every (format x width) output for one image. Widths
// must already be the image's effective widths, ascending; the output
// list preserves that order within each format.
func ForImage(source, key string, widths []int, formats []Format) ImagePlan {
	p := ImagePlan{Source: source, Outputs: make([]Output, 0, len(widths)*len(formats))}
	for _, f := range formats {
		for _, w := range widths {
			p.Outputs = append(p.Outputs, Output{
				Format: f.Name,
				Width:  w,
				Path:   OutputPath(key, w, f.Ext),
			})
		}
	}
	return p
}

// DetectCollisions compares every planned path in the batch using
// case-insensitive equality (target filesystems may be
// case-insensitive) and returns a CollisionError for the first clash.
// Two distinct sources named Photo.JPG and photo.jpg both planning
// photo-640.webp is the canonical case.
func DetectCollisions(plans []ImagePlan) error {
	type owner struct {
		source string
		path   string
	}
	seen := make(map[string]owner)
	for _, p := range plans {
		for _, o := range p.Outputs {
			folded := strings.ToLower(o.Path)
			if prev, ok := seen[folded]; ok {
				return &CollisionError{Path: prev.path, First: prev.source, Second: p.Source}
			}
			seen[folded] = owner{source: p.Source, path: o.Path}
		}
	}
	return nil
}
