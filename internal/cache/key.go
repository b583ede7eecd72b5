package cache

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Options is the normalized option set that affects output bytes. Widths
// must already be normalized (deduped, ascending); Formats may arrive in
// any order, the fingerprint sorts them itself.
type Options struct {
	Formats   []string
	Quality   int
	Blur      bool
	BlurSigma float64
	// Responsive selects the full eligible width set instead of just
	// the largest; it changes which outputs exist, so it keys too.
	Responsive bool
	Widths     []int
}

// keyVersion is folded into every fingerprint so a change to the key
// derivation invalidates all prior records.
const keyVersion = "1"

// Fingerprint derives the cache key for one source image: a
// deterministic digest of the source identity (its input-root-relative
// path), the content identity, and every option that influences output
// bytes. Two requests share a fingerprint only if they ask for the
// same image's outputs at the same paths; byte-identical files at
// different paths plan different output paths, so the source path must
// key too, or their records would cross-talk. Any change to the
// normalized width set changes the key.
func Fingerprint(source, contentHash string, opts Options) string {
	formats := append([]string(nil), opts.Formats...)
	sort.Strings(formats)

	widths := make([]string, len(opts.Widths))
	for i, w := range opts.Widths {
		widths[i] = strconv.Itoa(w)
	}

	d := xxhash.New()
	io.WriteString(d, "imgkit/"+keyVersion+"\x00")
	io.WriteString(d, source+"\x00")
	io.WriteString(d, contentHash+"\x00")
	io.WriteString(d, "f="+strings.Join(formats, ",")+"\x00")
	fmt.Fprintf(d, "q=%d\x00", opts.Quality)
	if opts.Blur {
		fmt.Fprintf(d, "blur=%g\x00", opts.BlurSigma)
	}
	fmt.Fprintf(d, "r=%t\x00", opts.Responsive)
	io.WriteString(d, "w="+strings.Join(widths, ","))
	return fmt.Sprintf("%016x", d.Sum64())
}
