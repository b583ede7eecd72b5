package pipeline

import (
	"fmt"

	"github.com/AnyUserName/imgkit-cli/internal/cache"
)

// StaleImage names one image that would need regeneration and why.
type StaleImage struct {
	Source string
	Reason string
}

// CheckResult is the outcome of a side-effect-free evaluation of the
// batch against the cache and the files on disk.
type CheckResult struct {
	UpToDate bool
	Total    int
	Hits     int
	Stale    []StaleImage
}

// Check runs the exact preflight a real build would run — dimension
// resolution, width resolution, path planning, collision detection,
// fingerprinting — and then only consults the cache. Nothing is
// decoded, encoded or written. Whole-batch errors (validation,
// collision) are returned as errors; staleness is data.
func (p *Pipeline) Check() (*CheckResult, error) {
	pre, err := p.runPreflight()
	if err != nil {
		return nil, err
	}

	store := cache.Open(p.cfg.OutputDir, p.cfg.CacheMode)

	res := &CheckResult{Total: len(pre.tasks) + len(pre.skipped)}
	for _, t := range pre.tasks {
		// Lookup also verifies every recorded output file is present
		// on disk with its recorded size.
		if _, ok := store.Lookup(t.fingerprint); ok {
			res.Hits++
			continue
		}
		res.Stale = append(res.Stale, StaleImage{
			Source: t.src.RelPath,
			Reason: "no intact cached outputs for the current options",
		})
	}
	for _, s := range pre.skipped {
		res.Stale = append(res.Stale, StaleImage{
			Source: s.src.RelPath,
			Reason: fmt.Sprintf("unreadable: %v", s.err),
		})
	}

	res.UpToDate = len(res.Stale) == 0
	return res, nil
}
