// Package cache persists fingerprint -> prior-output mappings across
// runs and tracks ownership of every path this tool has ever written,
// so it never silently overwrites a file it did not produce.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// storeVersion is bumped when the on-disk cache format changes;
// mismatched files are discarded rather than reinterpreted.
const storeVersion = 1

// FileName is the cache document written into the output directory.
const FileName = ".imgkit-cache.json"

// Mode controls how the store answers lookups and records results.
type Mode string

const (
	// ModeOn is normal operation: lookups answered, results recorded.
	ModeOn Mode = "on"
	// ModeOff disables the cache entirely; only the ownership ledger
	// is still maintained, since files get written regardless.
	ModeOff Mode = "off"
	// ModeRebuild forces regeneration (every lookup misses) but
	// records fresh results for subsequent runs.
	ModeRebuild Mode = "rebuild"
)

// ParseMode validates a --cache flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOn, ModeOff, ModeRebuild:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown cache mode %q (want on, off or rebuild)", s)
}

// OutputDesc describes one output file a prior run produced.
type OutputDesc struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Path   string `json:"path"` // input-root-relative
	Size   int64  `json:"size"`
	Hash   string `json:"hash"`
}

// Record maps one fingerprint to the outputs produced for it.
type Record struct {
	Fingerprint string       `json:"fingerprint"`
	Source      string       `json:"source"`
	Outputs     []OutputDesc `json:"outputs"`
	ProducedAt  string       `json:"produced_at"`
}

// OwnershipConflictError reports a destination path that exists on disk
// but is not tracked as this tool's own output. Generation refuses to
// overwrite such files.
type OwnershipConflictError struct {
	Path string
}

func (e *OwnershipConflictError) Error() string {
	return fmt.Sprintf("refusing to overwrite %q: file exists but was not produced by imgkit", e.Path)
}

type storeFile struct {
	Version int                `json:"version"`
	Records map[string]*Record `json:"records"`
	Owned   []string           `json:"owned"`
}

// Store is the cache handle for one run. Constructed once, passed to
// every worker; all methods are safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	dir   string // physical output root
	mode  Mode
	data  storeFile
	owned map[string]bool
}

// Open loads the cache document from dir, or starts empty when the file
// is absent, unreadable, corrupt, or a different version. Persistence
// failures are deliberately treated as "everything is a miss" rather
// than trusted state.
func Open(dir string, mode Mode) *Store {
	s := &Store{
		dir:  dir,
		mode: mode,
		data: storeFile{
			Version: storeVersion,
			Records: make(map[string]*Record),
		},
		owned: make(map[string]bool),
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return s
	}
	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil || f.Version != storeVersion {
		return s
	}
	if f.Records == nil {
		f.Records = make(map[string]*Record)
	}
	s.data = f
	for _, p := range f.Owned {
		s.owned[p] = true
	}
	return s
}

// Lookup answers whether a prior run already produced the outputs for
// fp. A hit additionally requires every recorded file to still be
// present on disk with its recorded size; anything else is a miss.
func (s *Store) Lookup(fp string) (*Record, bool) {
	if s.mode != ModeOn {
		return nil, false
	}
	s.mu.Lock()
	rec, ok := s.data.Records[fp]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	for _, o := range rec.Outputs {
		info, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(o.Path)))
		if err != nil || info.Size() != o.Size {
			return nil, false
		}
	}
	return rec, true
}

// VerifyOwnership confirms the destination is safe to write: either no
// file exists there, or a prior run of this tool produced it. Applies
// in every cache mode.
func (s *Store) VerifyOwnership(relPath string) error {
	if _, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(relPath))); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	s.mu.Lock()
	owned := s.owned[relPath]
	s.mu.Unlock()
	if owned {
		return nil
	}
	return &OwnershipConflictError{Path: relPath}
}

// MarkOwned adds a freshly written path to the ownership ledger. Called
// immediately after each successful write, before the fingerprint
// record exists, so an interrupted run still leaves an accurate ledger
// once Save has run.
func (s *Store) MarkOwned(relPath string) {
	s.mu.Lock()
	s.owned[relPath] = true
	s.mu.Unlock()
}

// Record stores the outputs produced for fp, superseding any prior
// record for the same fingerprint. Called only after the codec has
// succeeded for the whole image. In ModeOff the record itself is
// skipped but ownership is still tracked.
func (s *Store) Record(fp, source string, outputs []OutputDesc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outputs {
		s.owned[o.Path] = true
	}
	if s.mode == ModeOff {
		return
	}
	s.data.Records[fp] = &Record{
		Fingerprint: fp,
		Source:      source,
		Outputs:     outputs,
		ProducedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Save writes the cache document back to the output directory.
func (s *Store) Save() error {
	s.mu.Lock()
	s.data.Owned = make([]string, 0, len(s.owned))
	for p := range s.owned {
		s.data.Owned = append(s.data.Owned, p)
	}
	sort.Strings(s.data.Owned)
	data, err := json.MarshalIndent(&s.data, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, FileName), data, 0o644)
}
