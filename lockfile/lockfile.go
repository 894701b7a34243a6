// Package lockfile implements tubeloc.lock, the audit record of the last
// run. For every language it stores which engine produced the result, the
// final status, and MD5 checksums of the source units that were
// translated, so a later `status` can tell whether the source changed.
//
// The lock file is stored in the output directory as tubeloc.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tubeloc/tubeloc/translate"
)

// LockFileName is the default lock file name.
const LockFileName = "tubeloc.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the tubeloc.lock file structure.
type LockFile struct {
	Version   int                  `yaml:"version"`
	RunID     string               `yaml:"run_id,omitempty"`
	RunAt     time.Time            `yaml:"run_at,omitempty"`
	Languages map[string]*Language `yaml:"languages"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// Language is the recorded result for one catalog key.
type Language struct {
	// Engine is the slot that served the language: primary, secondary or none.
	Engine     string `yaml:"engine"`
	EngineName string `yaml:"engine_name"`
	Status     string `yaml:"status"`
	// Checksums maps unit name to the MD5 of its source content.
	Checksums map[string]string `yaml:"checksums,omitempty"`
	Errors    []string          `yaml:"errors,omitempty"`
	UpdatedAt time.Time         `yaml:"updated_at"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Languages: make(map[string]*Language),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported lock file version %d", path, lf.Version)
	}

	if lf.Languages == nil {
		lf.Languages = make(map[string]*Language)
	}

	return lf, nil
}

// Save writes the lock file to disk, creating its directory if needed.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lf.path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(lf.path), err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksums
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// UnitContent builds the hashed content for a list of source texts.
// The separator keeps ["ab", "c"] and ["a", "bc"] distinct.
func UnitContent(texts []string) string {
	return strings.Join(texts, "\x00")
}

// IsChanged reports whether the source of unit for lang differs from what
// was recorded. Unknown languages and units count as changed.
func (lf *LockFile) IsChanged(lang, unit, sourceContent string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	l, ok := lf.Languages[lang]
	if !ok {
		return true
	}
	old, ok := l.Checksums[unit]
	if !ok {
		return true
	}
	return old != Hash(sourceContent)
}

// ---------------------------------------------------------------------------
// Recording runs
// ---------------------------------------------------------------------------

// Record stores the result for one language, replacing any earlier entry.
func (lf *LockFile) Record(lang string, l Language) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = time.Now().UTC()
	}
	lf.Languages[lang] = &l
}

// RecordRun stores every language of run. sources maps each translated
// unit to its source content (see UnitContent). Languages that were not
// part of run keep their previous entries.
func (lf *LockFile) RecordRun(run *translate.Run, sources map[translate.Unit]string) {
	lf.mu.Lock()
	lf.RunID = run.ID
	lf.RunAt = run.StartedAt.UTC()
	lf.mu.Unlock()

	now := time.Now().UTC()
	for _, r := range run.Results().Ordered() {
		if len(r.Outcomes()) == 0 {
			continue
		}
		sums := make(map[string]string)
		for _, o := range r.Outcomes() {
			if src, ok := sources[o.Unit]; ok && o.Status == translate.StatusSuccess {
				sums[o.Unit.String()] = Hash(src)
			}
		}
		lf.Record(r.Entry.Key, Language{
			Engine:     r.EngineUsed().String(),
			EngineName: r.EngineName(),
			Status:     r.Status().String(),
			Checksums:  sums,
			Errors:     r.Errors(),
			UpdatedAt:  now,
		})
	}
}

// Get returns the recorded entry for lang.
func (lf *LockFile) Get(lang string) (Language, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	l, ok := lf.Languages[lang]
	if !ok {
		return Language{}, false
	}
	return *l, true
}

// Clean removes languages that are no longer in the catalog.
func (lf *LockFile) Clean(currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}
	for k := range lf.Languages {
		if !valid[k] {
			delete(lf.Languages, k)
		}
	}
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of recorded languages and how many failed.
func (lf *LockFile) Stats() (languages, failed int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	languages = len(lf.Languages)
	for _, l := range lf.Languages {
		if l.Status != translate.StatusSuccess.String() {
			failed++
		}
	}
	return
}

// Keys returns the sorted list of recorded languages.
func (lf *LockFile) Keys() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys := make([]string, 0, len(lf.Languages))
	for k := range lf.Languages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	languages, failed := lf.Stats()
	if languages == 0 {
		return "empty"
	}

	engines := make(map[string]int)
	for _, k := range lf.Keys() {
		l, _ := lf.Get(k)
		engines[l.Engine]++
	}
	var parts []string
	for _, slot := range []string{"primary", "secondary", "none"} {
		if n := engines[slot]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", slot, n))
		}
	}
	return fmt.Sprintf("%d languages, %d failed (%s)", languages, failed, strings.Join(parts, ", "))
}
