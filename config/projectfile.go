// Package config loads tubeloc settings from the .tubeloc.yaml project
// file, TUBELOC_* environment variables and an optional .env file, and
// merges them into one Resolved view.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tubeloc/tubeloc/cache"
	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/subtitle"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// ProjectFile is the top-level .tubeloc.yaml structure.
type ProjectFile struct {
	// SourceLang is the language of the input video. Empty lets the
	// engines detect it.
	SourceLang string `yaml:"source_lang,omitempty"`
	// Languages narrows the catalog. Empty means every catalog language.
	Languages []string `yaml:"languages,omitempty"`
	// Exclude removes languages from the catalog.
	Exclude []string `yaml:"exclude,omitempty"`
	// ChunkSize is the number of texts per engine request (default 50).
	ChunkSize int `yaml:"chunk_size,omitempty"`
	// OutputDir receives bundles and subtitle files.
	OutputDir string `yaml:"output_dir,omitempty"`
	// SubtitleFormat forces the output subtitle format (srt, sbv, vtt).
	SubtitleFormat string `yaml:"subtitle_format,omitempty"`

	Cache   CacheSection   `yaml:"cache,omitempty"`
	Engines EnginesSection `yaml:"engines,omitempty"`

	// Overrides change catalog attributes per language key.
	Overrides map[string]LanguageOverride `yaml:"overrides,omitempty"`
}

// CacheSection configures the memo cache.
type CacheSection struct {
	// Backend: memory, sqlite, redis or none.
	Backend string        `yaml:"backend,omitempty"`
	Path    string        `yaml:"path,omitempty"`
	URL     string        `yaml:"url,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// EnginesSection holds per-engine transport settings. API keys are not
// read from the project file; use the environment or `tubeloc auth`.
type EnginesSection struct {
	DeepL  EngineSection `yaml:"deepl,omitempty"`
	Google EngineSection `yaml:"google,omitempty"`
}

// EngineSection configures one engine.
type EngineSection struct {
	BaseURL    string        `yaml:"base_url,omitempty"`
	Rate       float64       `yaml:"rate,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	Disabled   bool          `yaml:"disabled,omitempty"`
}

// LanguageOverride changes catalog attributes for one language.
type LanguageOverride struct {
	PrimaryCode     *string `yaml:"primary_code,omitempty"`
	SecondaryCode   *string `yaml:"secondary_code,omitempty"`
	PreferSecondary *bool   `yaml:"prefer_secondary,omitempty"`
	Restricted      *bool   `yaml:"restricted,omitempty"`
}

func (o LanguageOverride) catalogOverride() catalog.Override {
	return catalog.Override{
		PrimaryCode:     o.PrimaryCode,
		SecondaryCode:   o.SecondaryCode,
		PreferSecondary: o.PreferSecondary,
		Restricted:      o.Restricted,
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// ProjectFileName is the default config file name.
const ProjectFileName = ".tubeloc.yaml"

// LoadProjectFile loads and validates .tubeloc.yaml from rootDir.
// Returns nil if no file exists.
func LoadProjectFile(rootDir string) (*ProjectFile, error) {
	path := filepath.Join(rootDir, ProjectFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var pf ProjectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := pf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &pf, nil
}

func (pf *ProjectFile) validate() error {
	if pf.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must not be negative, got %d", pf.ChunkSize)
	}
	if pf.SubtitleFormat != "" {
		if _, err := subtitle.ParseFormat(pf.SubtitleFormat); err != nil {
			return err
		}
	}
	switch strings.ToLower(pf.Cache.Backend) {
	case "", cache.BackendMemory, cache.BackendSQLite, cache.BackendNone:
	case cache.BackendRedis:
		if pf.Cache.URL == "" {
			return fmt.Errorf("cache backend redis requires cache.url")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (valid: memory, sqlite, redis, none)", pf.Cache.Backend)
	}
	for key := range pf.Overrides {
		if _, ok := catalog.Default().Lookup(key); !ok {
			return fmt.Errorf("override for unknown language %q", key)
		}
	}
	return nil
}
