package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/tubeloc/tubeloc/cache"
	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/chunk"
)

// Defaults used when neither the environment nor the project file set a value.
const (
	DefaultOutputDir = "tubeloc-out"
	DefaultCacheTTL  = 30 * 24 * time.Hour
	MemoFileName     = "memo.db"
)

// EngineSettings is the merged configuration for one engine. APIKey is
// only filled from the environment here; the CLI layers flags and the
// credential store on top.
type EngineSettings struct {
	APIKey     string
	BaseURL    string
	Rate       float64
	MaxRetries int
	Timeout    time.Duration
	Disabled   bool
}

// Resolved is the effective configuration below the flag layer.
type Resolved struct {
	SourceLang     string
	Languages      []string
	Exclude        []string
	Overrides      map[string]catalog.Override
	ChunkSize      int
	OutputDir      string
	SubtitleFormat string
	Cache          cache.Options
	DeepL          EngineSettings
	Google         EngineSettings
	Proxy          string
	LogLevel       string
}

// Resolve merges env over pf over defaults. Either argument may be nil.
// dataDir is used for the default SQLite memo path.
func Resolve(pf *ProjectFile, e *Env, dataDir string) Resolved {
	if pf == nil {
		pf = &ProjectFile{}
	}
	if e == nil {
		e = &Env{}
	}

	r := Resolved{
		SourceLang:     first(e.SourceLang, pf.SourceLang),
		Languages:      pf.Languages,
		Exclude:        pf.Exclude,
		ChunkSize:      firstInt(e.ChunkSize, pf.ChunkSize, chunk.DefaultSize),
		OutputDir:      first(e.OutputDir, pf.OutputDir, DefaultOutputDir),
		SubtitleFormat: pf.SubtitleFormat,
		Proxy:          e.Proxy,
		LogLevel:       first(e.LogLevel, "info"),
		DeepL: EngineSettings{
			APIKey:     e.DeepLKey,
			BaseURL:    first(e.DeepLURL, pf.Engines.DeepL.BaseURL),
			Rate:       pf.Engines.DeepL.Rate,
			MaxRetries: pf.Engines.DeepL.MaxRetries,
			Timeout:    pf.Engines.DeepL.Timeout,
			Disabled:   pf.Engines.DeepL.Disabled,
		},
		Google: EngineSettings{
			APIKey:     e.GoogleKey,
			BaseURL:    first(e.GoogleURL, pf.Engines.Google.BaseURL),
			Rate:       pf.Engines.Google.Rate,
			MaxRetries: pf.Engines.Google.MaxRetries,
			Timeout:    pf.Engines.Google.Timeout,
			Disabled:   pf.Engines.Google.Disabled,
		},
	}
	if len(e.Languages) > 0 {
		r.Languages = e.Languages
	}

	if len(pf.Overrides) > 0 {
		r.Overrides = make(map[string]catalog.Override, len(pf.Overrides))
		for k, o := range pf.Overrides {
			r.Overrides[k] = o.catalogOverride()
		}
	}

	r.Cache = cache.Options{
		Backend: strings.ToLower(first(e.Cache, pf.Cache.Backend, cache.BackendSQLite)),
		Path:    first(e.CachePath, pf.Cache.Path),
		URL:     first(e.RedisURL, pf.Cache.URL),
		TTL:     firstDuration(e.CacheTTL, pf.Cache.TTL, DefaultCacheTTL),
	}
	if r.Cache.Backend == cache.BackendSQLite && r.Cache.Path == "" {
		if dataDir == "" {
			r.Cache.Backend = cache.BackendMemory
		} else {
			r.Cache.Path = filepath.Join(dataDir, MemoFileName)
		}
	}
	return r
}

// Catalog applies overrides, the language list and exclusions to base.
func (r Resolved) Catalog(base *catalog.Catalog) (*catalog.Catalog, error) {
	c := base
	if len(r.Overrides) > 0 {
		var err error
		if c, err = c.WithOverrides(r.Overrides); err != nil {
			return nil, err
		}
	}
	if langs := trimAll(r.Languages); len(langs) > 0 {
		var err error
		if c, err = c.Subset(langs...); err != nil {
			return nil, err
		}
	}
	for _, key := range trimAll(r.Exclude) {
		c = c.Without(key)
	}
	return c, nil
}

func first(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstDuration(vals ...time.Duration) time.Duration {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
