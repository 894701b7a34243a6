package main

import (
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tubeloc/tubeloc/cache"
	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/config"
	"github.com/tubeloc/tubeloc/engine"
	"github.com/tubeloc/tubeloc/settings"
	"github.com/tubeloc/tubeloc/translate"
)

// ---------------------------------------------------------------------------
// Shared flags
// ---------------------------------------------------------------------------

// runFlags are the flags shared by the commands that translate.
type runFlags struct {
	// Engines
	deeplKey   string
	googleKey  string
	deeplURL   string
	googleURL  string
	noDeepL    bool
	noGoogle   bool
	proxy      string
	timeout    time.Duration
	maxRetries int

	// Languages
	sourceLang string
	langs      []string
	exclude    []string

	// Behavior
	chunkSize int
	cache     string
	outDir    string
	strict    bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.deeplKey, "deepl-key", "", "DeepL API key (or TUBELOC_DEEPL_API_KEY)")
	fs.StringVar(&f.googleKey, "google-key", "", "Google Cloud Translation API key (or TUBELOC_GOOGLE_API_KEY)")
	fs.StringVar(&f.deeplURL, "deepl-url", "", "Custom DeepL base URL")
	fs.StringVar(&f.googleURL, "google-url", "", "Custom Google Translation base URL")
	fs.BoolVar(&f.noDeepL, "no-deepl", false, "Do not use DeepL")
	fs.BoolVar(&f.noGoogle, "no-google", false, "Do not use Google Translate")
	fs.StringVar(&f.proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	fs.DurationVar(&f.timeout, "timeout", 0, "Request timeout (0 = engine default)")
	fs.IntVar(&f.maxRetries, "max-retries", 0, "Retries on 429 and 5xx (0 = default 3, -1 = none)")

	fs.StringVar(&f.sourceLang, "source-lang", "", "Language of the input (default: detected by the engine)")
	fs.StringSliceVar(&f.langs, "langs", nil, "Languages to translate (comma-separated, default: whole catalog)")
	fs.StringSliceVar(&f.exclude, "exclude", nil, "Languages to skip (comma-separated)")

	fs.IntVar(&f.chunkSize, "chunk-size", 0, "Texts per engine request (default 50)")
	fs.StringVar(&f.cache, "cache", "", "Memo cache backend: memory, sqlite, redis, none")
	fs.StringVarP(&f.outDir, "out", "o", "", "Output directory")
	fs.BoolVar(&f.strict, "strict", false, "Exit non-zero if any language failed")
}

// apply layers the flags that were set on top of the resolved config.
func (f *runFlags) apply(fs *pflag.FlagSet, r *config.Resolved) {
	if fs.Changed("deepl-url") {
		r.DeepL.BaseURL = f.deeplURL
	}
	if fs.Changed("google-url") {
		r.Google.BaseURL = f.googleURL
	}
	if fs.Changed("no-deepl") {
		r.DeepL.Disabled = f.noDeepL
	}
	if fs.Changed("no-google") {
		r.Google.Disabled = f.noGoogle
	}
	if fs.Changed("proxy") {
		r.Proxy = f.proxy
	}
	if fs.Changed("timeout") {
		r.DeepL.Timeout, r.Google.Timeout = f.timeout, f.timeout
	}
	if fs.Changed("max-retries") {
		r.DeepL.MaxRetries, r.Google.MaxRetries = f.maxRetries, f.maxRetries
	}
	if fs.Changed("source-lang") {
		r.SourceLang = f.sourceLang
	}
	if fs.Changed("langs") {
		r.Languages = f.langs
	}
	if fs.Changed("exclude") {
		r.Exclude = append(r.Exclude, f.exclude...)
	}
	if fs.Changed("chunk-size") && f.chunkSize > 0 {
		r.ChunkSize = f.chunkSize
	}
	if fs.Changed("cache") {
		r.Cache.Backend = f.cache
	}
	if fs.Changed("out") {
		r.OutputDir = f.outDir
	}
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// session holds everything a translating command needs.
type session struct {
	cfg       config.Resolved
	catalog   *catalog.Catalog
	primary   engine.Engine
	secondary engine.Engine
	memos     []*engine.Memo
	cache     cache.Cache
	logger    *slog.Logger
}

// loadConfig merges .tubeloc.yaml, the environment (after loading
// <root>/.env) and the flags of cmd that were set.
func loadConfig(cmd *cobra.Command, f *runFlags) (config.Resolved, *config.Env, error) {
	pf, err := config.LoadProjectFile(rootDir)
	if err != nil {
		return config.Resolved{}, nil, err
	}
	env, err := config.LoadEnv(filepath.Join(rootDir, ".env"))
	if err != nil {
		return config.Resolved{}, nil, err
	}
	dataDir, _ := settings.DataDir()

	cfg := config.Resolve(pf, env, dataDir)
	f.apply(cmd.Flags(), &cfg)
	if !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(rootDir, cfg.OutputDir)
	}
	return cfg, env, nil
}

func newSession(cmd *cobra.Command, f *runFlags) (*session, error) {
	cfg, env, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, logger: newLogger(verbose, cfg.LogLevel)}

	if s.catalog, err = cfg.Catalog(catalog.Default()); err != nil {
		return nil, err
	}

	if s.cache, err = cache.Open(cfg.Cache); err != nil {
		logWarning("Memo cache unavailable (%s): %v", cfg.Cache.Backend, err)
		s.cache = nil
	}

	deeplKey, deeplSrc := settings.ResolveAPIKey(engine.NameDeepL, f.deeplKey, env.DeepLKey)
	googleKey, googleSrc := settings.ResolveAPIKey(engine.NameGoogle, f.googleKey, env.GoogleKey)

	if deeplKey != "" && !cfg.DeepL.Disabled {
		s.primary = s.wrap(engine.NewDeepL(s.engineConfig(engine.NameDeepL, deeplKey, cfg.DeepL)))
		s.logger.Debug("primary engine ready", "engine", engine.NameDeepL, "key_source", deeplSrc)
	}
	if googleKey != "" && !cfg.Google.Disabled {
		s.secondary = s.wrap(engine.NewGoogle(s.engineConfig(engine.NameGoogle, googleKey, cfg.Google)))
		s.logger.Debug("secondary engine ready", "engine", engine.NameGoogle, "key_source", googleSrc)
	}

	if s.primary == nil && s.secondary == nil {
		s.Close()
		return nil, errors.New("no translation engine configured; run 'tubeloc auth login' or set TUBELOC_DEEPL_API_KEY / TUBELOC_GOOGLE_API_KEY")
	}
	if s.primary == nil {
		logWarning("DeepL is not configured; every language will use Google Translate")
	}
	if s.secondary == nil {
		logWarning("Google Translate is not configured; there is no fallback engine")
	}
	return s, nil
}

func (s *session) engineConfig(name, key string, es config.EngineSettings) engine.Config {
	baseURL := es.BaseURL
	if baseURL == "" {
		baseURL = settings.GetBaseURL(name)
	}
	return engine.Config{
		APIKey:        key,
		BaseURL:       baseURL,
		Timeout:       es.Timeout,
		MaxRetries:    es.MaxRetries,
		RatePerSecond: es.Rate,
		Proxy:         s.cfg.Proxy,
		Logger:        s.logger,
	}
}

// wrap adds the memo cache in front of e when a cache is open.
func (s *session) wrap(e engine.Engine) engine.Engine {
	if s.cache == nil {
		return e
	}
	m := engine.NewMemo(e, s.cache, s.cfg.Cache.TTL, s.logger)
	s.memos = append(s.memos, m)
	return m
}

// Close releases the memo cache.
func (s *session) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("closing cache", "error", err)
		}
	}
}

func (s *session) orchestrator() *translate.Orchestrator {
	return translate.New(s.primary, s.secondary, translate.Options{
		SourceLang: s.cfg.SourceLang,
		ChunkSize:  s.cfg.ChunkSize,
		Logger:     s.logger,
		OnProgress: func(key string, done, total int) {
			e, _ := s.catalog.Lookup(key)
			logInfo("  [%d/%d] %s", done, total, e.Label())
		},
		OnOutcome: func(key string, o translate.Outcome) {
			if o.Status == translate.StatusFailure {
				logWarning("  %s %s: %s", key, o.Unit, o.Err)
			}
		},
	})
}

// memoStats sums the statistics of every memoized engine.
func (s *session) memoStats() cache.Stats {
	var total cache.Stats
	for _, m := range s.memos {
		st := m.Stats()
		total.Hits += st.Hits
		total.Misses += st.Misses
		total.Sets += st.Sets
	}
	return total
}
