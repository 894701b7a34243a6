package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env holds settings read from TUBELOC_* environment variables.
type Env struct {
	DeepLKey   string `env:"TUBELOC_DEEPL_API_KEY"`
	GoogleKey  string `env:"TUBELOC_GOOGLE_API_KEY"`
	DeepLURL   string `env:"TUBELOC_DEEPL_URL"`
	GoogleURL  string `env:"TUBELOC_GOOGLE_URL"`
	Proxy      string `env:"TUBELOC_PROXY"`
	SourceLang string `env:"TUBELOC_SOURCE_LANG"`
	// Languages is a comma-separated list of catalog keys.
	Languages []string      `env:"TUBELOC_LANGUAGES" envSeparator:","`
	ChunkSize int           `env:"TUBELOC_CHUNK_SIZE"`
	OutputDir string        `env:"TUBELOC_OUTPUT_DIR"`
	Cache     string        `env:"TUBELOC_CACHE"`
	CachePath string        `env:"TUBELOC_CACHE_PATH"`
	RedisURL  string        `env:"TUBELOC_REDIS_URL"`
	CacheTTL  time.Duration `env:"TUBELOC_CACHE_TTL"`
	LogLevel  string        `env:"TUBELOC_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv loads the given .env files (missing files are ignored; variables
// already set in the environment win) and parses TUBELOC_* variables.
func LoadEnv(dotenvFiles ...string) (*Env, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Env{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
