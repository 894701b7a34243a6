package cache

import (
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the SQLite database file.
	Path string
	// URL is the Redis connection URL.
	URL string
	TTL time.Duration
}

// Open creates the configured cache. BackendNone returns a nil Cache and
// no error; callers skip memoization in that case.
func Open(opts Options) (Cache, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return NewMemoryCache(opts.TTL), nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite cache requires a path")
		}
		c, err := NewSQLiteCache(opts.Path, opts.TTL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendRedis:
		ro := DefaultRedisOptions()
		ro.URL = opts.URL
		if opts.TTL > 0 {
			ro.DefaultTTL = opts.TTL
		}
		c, err := NewRedisCache(ro)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (want memory, sqlite, redis or none)", opts.Backend)
	}
}
