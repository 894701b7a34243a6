package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tubeloc/tubeloc/cache"
)

// Memo memoizes successful Translate results of the wrapped engine.
// Identical calls within the cache's lifetime do not reach the network.
// Errors are never cached.
type Memo struct {
	next   Engine
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewMemo wraps next. A nil logger discards cache warnings.
func NewMemo(next Engine, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Memo {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Memo{next: next, cache: c, ttl: ttl, logger: logger.With("engine", next.Name())}
}

func (m *Memo) Name() string { return m.next.Name() }

func (m *Memo) Translate(ctx context.Context, req Request) ([]string, error) {
	key := MemoKey(m.next.Name(), req)

	if data, err := m.cache.Get(ctx, key); err == nil {
		var out []string
		if json.Unmarshal(data, &out) == nil && len(out) == len(req.Texts) {
			m.hits.Add(1)
			return out, nil
		}
		m.logger.Warn("discarding corrupt memo entry", "key", key)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		m.logger.Warn("memo lookup failed", "error", err)
	}
	m.misses.Add(1)

	out, err := m.next.Translate(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(out); err == nil {
		if err := m.cache.Set(ctx, key, data, m.ttl); err != nil {
			m.logger.Warn("memo store failed", "error", err)
		} else {
			m.sets.Add(1)
		}
	}
	return out, nil
}

// Stats returns memo hit/miss counters.
func (m *Memo) Stats() cache.Stats {
	return cache.Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Sets:   m.sets.Load(),
	}
}

// MemoKey derives the cache key for an engine call.
func MemoKey(engineName string, req Request) string {
	payload, _ := json.Marshal(struct {
		Engine  string   `json:"e"`
		Target  string   `json:"t"`
		Options Options  `json:"o"`
		Texts   []string `json:"x"`
	}{engineName, req.Target, req.Options, req.Texts})
	sum := sha256.Sum256(payload)
	return "memo:" + hex.EncodeToString(sum[:])
}
