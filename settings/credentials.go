// Package settings stores tubeloc user credentials.
//
// Credentials live in the XDG data directory:
//
//	$XDG_DATA_HOME/tubeloc/auth.json  (default: ~/.local/share/tubeloc/auth.json)
//
// The file is a JSON object keyed by engine name ("deepl", "google"). File
// permissions are 0600 (owner read/write only).
//
// Lookup order for API keys:
//  1. --deepl-key / --google-key flags (highest priority)
//  2. TUBELOC_DEEPL_API_KEY / TUBELOC_GOOGLE_API_KEY environment variables
//  3. This credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	dataDirName = "tubeloc"
	fileName    = "auth.json"
)

// Engines that accept stored credentials.
var Engines = []string{"deepl", "google"}

// Info is the stored entry for one engine.
type Info struct {
	// Type is always "api" today.
	Type string `json:"type"`
	Key  string `json:"key"`
	// BaseURL overrides the engine endpoint (e.g. a proxy).
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds all engine credentials, keyed by engine name.
type Store map[string]*Info

// IsKnownEngine reports whether name is an engine that takes a key.
func IsKnownEngine(name string) bool {
	for _, e := range Engines {
		if e == name {
			return true
		}
	}
	return false
}

// EnvVar returns the environment variable holding the key for an engine.
func EnvVar(engine string) string {
	switch engine {
	case "deepl":
		return "TUBELOC_DEEPL_API_KEY"
	case "google":
		return "TUBELOC_GOOGLE_API_KEY"
	}
	return ""
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir respects $XDG_DATA_HOME and falls back to ~/.local/share.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the tubeloc data directory. The SQLite memo cache
// defaults to a file inside it.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// Names returns the engines with stored credentials, sorted.
func (s Store) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the entry for an engine, or nil if not found.
func Get(engine string) *Info {
	return Load()[engine]
}

// SetAPIKey stores an API key (and optional base URL) for an engine.
func SetAPIKey(engine, key, baseURL string) error {
	if !IsKnownEngine(engine) {
		return fmt.Errorf("unknown engine %q (valid: deepl, google)", engine)
	}
	store := Load()
	store[engine] = &Info{Type: "api", Key: key, BaseURL: baseURL}
	return Save(store)
}

// GetAPIKey returns the stored key for an engine, or "".
func GetAPIKey(engine string) string {
	if info := Get(engine); info != nil {
		return info.Key
	}
	return ""
}

// GetBaseURL returns the stored base URL for an engine, or "".
func GetBaseURL(engine string) string {
	if info := Get(engine); info != nil {
		return info.BaseURL
	}
	return ""
}

// Remove deletes the credentials of one engine.
func Remove(engine string) error {
	store := Load()
	if _, ok := store[engine]; !ok {
		return nil
	}
	delete(store, engine)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Key sources reported by ResolveAPIKey.
const (
	SourceFlag  = "flag"
	SourceEnv   = "env"
	SourceStore = "store"
)

// ResolveAPIKey picks the key for engine: flagValue, then envValue, then
// the store. The second result names where the key came from, or "" when
// no key was found.
func ResolveAPIKey(engine, flagValue, envValue string) (string, string) {
	if flagValue != "" {
		return flagValue, SourceFlag
	}
	if envValue != "" {
		return envValue, SourceEnv
	}
	if key := GetAPIKey(engine); key != "" {
		return key, SourceStore
	}
	return "", ""
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
