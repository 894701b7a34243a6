// Package catalog provides the ordered registry of target languages.
//
// A catalog row decouples what the user reviews and exports (the catalog
// key) from what is sent on the wire to each translation engine. Several
// rows may share one Primary engine code; each row still gets its own
// result slot.
package catalog

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Entry describes one target language.
type Entry struct {
	// Key is the stable, UI-facing identifier (BCP 47, e.g. "ko", "zh-TW").
	Key string `yaml:"key" json:"key"`
	// Name is the native display name.
	Name string `yaml:"name" json:"name"`
	// PrimaryCode is the target code sent to the Primary engine.
	PrimaryCode string `yaml:"primary_code" json:"primary_code"`
	// SecondaryCode is the target code sent to the Secondary engine.
	// Empty means Key.
	SecondaryCode string `yaml:"secondary_code,omitempty" json:"secondary_code,omitempty"`
	// PreferSecondary skips the Primary engine for this entry.
	PreferSecondary bool `yaml:"prefer_secondary,omitempty" json:"prefer_secondary,omitempty"`
	// Restricted entries need an extra enablement flag on the Primary engine.
	Restricted bool `yaml:"restricted,omitempty" json:"restricted,omitempty"`
}

// SecondaryTarget returns the code used for the Secondary engine.
func (e Entry) SecondaryTarget() string {
	if e.SecondaryCode != "" {
		return e.SecondaryCode
	}
	return e.Key
}

// Label returns "Name (key)" for CLI and report output.
func (e Entry) Label() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Key)
}

// builtin is the default catalog. Order is the export order.
var builtin = []Entry{
	{Key: "no", Name: "Norsk", PrimaryCode: "NB", SecondaryCode: "no"},
	{Key: "da", Name: "Dansk", PrimaryCode: "DA"},
	{Key: "de", Name: "Deutsch", PrimaryCode: "DE"},
	{Key: "ru", Name: "Русский", PrimaryCode: "RU"},
	{Key: "mr", Name: "मराठी", PrimaryCode: "MR", Restricted: true},
	{Key: "ms", Name: "Bahasa Melayu", PrimaryCode: "MS", Restricted: true},
	{Key: "vi", Name: "Tiếng Việt", PrimaryCode: "VI", Restricted: true},
	{Key: "bn", Name: "বাংলা", PrimaryCode: "BN", Restricted: true},
	{Key: "es", Name: "Español", PrimaryCode: "ES"},
	{Key: "ar", Name: "العربية", PrimaryCode: "AR"},
	{Key: "ur", Name: "اردو", PrimaryCode: "UR", Restricted: true},
	{Key: "uk", Name: "Українська", PrimaryCode: "UK"},
	{Key: "it", Name: "Italiano", PrimaryCode: "IT"},
	{Key: "id", Name: "Bahasa Indonesia", PrimaryCode: "ID"},
	{Key: "ja", Name: "日本語", PrimaryCode: "JA"},
	{Key: "zh-CN", Name: "简体中文", PrimaryCode: "ZH"},
	// DeepL's ZH renders Simplified script; Traditional goes to Google.
	{Key: "zh-TW", Name: "繁體中文", PrimaryCode: "ZH", PreferSecondary: true},
	{Key: "ta", Name: "தமிழ்", PrimaryCode: "TA", Restricted: true},
	{Key: "th", Name: "ไทย", PrimaryCode: "TH", Restricted: true},
	{Key: "te", Name: "తెలుగు", PrimaryCode: "TE", Restricted: true},
	{Key: "tr", Name: "Türkçe", PrimaryCode: "TR"},
	{Key: "pt", Name: "Português", PrimaryCode: "PT-BR"},
	{Key: "fr", Name: "Français", PrimaryCode: "FR"},
	{Key: "ko", Name: "한국어", PrimaryCode: "KO"},
	{Key: "hi", Name: "हिन्दी", PrimaryCode: "HI", Restricted: true},
}

// Catalog is an immutable, ordered set of entries.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtin)
	if err != nil {
		panic("catalog: invalid builtin catalog: " + err.Error())
	}
	return c
}

// New builds a catalog from entries, keeping their order.
// The slice is copied; later changes to it do not affect the catalog.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(c.entries, entries)
	for i, e := range c.entries {
		c.index[e.Key] = i
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks key uniqueness, key syntax and required codes.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.entries))
	for i, e := range c.entries {
		if e.Key == "" {
			return fmt.Errorf("entry %d: empty key", i)
		}
		if seen[e.Key] {
			return fmt.Errorf("duplicate key %q", e.Key)
		}
		seen[e.Key] = true
		if _, err := language.Parse(e.Key); err != nil {
			return fmt.Errorf("entry %q: invalid language tag: %w", e.Key, err)
		}
		if e.PrimaryCode == "" && !e.PreferSecondary {
			return fmt.Errorf("entry %q: primary code is required unless prefer_secondary is set", e.Key)
		}
	}
	return nil
}

// Entries returns the entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Keys returns the catalog keys in order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup finds an entry by key. Keys are matched exactly first and then
// after normalization, so "zh_tw" finds "zh-TW".
func (c *Catalog) Lookup(key string) (Entry, bool) {
	if i, ok := c.index[key]; ok {
		return c.entries[i], true
	}
	if i, ok := c.index[canonicalize(key)]; ok {
		return c.entries[i], true
	}
	return Entry{}, false
}

// Subset returns a new catalog holding only the given keys, in catalog
// order. Unknown keys are reported as an error.
func (c *Catalog) Subset(keys ...string) (*Catalog, error) {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		e, ok := c.Lookup(k)
		if !ok {
			return nil, fmt.Errorf("unknown language %q", k)
		}
		want[e.Key] = true
	}
	var out []Entry
	for _, e := range c.entries {
		if want[e.Key] {
			out = append(out, e)
		}
	}
	return New(out)
}

// Without returns a new catalog with the given key removed.
func (c *Catalog) Without(key string) *Catalog {
	e, ok := c.Lookup(key)
	if !ok {
		return c
	}
	out := make([]Entry, 0, len(c.entries))
	for _, x := range c.entries {
		if x.Key != e.Key {
			out = append(out, x)
		}
	}
	n, _ := New(out)
	return n
}

// Override describes per-key attribute changes loaded from configuration.
type Override struct {
	PrimaryCode     *string
	SecondaryCode   *string
	PreferSecondary *bool
	Restricted      *bool
}

// WithOverrides returns a new catalog with the overrides applied.
func (c *Catalog) WithOverrides(overrides map[string]Override) (*Catalog, error) {
	out := c.Entries()
	for key, o := range overrides {
		e, ok := c.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("override for unknown language %q", key)
		}
		i := c.index[e.Key]
		if o.PrimaryCode != nil {
			out[i].PrimaryCode = *o.PrimaryCode
		}
		if o.SecondaryCode != nil {
			out[i].SecondaryCode = *o.SecondaryCode
		}
		if o.PreferSecondary != nil {
			out[i].PreferSecondary = *o.PreferSecondary
		}
		if o.Restricted != nil {
			out[i].Restricted = *o.Restricted
		}
	}
	return New(out)
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}
