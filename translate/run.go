package translate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/subtitle"
)

// ---------------------------------------------------------------------------
// Outcome vocabulary
// ---------------------------------------------------------------------------

// Unit is a translatable piece of a video.
type Unit int

const (
	UnitTitle Unit = iota
	UnitDescription
	UnitSubtitles
)

var unitOrder = []Unit{UnitTitle, UnitDescription, UnitSubtitles}

func (u Unit) String() string {
	switch u {
	case UnitTitle:
		return "title"
	case UnitDescription:
		return "description"
	case UnitSubtitles:
		return "subtitles"
	}
	return fmt.Sprintf("unit(%d)", int(u))
}

// Slot tells which engine produced an outcome.
type Slot int

const (
	EngineNone Slot = iota
	EnginePrimary
	EngineSecondary
)

func (s Slot) String() string {
	switch s {
	case EnginePrimary:
		return "primary"
	case EngineSecondary:
		return "secondary"
	}
	return "none"
}

// Status is the final state of a unit or language.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// FailurePrefix starts every failure placeholder.
const FailurePrefix = "[translation failed] "

// Attempt records one engine attempt for a unit.
type Attempt struct {
	Engine string
	Slot   Slot
	// Code is the target code sent to the engine.
	Code string
	Err  error
	// CacheHits counts engine requests answered by the memo cache.
	CacheHits int
}

// Outcome is the result of translating one unit into one language.
type Outcome struct {
	Unit Unit
	// Engine is the slot that produced Text/Texts. EngineNone on failure
	// and for units that were blank, so no engine was asked.
	Engine     Slot
	EngineName string
	Status     Status
	// Text holds single-string results, the rejoined description, or the
	// failure placeholder.
	Text string
	// Texts holds list results. Nil on failure.
	Texts []string
	// File is the translated subtitle track for UnitSubtitles.
	File *subtitle.File
	// Err names every engine attempted and why it failed.
	Err      string
	Attempts []Attempt
}

// ---------------------------------------------------------------------------
// LanguageResult
// ---------------------------------------------------------------------------

// LanguageResult aggregates the outcomes of one catalog language.
type LanguageResult struct {
	Entry    catalog.Entry
	outcomes map[Unit]Outcome
}

// Outcome returns the outcome recorded for unit.
func (r LanguageResult) Outcome(u Unit) (Outcome, bool) {
	o, ok := r.outcomes[u]
	return o, ok
}

// Outcomes returns the recorded outcomes in unit order.
func (r LanguageResult) Outcomes() []Outcome {
	var out []Outcome
	for _, u := range unitOrder {
		if o, ok := r.outcomes[u]; ok {
			out = append(out, o)
		}
	}
	return out
}

// EngineUsed is Secondary if any unit fell back, Primary if every
// successful unit used Primary, and None if every unit failed.
func (r LanguageResult) EngineUsed() Slot {
	used := EngineNone
	for _, o := range r.outcomes {
		switch o.Engine {
		case EngineSecondary:
			return EngineSecondary
		case EnginePrimary:
			used = EnginePrimary
		}
	}
	return used
}

// EngineName is the name of the engine reported by EngineUsed, or "none".
func (r LanguageResult) EngineName() string {
	want := r.EngineUsed()
	for _, o := range r.Outcomes() {
		if o.Engine == want && want != EngineNone {
			return o.EngineName
		}
	}
	return "none"
}

// Status is Success only when every recorded unit succeeded.
func (r LanguageResult) Status() Status {
	if len(r.outcomes) == 0 {
		return StatusFailure
	}
	for _, o := range r.outcomes {
		if o.Status != StatusSuccess {
			return StatusFailure
		}
	}
	return StatusSuccess
}

// Title returns the translated title or its failure placeholder.
func (r LanguageResult) Title() string {
	return r.outcomes[UnitTitle].Text
}

// Description returns the translated description or its failure placeholder.
func (r LanguageResult) Description() string {
	return r.outcomes[UnitDescription].Text
}

// Subtitles returns the translated track, or nil when subtitles were not
// requested or failed.
func (r LanguageResult) Subtitles() *subtitle.File {
	return r.outcomes[UnitSubtitles].File
}

// Errors returns "unit: detail" for every failed unit.
func (r LanguageResult) Errors() []string {
	var errs []string
	for _, o := range r.Outcomes() {
		if o.Status == StatusFailure {
			errs = append(errs, o.Unit.String()+": "+o.Err)
		}
	}
	return errs
}

// ---------------------------------------------------------------------------
// Aggregator
// ---------------------------------------------------------------------------

// Aggregator collects outcomes per catalog key. Safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	results map[string]*LanguageResult
}

func newAggregator(c *catalog.Catalog) *Aggregator {
	return &Aggregator{catalog: c, results: make(map[string]*LanguageResult)}
}

// Record stores o under key. A second outcome for the same unit replaces
// the first.
func (a *Aggregator) Record(key string, o Outcome) error {
	e, ok := a.catalog.Lookup(key)
	if !ok {
		return fmt.Errorf("recording outcome: unknown language %q", key)
	}

	o.Texts = cloneStrings(o.Texts)
	o.Attempts = append([]Attempt(nil), o.Attempts...)

	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.results[e.Key]
	if !ok {
		r = &LanguageResult{Entry: e, outcomes: make(map[Unit]Outcome)}
		a.results[e.Key] = r
	}
	r.outcomes[o.Unit] = o
	return nil
}

// Get returns the result for key.
func (a *Aggregator) Get(key string) (LanguageResult, bool) {
	e, ok := a.catalog.Lookup(key)
	if !ok {
		return LanguageResult{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.results[e.Key]
	if !ok {
		return LanguageResult{}, false
	}
	return r.snapshot(), true
}

// All returns every recorded language keyed by catalog key.
func (a *Aggregator) All() map[string]LanguageResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]LanguageResult, len(a.results))
	for k, r := range a.results {
		out[k] = r.snapshot()
	}
	return out
}

// Ordered returns recorded languages in catalog order.
func (a *Aggregator) Ordered() []LanguageResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []LanguageResult
	for _, k := range a.catalog.Keys() {
		if r, ok := a.results[k]; ok {
			out = append(out, r.snapshot())
		}
	}
	return out
}

// Len returns the number of languages with at least one outcome.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

func (r *LanguageResult) snapshot() LanguageResult {
	out := LanguageResult{Entry: r.Entry, outcomes: make(map[Unit]Outcome, len(r.outcomes))}
	for u, o := range r.outcomes {
		out.outcomes[u] = o
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run is one batch over a catalog. Every Run starts with an empty
// aggregator; results never carry over between runs.
type Run struct {
	ID        string
	Catalog   *catalog.Catalog
	StartedAt time.Time
	results   *Aggregator
}

// NewRun starts a run over c.
func NewRun(c *catalog.Catalog) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Catalog:   c,
		StartedAt: time.Now(),
		results:   newAggregator(c),
	}
}

// Results returns the run's aggregator.
func (r *Run) Results() *Aggregator {
	return r.results
}
