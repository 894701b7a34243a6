// Package translate runs a video's title, description and subtitles
// through the engine failover policy for every catalog language and
// collects the outcomes per language.
package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/tubeloc/tubeloc/cache"
	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/chunk"
	"github.com/tubeloc/tubeloc/engine"
	"github.com/tubeloc/tubeloc/guard"
	"github.com/tubeloc/tubeloc/subtitle"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a translation run.
type Options struct {
	// SourceLang is the language of the input. A catalog entry for the same
	// language is skipped. Empty lets the engines detect it.
	SourceLang string
	// ChunkSize is the number of texts per engine request. Default: 50.
	ChunkSize int
	// OnProgress is called after each language completes.
	OnProgress func(key string, done, total int)
	// OnOutcome is called for every recorded outcome.
	OnOutcome func(key string, o Outcome)
	Logger    *slog.Logger
}

func (o *Options) effectiveChunkSize() int {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return chunk.DefaultSize
}

// Metadata is the video title and description.
type Metadata struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Source is everything to translate in one run. Nil parts are skipped.
type Source struct {
	Metadata  *Metadata
	Subtitles *subtitle.File
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// Orchestrator applies the Primary-then-Secondary policy. It holds no
// per-run state; outcomes go to the Run passed to each call.
type Orchestrator struct {
	primary   engine.Engine
	secondary engine.Engine
	opts      Options
	logger    *slog.Logger
}

// New creates an orchestrator. Either engine may be nil, in which case
// its attempts are skipped.
func New(primary, secondary engine.Engine, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{primary: primary, secondary: secondary, opts: opts, logger: logger}
}

// TranslateMetadata translates the title and description.
func (o *Orchestrator) TranslateMetadata(ctx context.Context, run *Run, md Metadata) error {
	return o.Translate(ctx, run, Source{Metadata: &md})
}

// TranslateSubtitles translates every segment of f.
func (o *Orchestrator) TranslateSubtitles(ctx context.Context, run *Run, f *subtitle.File) error {
	if f == nil || len(f.Segments) == 0 {
		return subtitle.ErrNoSegments
	}
	return o.Translate(ctx, run, Source{Subtitles: f})
}

type unitJob struct {
	unit  Unit
	texts []string
}

func (s Source) jobs() []unitJob {
	var jobs []unitJob
	if s.Metadata != nil {
		desc := strings.ReplaceAll(s.Metadata.Description, "\r\n", "\n")
		jobs = append(jobs,
			unitJob{unit: UnitTitle, texts: []string{s.Metadata.Title}},
			unitJob{unit: UnitDescription, texts: strings.Split(desc, "\n")},
		)
	}
	if s.Subtitles != nil {
		jobs = append(jobs, unitJob{unit: UnitSubtitles, texts: s.Subtitles.Texts()})
	}
	return jobs
}

// Translate runs every unit of src through every language of the run's
// catalog, in catalog order. Engine failures are recorded as outcomes and
// never abort the run. Cancellation is honored between languages: the
// languages already finished stay recorded and ctx.Err() is returned.
func (o *Orchestrator) Translate(ctx context.Context, run *Run, src Source) error {
	jobs := src.jobs()
	if len(jobs) == 0 {
		return errors.New("nothing to translate")
	}

	var targets []catalog.Entry
	for _, e := range run.Catalog.Entries() {
		if o.isSource(e.Key) {
			o.logger.Debug("skipping source language", "lang", e.Key)
			continue
		}
		targets = append(targets, e)
	}

	// Engine calls are not cancelled mid-language so that a chunk is
	// either fully applied or not sent.
	callCtx := context.WithoutCancel(ctx)

	for i, e := range targets {
		if err := ctx.Err(); err != nil {
			o.logger.Info("run cancelled", "run", run.ID, "done", i, "total", len(targets))
			return err
		}

		for _, job := range jobs {
			out := o.translateUnit(callCtx, e, job)
			if job.unit == UnitSubtitles && out.Status == StatusSuccess {
				f, err := src.Subtitles.WithTexts(out.Texts)
				if err != nil {
					out = failed(job.unit, out.Attempts, err.Error())
				} else {
					out.File = f
				}
			}
			if err := run.results.Record(e.Key, out); err != nil {
				return err
			}
			if o.opts.OnOutcome != nil {
				o.opts.OnOutcome(e.Key, out)
			}
		}

		o.logger.Debug("language done", "lang", e.Key)
		if o.opts.OnProgress != nil {
			o.opts.OnProgress(e.Key, i+1, len(targets))
		}
	}
	return nil
}

func (o *Orchestrator) isSource(key string) bool {
	if o.opts.SourceLang == "" {
		return false
	}
	a, err1 := language.Parse(key)
	b, err2 := language.Parse(o.opts.SourceLang)
	if err1 != nil || err2 != nil {
		return strings.EqualFold(key, o.opts.SourceLang)
	}
	return a == b
}

// translateUnit walks Attempt-Primary, Attempt-Secondary, Done. A unit
// with nothing but blank text succeeds without an engine.
func (o *Orchestrator) translateUnit(ctx context.Context, e catalog.Entry, job unitJob) Outcome {
	if allBlank(job.texts) {
		return succeeded(job.unit, EngineNone, "", job.texts, nil)
	}

	var attempts []Attempt

	type step struct {
		eng  engine.Engine
		slot Slot
		code string
		beta bool
	}
	var steps []step
	if o.primary != nil && !e.PreferSecondary && e.PrimaryCode != "" {
		steps = append(steps, step{o.primary, EnginePrimary, e.PrimaryCode, e.Restricted})
	}
	if o.secondary != nil {
		steps = append(steps, step{o.secondary, EngineSecondary, e.SecondaryTarget(), false})
	}

	for _, s := range steps {
		opts := engine.Options{
			PreserveSegmentation: true,
			ProtectMarkup:        true,
			EnableBeta:           s.beta,
			Source:               o.opts.SourceLang,
		}
		texts, a := o.attempt(ctx, s.eng, s.slot, s.code, job.texts, opts)
		attempts = append(attempts, a)
		if a.Err == nil {
			return succeeded(job.unit, s.slot, s.eng.Name(), texts, attempts)
		}
		o.logger.Warn("attempt failed", "lang", e.Key, "unit", job.unit, "engine", s.eng.Name(),
			"kind", engine.KindOf(a.Err), "error", a.Err)
	}

	if len(attempts) == 0 {
		return failed(job.unit, nil, "no translation engine configured")
	}
	details := make([]string, len(attempts))
	for i, a := range attempts {
		details[i] = a.Err.Error()
	}
	return failed(job.unit, attempts, strings.Join(details, "; "))
}

func succeeded(u Unit, slot Slot, name string, texts []string, attempts []Attempt) Outcome {
	out := Outcome{
		Unit:       u,
		Engine:     slot,
		EngineName: name,
		Status:     StatusSuccess,
		Attempts:   attempts,
	}
	switch u {
	case UnitTitle:
		out.Text = texts[0]
	case UnitDescription:
		out.Texts = texts
		out.Text = strings.Join(texts, "\n")
	default:
		out.Texts = texts
	}
	return out
}

func allBlank(texts []string) bool {
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			return false
		}
	}
	return true
}

func failed(u Unit, attempts []Attempt, detail string) Outcome {
	return Outcome{
		Unit:     u,
		Engine:   EngineNone,
		Status:   StatusFailure,
		Text:     FailurePrefix + detail,
		Err:      detail,
		Attempts: attempts,
	}
}

// attempt translates texts with one engine: guard, drop blanks, chunk,
// call, rejoin, restore, re-insert blanks. Any chunk failure fails the
// whole attempt.
func (o *Orchestrator) attempt(ctx context.Context, eng engine.Engine, slot Slot, code string, texts []string, opts engine.Options) ([]string, Attempt) {
	a := Attempt{Engine: eng.Name(), Slot: slot, Code: code}

	out := make([]string, len(texts))
	copy(out, texts)

	var idx []int
	var payload []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		idx = append(idx, i)
		payload = append(payload, guard.Protect(t))
	}

	hitsBefore := memoHits(eng)
	parts := chunk.Split(payload, o.opts.effectiveChunkSize())
	o.logger.Debug("sending chunks", "engine", eng.Name(), "target", code, "sizes", chunk.Sizes(parts))
	translated := make([][]string, 0, len(parts))
	for n, part := range parts {
		req := engine.Request{Texts: part, Target: code, Options: opts}
		res, err := o.call(ctx, eng, req)
		if errors.Is(err, engine.ErrShapeMismatch) && len(part) > 1 {
			o.logger.Warn("shape mismatch, retrying per segment", "engine", eng.Name(), "target", code, "chunk", n+1)
			res, err = o.perSegment(ctx, eng, req)
		}
		if err != nil {
			a.Err = err
			return nil, a
		}
		translated = append(translated, res)
	}
	a.CacheHits = int(memoHits(eng) - hitsBefore)

	restored := guard.RestoreAll(chunk.Join(translated))
	for j, i := range idx {
		out[i] = restored[j]
	}
	return out, a
}

// perSegment re-requests a chunk one text at a time.
func (o *Orchestrator) perSegment(ctx context.Context, eng engine.Engine, req engine.Request) ([]string, error) {
	out := make([]string, len(req.Texts))
	for i, t := range req.Texts {
		res, err := o.call(ctx, eng, engine.Request{Texts: []string{t}, Target: req.Target, Options: req.Options})
		if err != nil {
			return nil, err
		}
		out[i] = res[0]
	}
	return out, nil
}

// call invokes eng and normalizes every failure, including a panic or a
// wrong-length result, into an *engine.Error.
func (o *Orchestrator) call(ctx context.Context, eng engine.Engine, req engine.Request) (out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &engine.Error{Engine: eng.Name(), Kind: engine.KindInternal, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	out, err = eng.Translate(ctx, req)
	if err != nil {
		var ee *engine.Error
		if !errors.As(err, &ee) {
			err = &engine.Error{Engine: eng.Name(), Kind: engine.KindInternal, Detail: err.Error(), Err: err}
		}
		return nil, err
	}
	if len(out) != len(req.Texts) {
		return nil, engine.ShapeError(eng.Name(), len(req.Texts), len(out))
	}
	return out, nil
}

func memoHits(eng engine.Engine) int64 {
	if sp, ok := eng.(cache.StatsProvider); ok {
		return sp.Stats().Hits
	}
	return 0
}
