// Package export turns a finished translation run into files: a JSON
// review bundle, the YouTube localizations request body, and subtitle
// files (single or zipped).
package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tubeloc/tubeloc/subtitle"
	"github.com/tubeloc/tubeloc/translate"
)

// ---------------------------------------------------------------------------
// Metadata input
// ---------------------------------------------------------------------------

// LoadMetadata reads {title, description} from a YAML or JSON file.
func LoadMetadata(path string) (translate.Metadata, error) {
	var md translate.Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return md, fmt.Errorf("reading %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &md)
	} else {
		err = yaml.Unmarshal(data, &md)
	}
	if err != nil {
		return md, fmt.Errorf("parsing %s: %w", path, err)
	}
	if strings.TrimSpace(md.Title) == "" && strings.TrimSpace(md.Description) == "" {
		return md, fmt.Errorf("%s: title and description are both empty", path)
	}
	return md, nil
}

// ---------------------------------------------------------------------------
// Ordered JSON objects
// ---------------------------------------------------------------------------

// ordered marshals as a JSON object whose keys keep insertion order.
type ordered[V any] struct {
	keys   []string
	values map[string]V
}

func newOrdered[V any]() *ordered[V] {
	return &ordered[V]{values: make(map[string]V)}
}

func (o *ordered[V]) set(key string, v V) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *ordered[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshal(v any, indent bool) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || !indent {
		return data, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// ---------------------------------------------------------------------------
// Review bundle
// ---------------------------------------------------------------------------

// Record is one language in the review bundle.
type Record struct {
	Name        string   `json:"name"`
	EngineUsed  string   `json:"engine_used"`
	Status      string   `json:"status"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Subtitles   string   `json:"subtitles,omitempty"`
	Errors      []string `json:"errors,omitempty"`
}

// BundleOptions controls Bundle output.
type BundleOptions struct {
	// SkipFailed drops languages whose status is failure.
	SkipFailed bool
	Indent     bool
	// IncludeSubtitles embeds each serialized subtitle track.
	IncludeSubtitles bool
}

// Bundle renders the run as a JSON object keyed by catalog key, in
// catalog order.
func Bundle(run *translate.Run, opts BundleOptions) ([]byte, error) {
	out := newOrdered[Record]()
	for _, r := range run.Results().Ordered() {
		if opts.SkipFailed && r.Status() == translate.StatusFailure {
			continue
		}
		rec := Record{
			Name:        r.Entry.Name,
			EngineUsed:  r.EngineName(),
			Status:      r.Status().String(),
			Title:       r.Title(),
			Description: r.Description(),
			Errors:      r.Errors(),
		}
		if f := r.Subtitles(); f != nil && opts.IncludeSubtitles {
			data, err := f.Format.Marshal(f)
			if err != nil {
				return nil, fmt.Errorf("encoding %s subtitles: %w", r.Entry.Key, err)
			}
			rec.Subtitles = string(data)
		}
		out.set(r.Entry.Key, rec)
	}
	return marshal(out, opts.Indent)
}

// ---------------------------------------------------------------------------
// YouTube localizations
// ---------------------------------------------------------------------------

// Localization is one entry of the videos.update localizations map.
type Localization struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Localizations renders the body for a YouTube videos.update call with
// part=localizations. The source language and languages whose title or
// description failed are left out.
func Localizations(run *translate.Run, sourceLang string) ([]byte, error) {
	locs := newOrdered[Localization]()
	for _, r := range run.Results().Ordered() {
		if sourceLang != "" && strings.EqualFold(r.Entry.Key, sourceLang) {
			continue
		}
		title, ok1 := r.Outcome(translate.UnitTitle)
		desc, ok2 := r.Outcome(translate.UnitDescription)
		if !ok1 || !ok2 || title.Status != translate.StatusSuccess || desc.Status != translate.StatusSuccess {
			continue
		}
		locs.set(r.Entry.Key, Localization{Title: title.Text, Description: desc.Text})
	}
	body := struct {
		Localizations *ordered[Localization] `json:"localizations"`
	}{locs}
	return marshal(body, true)
}

// ---------------------------------------------------------------------------
// Subtitle files
// ---------------------------------------------------------------------------

// ErrorsFile is the archive entry listing failed languages.
const ErrorsFile = "ERRORS.txt"

// SubtitleName returns the file name for a language's subtitle track.
func SubtitleName(key string, format subtitle.Format) string {
	return "subtitles_" + key + format.Ext()
}

// WriteSubtitle writes f to dir and returns the file path.
func WriteSubtitle(dir, key string, f *subtitle.File) (string, error) {
	data, err := f.Format.Marshal(f)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, SubtitleName(key, f.Format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// WriteArchive writes a ZIP with one subtitle file per successfully
// translated language, in catalog order. Failed languages are listed in
// ERRORS.txt. An empty format keeps each track's own format.
func WriteArchive(w io.Writer, run *translate.Run, format subtitle.Format) error {
	zw := zip.NewWriter(w)
	var failures []string

	for _, r := range run.Results().Ordered() {
		o, ok := r.Outcome(translate.UnitSubtitles)
		if !ok {
			continue
		}
		if o.Status != translate.StatusSuccess || o.File == nil {
			failures = append(failures, fmt.Sprintf("%s: %s", r.Entry.Label(), o.Err))
			continue
		}
		ff := format
		if ff == "" {
			ff = o.File.Format
		}
		data, err := ff.Marshal(o.File)
		if err != nil {
			return err
		}
		fw, err := zw.Create(SubtitleName(r.Entry.Key, ff))
		if err != nil {
			return fmt.Errorf("adding %s: %w", r.Entry.Key, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("adding %s: %w", r.Entry.Key, err)
		}
	}

	if len(failures) > 0 {
		fw, err := zw.Create(ErrorsFile)
		if err != nil {
			return fmt.Errorf("adding %s: %w", ErrorsFile, err)
		}
		if _, err := io.WriteString(fw, strings.Join(failures, "\n")+"\n"); err != nil {
			return fmt.Errorf("adding %s: %w", ErrorsFile, err)
		}
	}

	return zw.Close()
}
