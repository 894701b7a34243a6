// Package engine defines the machine-translation engine contract and the
// DeepL and Google Cloud Translation adapters that implement it.
//
// Every adapter takes a list of texts and returns a list of the same
// length in the same order. Failures are reported as *Error so callers
// can decide whether to fail over without inspecting engine-specific
// payloads.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Engine names.
const (
	NameDeepL  = "deepl"
	NameGoogle = "google"
)

// Engine translates batches of texts.
type Engine interface {
	Name() string
	// Translate returns exactly len(req.Texts) strings or an error.
	Translate(ctx context.Context, req Request) ([]string, error)
}

// Request is a single engine call.
type Request struct {
	Texts   []string
	Target  string
	Options Options
}

// Options tune an engine call. Engines ignore options they do not support.
type Options struct {
	// PreserveSegmentation stops the engine from re-splitting sentences.
	PreserveSegmentation bool
	// ProtectMarkup makes the engine treat the texts as HTML so that
	// guard markers pass through untranslated. Results are returned as the
	// engine produced them, still HTML; decoding is up to the caller.
	ProtectMarkup bool
	// EnableBeta unlocks restricted target languages.
	EnableBeta bool
	// Source is the source language code. Empty means auto-detect.
	Source string
}

// TranslateText is the single-string form of Engine.Translate.
func TranslateText(ctx context.Context, e Engine, text, target string, opts Options) (string, error) {
	out, err := e.Translate(ctx, Request{Texts: []string{text}, Target: target, Options: opts})
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", ShapeError(e.Name(), 1, len(out))
	}
	return out[0], nil
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// ErrShapeMismatch is matched by errors.Is when an engine returned a
// different number of texts than it was sent.
var ErrShapeMismatch = errors.New("response count does not match request count")

// Kind classifies an engine failure.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindAuth
	KindQuota
	KindUnsupported
	KindShape
	KindServer
	KindRequest
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport error"
	case KindAuth:
		return "authentication failed"
	case KindQuota:
		return "quota exceeded"
	case KindUnsupported:
		return "unsupported target language"
	case KindShape:
		return "response shape mismatch"
	case KindServer:
		return "server error"
	case KindRequest:
		return "bad request"
	case KindInternal:
		return "internal error"
	default:
		return "unknown error"
	}
}

// Error is the uniform engine failure.
type Error struct {
	Engine string
	Kind   Kind
	// Status is the HTTP status code, 0 when no response was received.
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Engine)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports shape errors as ErrShapeMismatch.
func (e *Error) Is(target error) bool {
	return target == ErrShapeMismatch && e.Kind == KindShape
}

// Temporary reports whether retrying the same request may succeed.
func (e *Error) Temporary() bool {
	return e.Kind == KindTransport || e.Kind == KindServer || e.Status == http.StatusTooManyRequests
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}

// ShapeError reports that engine returned got texts for want inputs.
func ShapeError(engine string, want, got int) *Error {
	return &Error{
		Engine: engine,
		Kind:   KindShape,
		Detail: fmt.Sprintf("sent %d texts, got %d", want, got),
	}
}

// classify maps an HTTP status and response detail to a Kind.
func classify(status int, detail string) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests || status == 456:
		return KindQuota
	case status >= 500:
		return KindServer
	case status == http.StatusBadRequest && mentionsTarget(detail):
		return KindUnsupported
	default:
		return KindRequest
	}
}

func mentionsTarget(detail string) bool {
	d := strings.ToLower(detail)
	return strings.Contains(d, "target_lang") ||
		strings.Contains(d, "target language") ||
		strings.Contains(d, "invalid value")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
