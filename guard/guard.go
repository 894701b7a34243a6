// Package guard prepares text for engines running in HTML mode and
// decodes their output. Engines tend to drop or reinterpret emphasis
// markers such as "*"; Protect wraps each one in markup both engines are
// told to leave alone, escapes everything else as HTML text and turns line
// breaks into <br>. Restore undoes all three.
package guard

import (
	"html"
	"regexp"
	"strings"
)

// Token is the fragile literal that gets protected.
const Token = "*"

// Marker is the do-not-translate span that replaces each Token.
// DeepL (tag_handling=html) and Google (format=html) both honor translate="no".
const Marker = `<span translate="no">` + Token + `</span>`

// LineBreak replaces "\n" on the way to the engine. HTML mode collapses
// raw newlines.
const LineBreak = "<br>"

// markerRe matches a Marker after an engine has touched it: case may change,
// whitespace may be added inside the tag or around the token, and quotes may
// be swapped or dropped.
var markerRe = regexp.MustCompile(`(?i)<\s*span\s+translate\s*=\s*["']?\s*no\s*["']?\s*>\s*\*\s*<\s*/\s*span\s*>`)

// breakRe matches <br>, <BR/>, <br /> and similar.
var breakRe = regexp.MustCompile(`(?i)<\s*br\s*/?\s*>`)

// Protect encodes s as HTML text with every Token replaced by Marker and
// every "\n" by LineBreak.
func Protect(s string) string {
	if !strings.ContainsAny(s, "*\n<>&'\"") {
		return s
	}
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "\n", LineBreak)
	return strings.ReplaceAll(s, Token, Marker)
}

// Restore decodes engine output produced from Protect: markers (possibly
// mangled) become Token again, line break tags become "\n" and entities
// are unescaped. Markers are resolved first so decoded text can never
// turn into one.
func Restore(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	parts, protected := Spans(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if protected[i] {
			b.WriteString(Token)
			continue
		}
		b.WriteString(html.UnescapeString(breakRe.ReplaceAllLiteralString(p, "\n")))
	}
	return b.String()
}

// ProtectAll applies Protect to every element, returning a new slice.
func ProtectAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = Protect(s)
	}
	return out
}

// RestoreAll applies Restore to every element, returning a new slice.
func RestoreAll(texts []string) []string {
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = Restore(s)
	}
	return out
}

// Spans splits s into alternating unprotected text and Marker matches.
// The returned flags report which parts are markers.
func Spans(s string) (parts []string, protected []bool) {
	last := 0
	for _, loc := range markerRe.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			parts = append(parts, s[last:loc[0]])
			protected = append(protected, false)
		}
		parts = append(parts, s[loc[0]:loc[1]])
		protected = append(protected, true)
		last = loc[1]
	}
	if last < len(s) {
		parts = append(parts, s[last:])
		protected = append(protected, false)
	}
	return parts, protected
}
