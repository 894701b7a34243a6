package guard

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"no markers here",
		"*",
		"**IMPORTANT**",
		"*leading",
		"trailing*",
		"a * b * c",
		"***",
		"(*note*), see: *this*!",
		"*.*?*",
		"line one *bold*\nline two",
		"한국어 *강조* 텍스트",
		"Tom & Jerry",
		"I &lt;3 this",
		"x < y > z",
		`say "hi" it's *fine*`,
		"line1\nline2",
		"*a*\n\n*b*",
	}
	for _, in := range cases {
		if got := Restore(Protect(in)); got != in {
			t.Errorf("Restore(Protect(%q)) = %q", in, got)
		}
	}
}

func TestProtectRemovesBareTokens(t *testing.T) {
	p := Protect("**IMPORTANT**")
	if strings.Count(p, Marker) != 4 {
		t.Fatalf("Protect() = %q, want 4 markers", p)
	}
	parts, protected := Spans(p)
	for i, part := range parts {
		if !protected[i] && strings.Contains(part, Token) {
			t.Fatalf("unprotected part %q still contains %q", part, Token)
		}
	}
}

func TestRestoreToleratesMangledMarkers(t *testing.T) {
	cases := map[string]string{
		`<SPAN TRANSLATE="NO">*</SPAN>x`:          "*x",
		`< span  translate = "no" > * </ span >x`: "*x",
		`<span translate='no'>*</span>`:           "*",
		`<span translate=no>*</span>`:             "*",
		`a<span translate="No">*</span>b`:         "a*b",
	}
	for in, want := range cases {
		if got := Restore(in); got != want {
			t.Errorf("Restore(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRestoreLeavesOtherMarkupAlone(t *testing.T) {
	in := `<b>bold</b> <span translate="no">x</span>`
	if got := Restore(in); got != in {
		t.Fatalf("Restore(%q) = %q", in, got)
	}
}

func TestListForms(t *testing.T) {
	in := []string{"*a*", "b", ""}
	p := ProtectAll(in)
	if len(p) != len(in) {
		t.Fatalf("ProtectAll changed length: %d", len(p))
	}
	if in[0] != "*a*" {
		t.Fatal("ProtectAll mutated its input")
	}
	out := RestoreAll(p)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("RestoreAll[%d] = %q, want %q", i, out[i], in[i])
		}
	}
}

func TestSpans(t *testing.T) {
	parts, protected := Spans("x" + Marker + "y")
	if len(parts) != 3 || protected[0] || !protected[1] || protected[2] {
		t.Fatalf("Spans = %q %v", parts, protected)
	}
	if strings.Join(parts, "") != "x"+Marker+"y" {
		t.Fatal("Spans lost text")
	}
}

func TestProtectEscapesText(t *testing.T) {
	cases := map[string]string{
		"Tom & Jerry":  "Tom &amp; Jerry",
		"I &lt;3 this": "I &amp;lt;3 this",
		"line1\nline2": "line1<br>line2",
		"plain":        "plain",
		"*a* & b\nc":   Marker + "a" + Marker + " &amp; b<br>c",
	}
	for in, want := range cases {
		if got := Protect(in); got != want {
			t.Errorf("Protect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRestoreDecodesEngineOutput(t *testing.T) {
	cases := map[string]string{
		"Tom &amp; Jerry":                       "Tom & Jerry",
		"I &amp;lt;3 this":                      "I &lt;3 this",
		"It&#39;s":                              "It's",
		"line1<br>line2":                        "line1\nline2",
		"line1<BR />line2":                      "line1\nline2",
		"a<br/>" + Marker + "b" + Marker:        "a\n*b*",
		"&lt;span translate=&quot;no&quot;&gt;": `<span translate="no">`,
	}
	for in, want := range cases {
		if got := Restore(in); got != want {
			t.Errorf("Restore(%q) = %q, want %q", in, got, want)
		}
	}
}
