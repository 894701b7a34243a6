package subtitle

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

const sampleSRT = "1\r\n00:00:01,000 --> 00:00:02,500\r\nHello **world**\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nSecond line\r\nwraps here\r\n"

func TestParseSRT(t *testing.T) {
	f, err := Parse([]byte(sampleSRT), SRT)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := []Segment{
		{Start: time.Second, End: 2500 * time.Millisecond, Text: "Hello **world**"},
		{Start: 3 * time.Second, End: 4 * time.Second, Text: "Second line\nwraps here"},
	}
	if !reflect.DeepEqual(f.Segments, want) {
		t.Fatalf("Segments = %+v, want %+v", f.Segments, want)
	}
}

func TestMarshalSRT(t *testing.T) {
	f := &File{Format: SRT, Segments: []Segment{
		{Start: 0, End: 1500 * time.Millisecond, Text: "a"},
		{Start: time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, End: 2 * time.Hour, Text: "b"},
	}}
	got, err := SRT.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\na\n\n2\n01:02:03,004 --> 02:00:00,000\nb\n"
	if string(got) != want {
		t.Fatalf("Marshal() = %q, want %q", got, want)
	}
}

func TestSBV(t *testing.T) {
	in := "0:00:01.000,0:00:02.000\n안녕하세요\n\n1:00:00.250,1:00:01.000\n세계\n"
	f, err := Parse([]byte(in), SBV)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(f.Segments) != 2 || f.Segments[1].Start != time.Hour+250*time.Millisecond {
		t.Fatalf("Segments = %+v", f.Segments)
	}
	out, err := SBV.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if string(out) != in {
		t.Fatalf("Marshal() = %q, want %q", out, in)
	}
}

func TestVTT(t *testing.T) {
	in := "WEBVTT\n\nNOTE a comment\n\nintro\n00:01.000 --> 00:02.000 align:start\nHi\n\n00:00:03.000 --> 00:00:04.000\nBye\n"
	f, err := Parse([]byte(in), VTT)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := []Segment{
		{Start: time.Second, End: 2 * time.Second, Text: "Hi"},
		{Start: 3 * time.Second, End: 4 * time.Second, Text: "Bye"},
	}
	if !reflect.DeepEqual(f.Segments, want) {
		t.Fatalf("Segments = %+v, want %+v", f.Segments, want)
	}
	out, _ := VTT.Marshal(f)
	if !strings.HasPrefix(string(out), "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.000\nHi\n") {
		t.Fatalf("Marshal() = %q", out)
	}
}

func TestRoundTrip(t *testing.T) {
	src := &File{Segments: []Segment{
		{Start: 0, End: time.Second, Text: "*bold* start"},
		{Start: time.Second, End: 2 * time.Second, Text: ""},
		{Start: 59*time.Minute + 59*time.Second + 999*time.Millisecond, End: 10 * time.Hour, Text: "multi\nline"},
	}}
	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			data, err := format.Marshal(src)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			got, err := Parse(data, format)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if !reflect.DeepEqual(got.Segments, src.Segments) {
				t.Fatalf("round trip = %+v, want %+v", got.Segments, src.Segments)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("just some text\n\nno timing"), SRT); !errors.Is(err, ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
	if _, err := Parse([]byte{0xff, 0xfe, 'a'}, SRT); !errors.Is(err, ErrNotUTF8) {
		t.Fatalf("expected ErrNotUTF8, got %v", err)
	}
	if _, err := Parse([]byte("1\n00:99:00,000 --> 00:00:01,000\nx\n"), SRT); err == nil {
		t.Fatal("expected error for out-of-range minutes")
	}
	if _, err := Parse([]byte(sampleSRT), Format("ass")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseStripsBOM(t *testing.T) {
	f, err := Parse(append([]byte{0xEF, 0xBB, 0xBF}, sampleSRT...), SRT)
	if err != nil || len(f.Segments) != 2 {
		t.Fatalf("Parse() = %v, %v", f, err)
	}
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		data string
		want Format
	}{
		{"a.srt", "", SRT},
		{"a.SBV", "", SBV},
		{"a.vtt", "", VTT},
		{"upload", "WEBVTT\n\n00:01.000 --> 00:02.000\nx", VTT},
		{"upload", "0:00:01.000,0:00:02.000\nx", SBV},
		{"upload.txt", sampleSRT, SRT},
	}
	for _, tc := range cases {
		got, err := Detect(tc.name, []byte(tc.data))
		if err != nil || got != tc.want {
			t.Fatalf("Detect(%q) = %q, %v, want %q", tc.name, got, err, tc.want)
		}
	}
	if _, err := Detect("notes.txt", []byte("hello")); err == nil {
		t.Fatal("expected detection error")
	}
}

func TestWithTexts(t *testing.T) {
	f, _ := Parse([]byte(sampleSRT), SRT)
	g, err := f.WithTexts([]string{"안녕", "둘"})
	if err != nil {
		t.Fatalf("WithTexts() error: %v", err)
	}
	if g.Segments[0].Text != "안녕" || g.Segments[1].End != f.Segments[1].End {
		t.Fatalf("WithTexts() = %+v", g.Segments)
	}
	if f.Segments[0].Text != "Hello **world**" {
		t.Fatal("WithTexts mutated the receiver")
	}
	if _, err := f.WithTexts([]string{"one"}); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if !reflect.DeepEqual(f.Texts(), []string{"Hello **world**", "Second line\nwraps here"}) {
		t.Fatalf("Texts() = %v", f.Texts())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"srt": SRT, ".SBV": SBV, "webvtt": VTT} {
		if got, err := ParseFormat(in); err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("ass"); err == nil {
		t.Fatal("expected error")
	}
	if VTT.Ext() != ".vtt" {
		t.Fatalf("Ext() = %q", VTT.Ext())
	}
}
