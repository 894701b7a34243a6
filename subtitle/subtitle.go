// Package subtitle reads and writes timed caption files in the SRT, SBV
// (YouTube) and WebVTT formats.
package subtitle

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	// ErrNoSegments is returned when input contains no parseable captions.
	ErrNoSegments = errors.New("no valid segments found")
	// ErrNotUTF8 is returned for input that is not valid UTF-8.
	ErrNotUTF8 = errors.New("subtitle file is not valid UTF-8; re-save it with UTF-8 encoding")
)

// Format identifies a subtitle file format.
type Format string

const (
	SRT Format = "srt"
	SBV Format = "sbv"
	VTT Format = "vtt"
)

// Formats lists the supported formats.
var Formats = []Format{SRT, SBV, VTT}

// ParseFormat resolves a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "srt":
		return SRT, nil
	case "sbv":
		return SBV, nil
	case "vtt", "webvtt":
		return VTT, nil
	}
	return "", fmt.Errorf("unsupported subtitle format %q (want srt, sbv or vtt)", s)
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Segment is one caption.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// File is a parsed subtitle track.
type File struct {
	Format   Format
	Segments []Segment
}

// Texts returns the segment texts in order.
func (f *File) Texts() []string {
	out := make([]string, len(f.Segments))
	for i, s := range f.Segments {
		out[i] = s.Text
	}
	return out
}

// WithTexts returns a copy of f with each segment's text replaced.
// Timing is untouched.
func (f *File) WithTexts(texts []string) (*File, error) {
	if len(texts) != len(f.Segments) {
		return nil, fmt.Errorf("got %d texts for %d segments", len(texts), len(f.Segments))
	}
	out := &File{Format: f.Format, Segments: make([]Segment, len(f.Segments))}
	for i, s := range f.Segments {
		s.Text = texts[i]
		out.Segments[i] = s
	}
	return out, nil
}

// Parse decodes data in the given format.
func Parse(data []byte, format Format) (*File, error) {
	text, err := normalize(data)
	if err != nil {
		return nil, err
	}

	var timing *regexp.Regexp
	switch format {
	case SRT:
		timing = srtTiming
	case SBV:
		timing = sbvTiming
	case VTT:
		timing = vttTiming
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", format)
	}

	f := &File{Format: format}
	for _, block := range splitBlocks(text) {
		seg, ok, err := parseBlock(block, timing)
		if err != nil {
			return nil, err
		}
		if ok {
			f.Segments = append(f.Segments, seg)
		}
	}
	if len(f.Segments) == 0 {
		return nil, ErrNoSegments
	}
	return f, nil
}

// Detect picks the format from the file extension, falling back to the
// content when the extension is unknown.
func Detect(name string, data []byte) (Format, error) {
	if ext := filepath.Ext(name); ext != "" {
		if f, err := ParseFormat(ext); err == nil {
			return f, nil
		}
	}

	text := string(bytes.TrimPrefix(data, utf8BOM))
	switch {
	case strings.HasPrefix(strings.TrimSpace(text), "WEBVTT"):
		return VTT, nil
	case sbvTiming.MatchString(text):
		return SBV, nil
	case srtTiming.MatchString(text):
		return SRT, nil
	}
	return "", fmt.Errorf("cannot detect subtitle format of %q", name)
}

// Marshal encodes f in format. Captions are separated by a blank line.
func (format Format) Marshal(f *File) ([]byte, error) {
	var b strings.Builder
	switch format {
	case VTT:
		b.WriteString("WEBVTT\n\n")
	case SRT, SBV:
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", format)
	}

	for i, s := range f.Segments {
		if i > 0 {
			b.WriteString("\n")
		}
		switch format {
		case SRT:
			fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, srtStamp(s.Start), srtStamp(s.End))
		case VTT:
			fmt.Fprintf(&b, "%d\n%s --> %s\n", i+1, vttStamp(s.Start), vttStamp(s.End))
		case SBV:
			fmt.Fprintf(&b, "%s,%s\n", sbvStamp(s.Start), sbvStamp(s.End))
		}
		if s.Text != "" {
			b.WriteString(s.Text)
			b.WriteString("\n")
		}
	}
	return []byte(b.String()), nil
}

// ---------------------------------------------------------------------------
// Parsing helpers
// ---------------------------------------------------------------------------

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var (
	srtTiming = regexp.MustCompile(`(?m)^\s*(\d+):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d+):(\d{2}):(\d{2})[,.](\d{3})`)
	vttTiming = regexp.MustCompile(`(?m)^\s*(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})`)
	sbvTiming = regexp.MustCompile(`(?m)^\s*(\d+):(\d{2}):(\d{2})\.(\d{3}),(\d+):(\d{2}):(\d{2})\.(\d{3})\s*$`)
)

func normalize(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", ErrNotUTF8
	}
	s := strings.ReplaceAll(string(data), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n"), nil
}

// splitBlocks groups non-blank lines separated by one or more blank lines.
func splitBlocks(text string) [][]string {
	var blocks [][]string
	var cur []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, strings.TrimRight(line, " \t"))
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// parseBlock reads one caption block. The timing line may be preceded by
// a cue identifier (SRT counter or VTT id). Blocks without a timing line,
// such as a WEBVTT header or NOTE, are skipped.
func parseBlock(lines []string, timing *regexp.Regexp) (Segment, bool, error) {
	for i := 0; i < len(lines) && i < 2; i++ {
		m := timing.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		start, err := stamp(m[1], m[2], m[3], m[4])
		if err != nil {
			return Segment{}, false, fmt.Errorf("parsing timestamp %q: %w", lines[i], err)
		}
		end, err := stamp(m[5], m[6], m[7], m[8])
		if err != nil {
			return Segment{}, false, fmt.Errorf("parsing timestamp %q: %w", lines[i], err)
		}
		return Segment{Start: start, End: end, Text: strings.Join(lines[i+1:], "\n")}, true, nil
	}
	return Segment{}, false, nil
}

func stamp(h, m, s, ms string) (time.Duration, error) {
	parts := [4]int{}
	for i, p := range []string{h, m, s, ms} {
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		parts[i] = n
	}
	if parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("minutes and seconds must be below 60")
	}
	return time.Duration(parts[0])*time.Hour +
		time.Duration(parts[1])*time.Minute +
		time.Duration(parts[2])*time.Second +
		time.Duration(parts[3])*time.Millisecond, nil
}

// ---------------------------------------------------------------------------
// Timestamp formatting
// ---------------------------------------------------------------------------

func split(d time.Duration) (h, m, s, ms int64) {
	if d < 0 {
		d = 0
	}
	total := d.Milliseconds()
	h = total / 3600000
	total %= 3600000
	m = total / 60000
	total %= 60000
	s = total / 1000
	ms = total % 1000
	return
}

func srtStamp(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func vttStamp(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func sbvStamp(d time.Duration) string {
	h, m, s, ms := split(d)
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
}
