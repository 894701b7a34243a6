package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tubeloc/tubeloc/catalog"
	"github.com/tubeloc/tubeloc/subtitle"
	"github.com/tubeloc/tubeloc/translate"
)

func sampleFile(text string) *subtitle.File {
	return &subtitle.File{Format: subtitle.SRT, Segments: []subtitle.Segment{
		{Start: time.Second, End: 2 * time.Second, Text: text},
	}}
}

// sampleRun has ko succeeding on Primary, de falling back to Secondary,
// and ja failing everything.
func sampleRun(t *testing.T) *translate.Run {
	t.Helper()
	c, err := catalog.Default().Subset("ko", "de", "ja")
	require.NoError(t, err)
	run := translate.NewRun(c)
	agg := run.Results()

	ok := func(key string, u translate.Unit, slot translate.Slot, name, text string, f *subtitle.File) {
		require.NoError(t, agg.Record(key, translate.Outcome{
			Unit: u, Engine: slot, EngineName: name, Status: translate.StatusSuccess, Text: text, File: f,
		}))
	}
	fail := func(key string, u translate.Unit, detail string) {
		require.NoError(t, agg.Record(key, translate.Outcome{
			Unit: u, Status: translate.StatusFailure, Text: translate.FailurePrefix + detail, Err: detail,
		}))
	}

	ok("ko", translate.UnitTitle, translate.EnginePrimary, "deepl", "안녕하세요 세계", nil)
	ok("ko", translate.UnitDescription, translate.EnginePrimary, "deepl", "설명", nil)
	ok("ko", translate.UnitSubtitles, translate.EnginePrimary, "deepl", "", sampleFile("안녕"))

	ok("de", translate.UnitTitle, translate.EnginePrimary, "deepl", "Hallo Welt", nil)
	ok("de", translate.UnitDescription, translate.EngineSecondary, "google", "Beschreibung", nil)
	ok("de", translate.UnitSubtitles, translate.EngineSecondary, "google", "", sampleFile("Hallo"))

	fail("ja", translate.UnitTitle, "deepl: quota exceeded; google: server error")
	fail("ja", translate.UnitDescription, "deepl: quota exceeded; google: server error")
	fail("ja", translate.UnitSubtitles, "deepl: quota exceeded; google: server error")
	return run
}

func TestBundle(t *testing.T) {
	data, err := Bundle(sampleRun(t), BundleOptions{})
	require.NoError(t, err)

	// Keys follow catalog order (de before ja before ko), not input order.
	deIdx := bytes.Index(data, []byte(`"de"`))
	jaIdx := bytes.Index(data, []byte(`"ja"`))
	koIdx := bytes.Index(data, []byte(`"ko"`))
	assert.True(t, deIdx < jaIdx && jaIdx < koIdx, "order: %s", data)

	var got map[string]Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "deepl", got["ko"].EngineUsed)
	assert.Equal(t, "success", got["ko"].Status)
	assert.Equal(t, "안녕하세요 세계", got["ko"].Title)
	assert.Equal(t, "google", got["de"].EngineUsed)
	assert.Equal(t, "none", got["ja"].EngineUsed)
	assert.Equal(t, "failure", got["ja"].Status)
	assert.Len(t, got["ja"].Errors, 3)
	assert.Empty(t, got["ko"].Subtitles)
}

func TestBundleOptions(t *testing.T) {
	data, err := Bundle(sampleRun(t), BundleOptions{SkipFailed: true, Indent: true, IncludeSubtitles: true})
	require.NoError(t, err)

	var got map[string]Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotContains(t, got, "ja")
	assert.Contains(t, got["ko"].Subtitles, "00:00:01,000 --> 00:00:02,000\n안녕")
	assert.Contains(t, string(data), "\n  \"de\": {")
}

func TestLocalizations(t *testing.T) {
	data, err := Localizations(sampleRun(t), "ko")
	require.NoError(t, err)

	var body struct {
		Localizations map[string]Localization `json:"localizations"`
	}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, map[string]Localization{
		"de": {Title: "Hallo Welt", Description: "Beschreibung"},
	}, body.Localizations)
}

func TestWriteArchive(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, sampleRun(t), subtitle.VTT))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	var names []string
	contents := map[string]string{}
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(b)
	}

	assert.Equal(t, []string{"subtitles_de.vtt", "subtitles_ko.vtt", ErrorsFile}, names)
	assert.Contains(t, contents["subtitles_ko.vtt"], "WEBVTT")
	assert.Contains(t, contents["subtitles_ko.vtt"], "안녕")
	assert.Contains(t, contents[ErrorsFile], "日本語 (ja): deepl: quota exceeded; google: server error")
}

func TestWriteArchiveKeepsTrackFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, sampleRun(t), ""))
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, "subtitles_de.srt", zr.File[0].Name)
}

func TestWriteSubtitle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteSubtitle(dir, "zh-TW", sampleFile("你好"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "subtitles_zh-TW.srt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\n你好\n", string(data))
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()

	yml := filepath.Join(dir, "video.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("title: Hello World\ndescription: |\n  line one\n\n  line three\n"), 0o644))
	md, err := LoadMetadata(yml)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", md.Title)
	assert.Equal(t, "line one\n\nline three\n", md.Description)

	js := filepath.Join(dir, "video.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"title":"T","description":"D"}`), 0o644))
	md, err = LoadMetadata(js)
	require.NoError(t, err)
	assert.Equal(t, translate.Metadata{Title: "T", Description: "D"}, md)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("title: ''\n"), 0o644))
	_, err = LoadMetadata(empty)
	assert.Error(t, err)

	_, err = LoadMetadata(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
