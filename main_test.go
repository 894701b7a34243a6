package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tubeloc/tubeloc/lockfile"
)

// isolate points every external input of the CLI at temp dirs.
func isolate(t *testing.T) string {
	t.Helper()
	old := logOut
	logOut = io.Discard
	t.Cleanup(func() { logOut = old })

	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, k := range []string{
		"TUBELOC_DEEPL_API_KEY", "TUBELOC_GOOGLE_API_KEY", "TUBELOC_DEEPL_URL",
		"TUBELOC_GOOGLE_URL", "TUBELOC_LANGUAGES", "TUBELOC_CACHE", "TUBELOC_OUTPUT_DIR",
		"TUBELOC_SOURCE_LANG", "TUBELOC_CHUNK_SIZE",
	} {
		t.Setenv(k, "")
	}
	for _, k := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		t.Setenv(k, "C")
	}
	return t.TempDir()
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// fakeDeepL answers every request with "[TARGET] text".
func fakeDeepL(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type translation struct {
			Text string `json:"text"`
		}
		var resp struct {
			Translations []translation `json:"translations"`
		}
		for _, text := range r.PostForm["text"] {
			resp.Translations = append(resp.Translations, translation{Text: "[" + r.PostForm.Get("target_lang") + "] " + text})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionCmd(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "tubeloc version dev") {
		t.Fatalf("output = %q", out)
	}
}

func TestLangsCmd(t *testing.T) {
	root := isolate(t)
	out, err := execute(t, "langs", "--root", root, "--langs", "ko,zh-TW,hi")
	if err != nil {
		t.Fatalf("langs: %v", err)
	}
	for _, want := range []string{"ko", "KO", "zh-TW", "G\n", "HI", "*\n", "3 languages"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Deutsch") {
		t.Errorf("de should be filtered out:\n%s", out)
	}
}

func TestLangsCmdAppliesProjectOverrides(t *testing.T) {
	root := isolate(t)
	yaml := "languages: [ja, de]\nexclude: [de]\noverrides:\n  ja:\n    prefer_secondary: true\n"
	if err := os.WriteFile(filepath.Join(root, ".tubeloc.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "langs", "--root", root)
	if err != nil {
		t.Fatalf("langs: %v", err)
	}
	if !strings.Contains(out, "1 language\n") || !strings.Contains(out, "G\n") {
		t.Fatalf("override not applied:\n%s", out)
	}
}

func TestSubsRejectsUnparsableFile(t *testing.T) {
	root := isolate(t)
	bad := filepath.Join(root, "broken.srt")
	if err := os.WriteFile(bad, []byte("1\nnot a timing line\nHello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	srv := fakeDeepL(t, &calls)
	_, err := execute(t, "subs", bad, "--root", root, "--deepl-key", "k", "--deepl-url", srv.URL, "--cache", "none")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if calls.Load() != 0 {
		t.Fatalf("engine called %d times for an unparsable file", calls.Load())
	}
}

func TestMetaRequiresEngine(t *testing.T) {
	root := isolate(t)
	_, err := execute(t, "meta", "--root", root, "--title", "Hello", "--cache", "none")
	if err == nil || !strings.Contains(err.Error(), "no translation engine") {
		t.Fatalf("err = %v, want missing engine error", err)
	}
}

func TestMetaEndToEnd(t *testing.T) {
	root := isolate(t)
	var calls atomic.Int32
	srv := fakeDeepL(t, &calls)
	out := filepath.Join(root, "out")

	md := filepath.Join(root, "video.yaml")
	if err := os.WriteFile(md, []byte("title: Hello\ndescription: |-\n  Line one\n\n  Line two\n"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, "meta", md,
		"--root", root, "--out", out, "--cache", "none",
		"--deepl-key", "k", "--deepl-url", srv.URL,
		"--langs", "ko,ja,zh-TW")
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if !strings.Contains(stdout, "deepl") {
		t.Errorf("summary missing engine name:\n%s", stdout)
	}

	bundle, err := os.ReadFile(filepath.Join(out, bundleFile))
	if err != nil {
		t.Fatalf("reading bundle: %v", err)
	}
	var records map[string]struct {
		EngineUsed  string `json:"engine_used"`
		Status      string `json:"status"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(bundle, &records); err != nil {
		t.Fatalf("bundle JSON: %v", err)
	}
	ko := records["ko"]
	if ko.Status != "success" || ko.Title != "[KO] Hello" || ko.EngineUsed != "deepl" {
		t.Errorf("ko = %+v", ko)
	}
	if ko.Description != "[KO] Line one\n\n[KO] Line two" {
		t.Errorf("ko description = %q", ko.Description)
	}
	// zh-TW always goes to Google, which is not configured here.
	if tw := records["zh-TW"]; tw.Status != "failure" || !strings.HasPrefix(tw.Title, "[translation failed] ") {
		t.Errorf("zh-TW = %+v", tw)
	}

	locs, err := os.ReadFile(filepath.Join(out, localizationsFile))
	if err != nil {
		t.Fatalf("reading localizations: %v", err)
	}
	if !strings.Contains(string(locs), `"ja"`) || strings.Contains(string(locs), `"zh-TW"`) {
		t.Errorf("localizations = %s", locs)
	}

	lf, err := lockfile.Load(out)
	if err != nil {
		t.Fatalf("lockfile: %v", err)
	}
	if l, ok := lf.Get("ko"); !ok || l.Engine != "primary" || l.EngineName != "deepl" {
		t.Errorf("lock ko = %+v", l)
	}
	if l, ok := lf.Get("zh-TW"); !ok || l.Status != "failure" {
		t.Errorf("lock zh-TW = %+v", l)
	}

	status, err := execute(t, "status", "--root", root, "--out", out, "--source", md)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(status, lf.RunID) || !strings.Contains(status, "zh-TW") {
		t.Errorf("status output:\n%s", status)
	}
}

func TestStatusPruneDropsRemovedLanguages(t *testing.T) {
	root := isolate(t)
	var calls atomic.Int32
	srv := fakeDeepL(t, &calls)
	out := filepath.Join(root, "out")

	if _, err := execute(t, "meta", "--title", "Hello",
		"--root", root, "--out", out, "--cache", "none",
		"--deepl-key", "k", "--deepl-url", srv.URL,
		"--langs", "ko,ja,de"); err != nil {
		t.Fatalf("meta: %v", err)
	}

	if _, err := execute(t, "status", "--root", root, "--out", out); err != nil {
		t.Fatalf("status: %v", err)
	}
	lf, err := lockfile.Load(out)
	if err != nil {
		t.Fatalf("lockfile: %v", err)
	}
	if n, _ := lf.Stats(); n != 3 {
		t.Fatalf("status without --prune changed the lock file: %d languages", n)
	}

	if _, err := execute(t, "status", "--root", root, "--out", out, "--prune", "--exclude", "ja"); err != nil {
		t.Fatalf("status --prune: %v", err)
	}
	if lf, err = lockfile.Load(out); err != nil {
		t.Fatalf("lockfile: %v", err)
	}
	if _, ok := lf.Get("ja"); ok {
		t.Error("ja should have been pruned")
	}
	for _, key := range []string{"ko", "de"} {
		if _, ok := lf.Get(key); !ok {
			t.Errorf("%s should be kept", key)
		}
	}
}

func TestSourceLanguageIsDetectedByDefault(t *testing.T) {
	root := isolate(t)
	var (
		mu      sync.Mutex
		sources []string
		targets []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		sources = append(sources, r.PostForm.Get("source_lang"))
		targets = append(targets, r.PostForm.Get("target_lang"))
		mu.Unlock()
		var translations []map[string]string
		for _, text := range r.PostForm["text"] {
			translations = append(translations, map[string]string{"text": text})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"translations": translations})
	}))
	t.Cleanup(srv.Close)

	args := []string{"meta", "--title", "안녕하세요",
		"--root", root, "--out", filepath.Join(root, "out"), "--cache", "none",
		"--deepl-key", "k", "--deepl-url", srv.URL,
		"--langs", "ko,ja"}
	if _, err := execute(t, args...); err != nil {
		t.Fatalf("meta: %v", err)
	}
	for _, src := range sources {
		if src != "" {
			t.Fatalf("source_lang = %q, want it left for the engine to detect", src)
		}
	}
	if strings.Join(targets, ",") != "KO,JA" {
		t.Fatalf("targets = %v, want KO and JA", targets)
	}

	sources, targets = nil, nil
	if _, err := execute(t, append(args, "--source-lang", "ko")...); err != nil {
		t.Fatalf("meta --source-lang: %v", err)
	}
	if strings.Join(targets, ",") != "JA" || sources[0] != "KO" {
		t.Fatalf("with --source-lang ko: targets = %v, sources = %v", targets, sources)
	}
}

func TestMetaStrictFailsOnFailedLanguage(t *testing.T) {
	root := isolate(t)
	var calls atomic.Int32
	srv := fakeDeepL(t, &calls)

	_, err := execute(t, "meta", "--title", "Hello",
		"--root", root, "--out", filepath.Join(root, "out"), "--cache", "none",
		"--deepl-key", "k", "--deepl-url", srv.URL,
		"--langs", "ko,zh-TW", "--strict")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 languages failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestSubsEndToEnd(t *testing.T) {
	root := isolate(t)
	var calls atomic.Int32
	srv := fakeDeepL(t, &calls)
	out := filepath.Join(root, "out")

	src := filepath.Join(root, "captions.srt")
	srt := "1\n00:00:01,000 --> 00:00:02,500\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n"
	if err := os.WriteFile(src, []byte(srt), 0644); err != nil {
		t.Fatal(err)
	}
	zipPath := filepath.Join(root, "subs.zip")

	_, err := execute(t, "subs", src,
		"--root", root, "--out", out, "--cache", "memory",
		"--deepl-key", "k", "--deepl-url", srv.URL,
		"--langs", "ko,de", "--format", "vtt", "--zip", zipPath)
	if err != nil {
		t.Fatalf("subs: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, "subtitles_ko.vtt"))
	if err != nil {
		t.Fatalf("reading ko track: %v", err)
	}
	if !strings.HasPrefix(string(data), "WEBVTT") || !strings.Contains(string(data), "[KO] World") {
		t.Errorf("ko track:\n%s", data)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("zip not written: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("engine calls = %d, want 2 (one per language)", calls.Load())
	}
}

func TestAuthLoginListLogout(t *testing.T) {
	isolate(t)

	if _, err := execute(t, "auth", "login", "--engine", "google", "--key", "AIzaSyExampleKey1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, err := execute(t, "auth", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "AIza...1234") {
		t.Errorf("list output missing masked key:\n%s", out)
	}

	if _, err := execute(t, "auth", "login", "--engine", "bing", "--key", "x"); err == nil {
		t.Error("expected error for unknown engine")
	}

	if _, err := execute(t, "auth", "logout", "--engine", "google"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	out, _ = execute(t, "auth", "list")
	if strings.Contains(out, "AIza...1234") {
		t.Errorf("key still listed after logout:\n%s", out)
	}
}

func TestAuthLoginPromptsForKey(t *testing.T) {
	isolate(t)
	old := authInput
	authInput = strings.NewReader("typed-key-0000:fx\n")
	t.Cleanup(func() { authInput = old })

	if _, err := execute(t, "auth", "login"); err != nil {
		t.Fatalf("login: %v", err)
	}
	out, _ := execute(t, "auth", "list")
	if !strings.Contains(out, "type...0:fx") {
		t.Errorf("prompted key not stored:\n%s", out)
	}
}
