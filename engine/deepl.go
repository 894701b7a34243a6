package engine

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

const (
	deeplProURL  = "https://api.deepl.com"
	deeplFreeURL = "https://api-free.deepl.com"
)

// DeepL is the Primary engine.
type DeepL struct {
	apiKey  string
	baseURL string
	c       *client
}

// NewDeepL creates a DeepL adapter. Keys ending in ":fx" use the free API
// host unless cfg.BaseURL is set.
func NewDeepL(cfg Config) *DeepL {
	base := cfg.BaseURL
	if base == "" {
		base = deeplProURL
		if strings.HasSuffix(cfg.APIKey, ":fx") {
			base = deeplFreeURL
		}
	}
	return &DeepL{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		c:       newClient(NameDeepL, cfg),
	}
}

func (d *DeepL) Name() string { return NameDeepL }

// Translate sends all texts in one request. Callers chunk to the 50-text
// request limit.
func (d *DeepL) Translate(ctx context.Context, req Request) ([]string, error) {
	if d.apiKey == "" {
		return nil, &Error{Engine: NameDeepL, Kind: KindAuth, Detail: "API key not configured"}
	}
	if len(req.Texts) == 0 {
		return []string{}, nil
	}

	form := url.Values{}
	for _, t := range req.Texts {
		form.Add("text", t)
	}
	form.Set("target_lang", req.Target)
	if req.Options.Source != "" {
		form.Set("source_lang", deeplSourceCode(req.Options.Source))
	}
	if req.Options.PreserveSegmentation {
		form.Set("split_sentences", "0")
	}
	if req.Options.ProtectMarkup {
		form.Set("tag_handling", "html")
	}
	if req.Options.EnableBeta {
		form.Set("enable_beta_languages", "1")
	}

	body, err := d.c.post(ctx, d.baseURL+"/v2/translate", func(r *resty.Request) *resty.Request {
		return r.
			SetHeader("Authorization", "DeepL-Auth-Key "+d.apiKey).
			SetFormDataFromValues(form)
	}, deeplDetail)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Translations []struct {
			DetectedSourceLanguage string `json:"detected_source_language"`
			Text                   string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Engine: NameDeepL, Kind: KindShape, Detail: "parsing response: " + err.Error(), Err: err}
	}
	if len(resp.Translations) != len(req.Texts) {
		return nil, ShapeError(NameDeepL, len(req.Texts), len(resp.Translations))
	}

	out := make([]string, len(resp.Translations))
	for i, t := range resp.Translations {
		out[i] = t.Text
	}
	return out, nil
}

func deeplDetail(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	if e.Detail != "" {
		return strings.TrimSpace(e.Message + " " + e.Detail)
	}
	return e.Message
}

// deeplSourceCode strips the region: DeepL accepts "EN" but not "EN-US"
// as a source language.
func deeplSourceCode(code string) string {
	code = strings.ReplaceAll(code, "_", "-")
	if i := strings.Index(code, "-"); i > 0 {
		code = code[:i]
	}
	return strings.ToUpper(code)
}
