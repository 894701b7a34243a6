package engine

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
)

const googleURL = "https://translation.googleapis.com"

// Google is the Secondary engine (Cloud Translation API v2).
type Google struct {
	apiKey  string
	baseURL string
	c       *client
}

// NewGoogle creates a Google Cloud Translation adapter.
func NewGoogle(cfg Config) *Google {
	base := cfg.BaseURL
	if base == "" {
		base = googleURL
	}
	return &Google{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(base, "/"),
		c:       newClient(NameGoogle, cfg),
	}
}

func (g *Google) Name() string { return NameGoogle }

type googleRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	Source string   `json:"source,omitempty"`
}

// Translate sends all texts in one request. PreserveSegmentation and
// EnableBeta have no Google equivalent and are ignored.
func (g *Google) Translate(ctx context.Context, req Request) ([]string, error) {
	if g.apiKey == "" {
		return nil, &Error{Engine: NameGoogle, Kind: KindAuth, Detail: "API key not configured"}
	}
	if len(req.Texts) == 0 {
		return []string{}, nil
	}

	format := "text"
	if req.Options.ProtectMarkup {
		format = "html"
	}
	payload := googleRequest{
		Q:      req.Texts,
		Target: req.Target,
		Format: format,
		Source: req.Options.Source,
	}

	body, err := g.c.post(ctx, g.baseURL+"/language/translate/v2", func(r *resty.Request) *resty.Request {
		return r.
			SetQueryParam("key", g.apiKey).
			SetHeader("Content-Type", "application/json").
			SetBody(payload)
	}, googleDetail)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			Translations []struct {
				TranslatedText string `json:"translatedText"`
			} `json:"translations"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Engine: NameGoogle, Kind: KindShape, Detail: "parsing response: " + err.Error(), Err: err}
	}
	if len(resp.Data.Translations) != len(req.Texts) {
		return nil, ShapeError(NameGoogle, len(req.Texts), len(resp.Data.Translations))
	}

	out := make([]string, len(resp.Data.Translations))
	for i, t := range resp.Data.Translations {
		out[i] = t.TranslatedText
	}
	return out, nil
}

func googleDetail(body []byte) string {
	var e struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error.Message
}
