package translation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// LibreTranslateProvider talks to a LibreTranslate compatible /translate endpoint.
type LibreTranslateProvider struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewLibreTranslateProvider(name, endpoint, apiKey string, timeout time.Duration) *LibreTranslateProvider {
	if name == "" {
		name = "libretranslate"
	}
	return &LibreTranslateProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   newHTTPClient(timeout),
	}
}

func (p *LibreTranslateProvider) Name() string { return p.name }

func (p *LibreTranslateProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	payload := map[string]string{
		"q":      text,
		"source": libreLang(sourceLang),
		"target": libreLang(targetLang),
		"format": "text",
	}
	if p.apiKey != "" {
		payload["api_key"] = p.apiKey
	}
	req, err := newJSONRequest(ctx, http.MethodPost, p.endpoint+"/translate", payload)
	if err != nil {
		return "", err
	}
	var out struct {
		TranslatedText string `json:"translatedText"`
		Error          string `json:"error"`
	}
	if err := doJSON(p.client, p.name, req, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	return out.TranslatedText, nil
}

func libreLang(code string) string {
	switch code {
	case "zh-cn":
		return "zh"
	case "zh-tw":
		return "zt"
	}
	return baseLang(code)
}
