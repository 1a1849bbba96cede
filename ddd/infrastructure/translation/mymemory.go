package translation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultMyMemoryEndpoint = "https://api.mymemory.translated.net"

// MyMemoryProvider uses the public MyMemory /get API. It does not auto-detect the
// source language, so "auto" is sent as English.
type MyMemoryProvider struct {
	name     string
	endpoint string
	email    string
	client   *http.Client
}

func NewMyMemoryProvider(name, endpoint, email string, timeout time.Duration) *MyMemoryProvider {
	if name == "" {
		name = "mymemory"
	}
	if endpoint == "" {
		endpoint = defaultMyMemoryEndpoint
	}
	return &MyMemoryProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		email:    email,
		client:   newHTTPClient(timeout),
	}
}

func (p *MyMemoryProvider) Name() string { return p.name }

func (p *MyMemoryProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	src := sourceLang
	if src == "" || src == "auto" {
		src = "en"
	}
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", src+"|"+targetLang)
	if p.email != "" {
		q.Set("de", p.email)
	}
	req, err := newJSONRequest(ctx, http.MethodGet, p.endpoint+"/get?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		ResponseStatus  interface{} `json:"responseStatus"`
		ResponseDetails string      `json:"responseDetails"`
	}
	if err := doJSON(p.client, p.name, req, &out); err != nil {
		return "", err
	}
	// responseStatus 可能是数字也可能是字符串
	if status := fmt.Sprint(out.ResponseStatus); status != "200" {
		return "", fmt.Errorf("%s: status %s: %s", p.name, status, out.ResponseDetails)
	}
	return out.ResponseData.TranslatedText, nil
}
