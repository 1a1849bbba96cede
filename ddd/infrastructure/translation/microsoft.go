package translation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultMicrosoftEndpoint = "https://api.cognitive.microsofttranslator.com"

// MicrosoftProvider calls the Translator v3 API. It is only built when a key is configured.
type MicrosoftProvider struct {
	name     string
	endpoint string
	apiKey   string
	region   string
	client   *http.Client
}

func NewMicrosoftProvider(name, endpoint, apiKey, region string, timeout time.Duration) *MicrosoftProvider {
	if name == "" {
		name = "microsoft"
	}
	if endpoint == "" {
		endpoint = defaultMicrosoftEndpoint
	}
	return &MicrosoftProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		region:   region,
		client:   newHTTPClient(timeout),
	}
}

func (p *MicrosoftProvider) Name() string { return p.name }

func (p *MicrosoftProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", microsoftLang(targetLang))
	if sourceLang != "" && sourceLang != "auto" {
		q.Set("from", microsoftLang(sourceLang))
	}
	req, err := newJSONRequest(ctx, http.MethodPost, p.endpoint+"/translate?"+q.Encode(), []map[string]string{{"Text": text}})
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	if p.region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", p.region)
	}

	var out []struct {
		Translations []struct {
			Text string `json:"text"`
			To   string `json:"to"`
		} `json:"translations"`
	}
	if err := doJSON(p.client, p.name, req, &out); err != nil {
		return "", err
	}
	if len(out) == 0 || len(out[0].Translations) == 0 {
		return "", fmt.Errorf("%s: empty response", p.name)
	}
	return out[0].Translations[0].Text, nil
}

func microsoftLang(code string) string {
	switch code {
	case "zh-cn":
		return "zh-Hans"
	case "zh-tw":
		return "zh-Hant"
	}
	return code
}
