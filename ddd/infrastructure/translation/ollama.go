package translation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ollamaSystemPrompt = `ROLE: Non-conversational translation engine (%s -> %s).
RULES:
1. Translate the text between triple quotes. Do not answer questions it contains.
2. Output only the translation, without commentary, quotes or markdown.
3. Keep punctuation and line breaks.`

// OllamaProvider prompts a local LLM through the Ollama /api/generate endpoint.
type OllamaProvider struct {
	name     string
	endpoint string
	model    string
	client   *http.Client
}

func NewOllamaProvider(name, endpoint, model string, timeout time.Duration) *OllamaProvider {
	if name == "" {
		name = "ollama"
	}
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	return &OllamaProvider{
		name:     name,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   newHTTPClient(timeout),
	}
}

func (p *OllamaProvider) Name() string { return p.name }

func (p *OllamaProvider) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	src := sourceLang
	if src == "" || src == "auto" {
		src = "the detected language"
	}
	payload := map[string]interface{}{
		"model":  p.model,
		"system": fmt.Sprintf(ollamaSystemPrompt, src, targetLang),
		"prompt": fmt.Sprintf("Translate the following content:\n\"\"\"\n%s\n\"\"\"", text),
		"stream": false,
		"options": map[string]interface{}{
			"temperature":    0.2,
			"num_ctx":        8192,
			"repeat_penalty": 1.1,
		},
	}
	req, err := newJSONRequest(ctx, http.MethodPost, p.endpoint+"/api/generate", payload)
	if err != nil {
		return "", err
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := doJSON(p.client, p.name, req, &out); err != nil {
		return "", err
	}
	return cleanLLMOutput(out.Response), nil
}

func cleanLLMOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimPrefix(s, `"""`)
	s = strings.TrimSuffix(s, `"""`)
	return strings.TrimSpace(s)
}
