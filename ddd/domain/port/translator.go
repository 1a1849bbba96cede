package port

import "context"

// AutoLanguage asks a provider to detect the source language itself.
const AutoLanguage = "auto"

// TranslationProvider is one interchangeable translation backend.
type TranslationProvider interface {
	Name() string
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TranslationCache stores immutable translations; PutIfAbsent keeps the first writer.
type TranslationCache interface {
	Get(ctx context.Context, key string) (string, bool)
	PutIfAbsent(ctx context.Context, key, value string) bool
}
