package vo

import "strings"

var languageAliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"russian":    "ru",
	"japanese":   "ja",
	"korean":     "ko",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"turkish":    "tr",
	"hebrew":     "he",
	"iw":         "he",
	"norwegian":  "no",
	"nb":         "no",
	"chinese":    "zh-cn",
	"zh":         "zh-cn",
	"zh_cn":      "zh-cn",
	"zh-hans":    "zh-cn",
	"zh_tw":      "zh-tw",
	"zh-hant":    "zh-tw",
}

// NormalizeLanguage maps names and legacy codes onto the codes providers expect.
// Empty input stays empty; "auto" is kept as is.
func NormalizeLanguage(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return ""
	}
	if alias, ok := languageAliases[c]; ok {
		return alias
	}
	return c
}

// SameLanguage compares two codes after normalization, ignoring region suffixes
// except for Chinese variants.
func SameLanguage(a, b string) bool {
	na, nb := NormalizeLanguage(a), NormalizeLanguage(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if strings.HasPrefix(na, "zh") || strings.HasPrefix(nb, "zh") {
		return false
	}
	return baseLanguage(na) == baseLanguage(nb)
}

func baseLanguage(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return code[:i]
	}
	return code
}

// IsValidLanguage accepts 2-3 letter codes with an optional region.
func IsValidLanguage(code string) bool {
	c := NormalizeLanguage(code)
	if c == "" {
		return false
	}
	base := baseLanguage(c)
	if len(base) < 2 || len(base) > 3 {
		return false
	}
	for _, r := range c {
		if !(r >= 'a' && r <= 'z') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// Language 支持的目标语言
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supportedLanguages = []Language{
	{"ar", "Arabic"},
	{"da", "Danish"},
	{"de", "German"},
	{"en", "English"},
	{"es", "Spanish"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"he", "Hebrew"},
	{"hi", "Hindi"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"nl", "Dutch"},
	{"no", "Norwegian"},
	{"pl", "Polish"},
	{"pt", "Portuguese"},
	{"ru", "Russian"},
	{"sv", "Swedish"},
	{"tr", "Turkish"},
	{"zh-cn", "Chinese (Simplified)"},
	{"zh-tw", "Chinese (Traditional)"},
}

// SupportedLanguages lists the commonly supported target languages, sorted by code.
// Providers may accept more; any code passing IsValidLanguage is forwarded.
func SupportedLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}
