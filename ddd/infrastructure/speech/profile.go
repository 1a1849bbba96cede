// Package speech holds the speech-to-text engines behind port.SpeechEngine.
package speech

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrUnknownProfile 未配置的模型档位
type ErrUnknownProfile struct {
	Profile string
	Known   []string
}

func (e *ErrUnknownProfile) Error() string {
	return fmt.Sprintf("unknown model profile %q (known: %s)", e.Profile, strings.Join(e.Known, ", "))
}

// Profiles maps profile names (tiny, base, small...) onto engine specific models.
type Profiles struct {
	models   map[string]string
	fallback string
}

func NewProfiles(models map[string]string, fallback string) Profiles {
	m := make(map[string]string, len(models))
	for k, v := range models {
		m[strings.ToLower(k)] = v
	}
	return Profiles{models: m, fallback: strings.ToLower(fallback)}
}

// Resolve returns the model for profile; empty selects the default profile. When no
// models are configured the profile name itself is used as the model.
func (p Profiles) Resolve(profile string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(profile))
	if name == "" {
		name = p.fallback
	}
	if len(p.models) == 0 {
		return name, nil
	}
	if model, ok := p.models[name]; ok {
		return model, nil
	}
	return "", &ErrUnknownProfile{Profile: name, Known: p.Names()}
}

// Names lists configured profiles in sorted order.
func (p Profiles) Names() []string {
	out := make([]string, 0, len(p.models))
	for k := range p.models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var markerRe = regexp.MustCompile(`^\s*[\[\(][^\]\)]*[\]\)]\s*$`)

// isMarker reports non-speech annotations such as [BLANK_AUDIO] or (music).
func isMarker(text string) bool {
	return markerRe.MatchString(text)
}
