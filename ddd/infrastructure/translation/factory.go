package translation

import (
	"fmt"
	"strings"

	"lingo-service/ddd/domain/port"
	"lingo-service/ddd/domain/service"
	"lingo-service/pkg/config"
	"lingo-service/pkg/logger"
)

// BuildProviders turns provider configuration into chain specs. Disabled providers
// and Microsoft entries without a key are left out.
func BuildProviders(cfgs []config.ProviderConfig) ([]service.ProviderSpec, error) {
	specs := make([]service.ProviderSpec, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		if !c.IsEnabled() {
			continue
		}
		var p port.TranslationProvider
		switch strings.ToLower(c.Kind) {
		case "libretranslate":
			if c.Endpoint == "" {
				return nil, fmt.Errorf("provider %s: endpoint is required", c.Name)
			}
			p = NewLibreTranslateProvider(c.Name, c.Endpoint, c.APIKey, c.Timeout)
		case "mymemory":
			p = NewMyMemoryProvider(c.Name, c.Endpoint, c.Email, c.Timeout)
		case "microsoft":
			if c.APIKey == "" {
				logger.Infof("Translation provider skipped, no api key name=%s", c.Name)
				continue
			}
			p = NewMicrosoftProvider(c.Name, c.Endpoint, c.APIKey, c.Region, c.Timeout)
		case "ollama":
			if c.Model == "" {
				return nil, fmt.Errorf("provider %s: model is required", c.Name)
			}
			p = NewOllamaProvider(c.Name, c.Endpoint, c.Model, c.Timeout)
		default:
			return nil, fmt.Errorf("provider %s: unknown kind %q", c.Name, c.Kind)
		}
		if seen[p.Name()] {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name())
		}
		seen[p.Name()] = true
		specs = append(specs, service.ProviderSpec{
			Provider: p,
			Priority: c.Priority,
			Requests: c.RateLimit.Requests,
			Per:      c.RateLimit.Per,
		})
		logger.Infof("Translation provider configured name=%s kind=%s priority=%d", p.Name(), c.Kind, c.Priority)
	}
	return specs, nil
}
