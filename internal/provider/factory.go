package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianshen/commitpro/internal/config"
)

// Options carries what a provider constructor needs.
type Options struct {
	BaseURL string
	APIKey  string
	Headers map[string]string
}

// ProviderConstructor is a function that creates a new LLMProvider.
type ProviderConstructor func(opts Options) LLMProvider

// registry holds registered provider constructors.
var registry = map[string]ProviderConstructor{}

// RegisterProvider registers a provider constructor by name.
func RegisterProvider(name string, constructor ProviderConstructor) {
	registry[name] = constructor
}

// Registered lists provider names in sorted order.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates the provider named by cfg.Provider using apiKey. The key is
// passed explicitly because the service resolves it per request.
func New(cfg config.LLMConfig, apiKey string) (LLMProvider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "openai"
	}
	constructor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %q (registered: %s)", name, strings.Join(Registered(), ", "))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s provider: %w", name, config.ErrNoAPIKey)
	}
	return constructor(Options{BaseURL: cfg.BaseURL, APIKey: apiKey}), nil
}
