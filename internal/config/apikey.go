package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrNoAPIKey is returned when no key could be found for the configured source.
var ErrNoAPIKey = errors.New("no api key available")

// ResolveAPIKey resolves an API key based on the given source.
// Supported sources: "env" (from environment variable), "config" (from config value),
// "request" (the key supplied with the request, falling back to env) and
// "keyring" (currently falls back to env).
func ResolveAPIKey(source, configValue, envVar, requestValue string) (string, error) {
	switch source {
	case "request":
		if requestValue != "" {
			return requestValue, nil
		}
		return resolveFromEnv(envVar)
	case "keyring", "env", "":
		return resolveFromEnv(envVar)
	case "config":
		if configValue == "" {
			return "", fmt.Errorf("api_key_source is 'config' but no api_key value provided: %w", ErrNoAPIKey)
		}
		return configValue, nil
	default:
		return "", fmt.Errorf("unknown api_key_source: %q", source)
	}
}

// EnvVarFor returns the environment variable consulted for a provider's key.
func EnvVarFor(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "github":
		return "GITHUB_TOKEN"
	case "gitlab":
		return "GITLAB_TOKEN"
	default:
		return "OPENAI_API_KEY"
	}
}

func resolveFromEnv(envVar string) (string, error) {
	if envVar == "" {
		return "", fmt.Errorf("no environment variable name specified: %w", ErrNoAPIKey)
	}
	val := os.Getenv(envVar)
	if val == "" {
		return "", fmt.Errorf("environment variable %s is not set: %w", envVar, ErrNoAPIKey)
	}
	return val, nil
}
