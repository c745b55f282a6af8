package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAPIKeyFromEnv(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-12345")
	key, err := ResolveAPIKey("env", "", "TEST_API_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, "sk-test-12345", key)
}

func TestResolveAPIKeyFromConfig(t *testing.T) {
	key, err := ResolveAPIKey("config", "sk-from-config", "", "")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-config", key)
}

func TestResolveAPIKeyPrefersRequestValue(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-from-env")
	key, err := ResolveAPIKey("request", "", "TEST_API_KEY", "sk-from-request")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-request", key)

	key, err = ResolveAPIKey("request", "", "TEST_API_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", key)
}

func TestResolveAPIKeyMissingEnvVar(t *testing.T) {
	_, err := ResolveAPIKey("env", "", "NONEXISTENT_KEY_VAR", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestResolveAPIKeyEmptyConfig(t *testing.T) {
	_, err := ResolveAPIKey("config", "", "", "")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestResolveAPIKeyUnknownSource(t *testing.T) {
	_, err := ResolveAPIKey("vault", "", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown api_key_source")
}

func TestEnvVarFor(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", EnvVarFor("openai"))
	assert.Equal(t, "ANTHROPIC_API_KEY", EnvVarFor("anthropic"))
	assert.Equal(t, "GITHUB_TOKEN", EnvVarFor("github"))
}
