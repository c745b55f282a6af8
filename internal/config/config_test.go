package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4-turbo", cfg.LLM.Model)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "aider", cfg.Summarizer.Binary)
	assert.Equal(t, 300*time.Second, cfg.Summarizer.Timeout.Duration)
	assert.Equal(t, 2000, cfg.Summarizer.MaxChars)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 20, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 10, cfg.Workspace.CloneDepth)
	assert.Equal(t, 5, cfg.Workspace.CleanupRetries)
}

func TestLoadFromFile(t *testing.T) {
	tomlContent := `
[llm]
provider = "anthropic"
model = "claude-sonnet-4-5"
api_key_source = "request"

[summarizer]
timeout = "90s"
max_chars = 500
extra_args = "--model gpt-4o --no-auto-commits"

[store]
driver = "postgres"
dsn = "postgres://localhost/commitpro"
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(tomlContent), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.Equal(t, "request", cfg.LLM.APIKeySource)
	assert.Equal(t, 90*time.Second, cfg.Summarizer.Timeout.Duration)
	assert.Equal(t, 500, cfg.Summarizer.MaxChars)
	assert.Equal(t, "--model gpt-4o --no-auto-commits", cfg.Summarizer.ExtraArgs)
	assert.Equal(t, "postgres", cfg.Store.Driver)

	// Untouched sections keep their defaults.
	assert.Equal(t, "aider", cfg.Summarizer.Binary)
	assert.Equal(t, 4, cfg.RAG.TopK)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.Workspace.CloneDepth)
}

func TestLoadInvalidTOML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("[invalid toml..."), 0644))

	_, err := Load(tmpFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoadInvalidDuration(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("[summarizer]\ntimeout = \"soon\"\n"), 0644))

	_, err := Load(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := DefaultConfig()
	cfg.LLM.Model = "gpt-4o"
	cfg.Scrape.Timeout = Duration{45 * time.Second}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.LLM.Model)
	assert.Equal(t, 45*time.Second, loaded.Scrape.Timeout.Duration)
	assert.Equal(t, cfg.Understand.Candidates, loaded.Understand.Candidates)
}
