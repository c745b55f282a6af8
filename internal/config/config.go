package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the top-level application configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Store       StoreConfig       `toml:"store"`
	LLM         LLMConfig         `toml:"llm"`
	Embeddings  EmbeddingsConfig  `toml:"embeddings"`
	Summarizer  SummarizerConfig  `toml:"summarizer"`
	Understand  UnderstandConfig  `toml:"understand"`
	Refactoring RefactoringConfig `toml:"refactoring"`
	RAG         RAGConfig         `toml:"rag"`
	Scrape      ScrapeConfig      `toml:"scrape"`
	Workspace   WorkspaceConfig   `toml:"workspace"`
	Log         LogConfig         `toml:"log"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	RequestTimeout Duration `toml:"request_timeout"`
	RateLimit      float64  `toml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst      int      `toml:"rate_burst"`
	AllowOrigin    string   `toml:"allow_origin"`
	CacheCommits   bool     `toml:"cache_commits"`
	AnalysisWorker int      `toml:"analysis_workers"`
}

// StoreConfig selects the database backend.
type StoreConfig struct {
	Driver string `toml:"driver"` // sqlite, postgres, mysql
	DSN    string `toml:"dsn"`
}

// LLMConfig holds settings for the hosted chat model.
type LLMConfig struct {
	Provider     string `toml:"provider"` // openai, anthropic
	Model        string `toml:"model"`
	BaseURL      string `toml:"base_url"` // empty selects the provider default
	APIKeySource string `toml:"api_key_source"`
	APIKey       string `toml:"api_key"`
	MaxTokens    int    `toml:"max_tokens"`
}

// EmbeddingsConfig holds settings for the embedding model used by retrieval.
type EmbeddingsConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// SummarizerConfig controls the repository summarization CLI (aider).
type SummarizerConfig struct {
	Binary       string   `toml:"binary"`
	Message      string   `toml:"message"`
	ExtraArgs    string   `toml:"extra_args"`
	Timeout      Duration `toml:"timeout"`
	StartPattern string   `toml:"start_pattern"`
	EndPattern   string   `toml:"end_pattern"`
	MaxChars     int      `toml:"max_chars"`
	MinVersion   string   `toml:"min_version"`
}

// UnderstandConfig controls the SciTools Understand command line.
type UnderstandConfig struct {
	Binary     string   `toml:"binary"`
	Candidates []string `toml:"candidates"`
	Languages  string   `toml:"languages"`
	Timeout    Duration `toml:"timeout"`
	Metrics    []string `toml:"metrics"`
}

// RefactoringConfig controls the RefactoringMiner command line.
type RefactoringConfig struct {
	Binary  string   `toml:"binary"`
	Timeout Duration `toml:"timeout"`
}

// RAGConfig controls document retrieval for the question service.
type RAGConfig struct {
	DataFile     string `toml:"data_file"`
	ChunkSize    int    `toml:"chunk_size"`
	ChunkOverlap int    `toml:"chunk_overlap"`
	TopK         int    `toml:"top_k"`
}

// ScrapeConfig controls commit page text extraction.
type ScrapeConfig struct {
	Mode     string   `toml:"mode"` // http, browser
	Selector string   `toml:"selector"`
	Timeout  Duration `toml:"timeout"`
}

// WorkspaceConfig controls where repositories are cloned and results written.
type WorkspaceConfig struct {
	ReposDir       string   `toml:"repos_dir"`
	OutputDir      string   `toml:"output_dir"`
	CloneDepth     int      `toml:"clone_depth"`
	CleanupDelay   Duration `toml:"cleanup_delay"`
	CleanupRetries int      `toml:"cleanup_retries"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text, json
}

// Duration is a time.Duration that reads and writes TOML strings such as "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultSelector is the GitHub commit page container holding the diff text.
const DefaultSelector = ".Box-sc-g0xbh4-0.prc-PageLayout-PageLayoutContent-jzDMn"

// DefaultConfig returns a Config populated with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			RequestTimeout: Duration{10 * time.Minute},
			RateLimit:      5,
			RateBurst:      10,
			AllowOrigin:    "*",
			CacheCommits:   true,
			AnalysisWorker: 1,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "commitpro.db",
		},
		LLM: LLMConfig{
			Provider:     "openai",
			Model:        "gpt-4-turbo",
			APIKeySource: "env",
			MaxTokens:    600,
		},
		Embeddings: EmbeddingsConfig{
			Model: "text-embedding-ada-002",
		},
		Summarizer: SummarizerConfig{
			Binary:       "aider",
			Message:      "give me a brief summary of the project including a brief list of files (not all)",
			Timeout:      Duration{300 * time.Second},
			StartPattern: `(?i)summary`,
			EndPattern:   `(?m)^\s*Tokens:`,
			MaxChars:     2000,
			MinVersion:   ">= 0.50.0",
		},
		Understand: UnderstandConfig{
			Binary: "",
			Candidates: []string{
				`C:\Program Files\SciTools\bin\pc-win64\und.exe`,
				"/Applications/Understand.app/Contents/MacOS/und",
				"/opt/scitools/bin/und",
				"/usr/local/bin/und",
			},
			Languages: "all",
			Timeout:   Duration{30 * time.Minute},
			Metrics: []string{
				"CountLineCode",
				"CountClassCoupled",
				"PercentLackOfCohesion",
				"SumCyclomatic",
				"MaxInheritanceTree",
				"CountClassDerived",
				"Cyclomatic",
			},
		},
		Refactoring: RefactoringConfig{
			Binary:  "RefactoringMiner",
			Timeout: Duration{120 * time.Second},
		},
		RAG: RAGConfig{
			DataFile:     "data.txt",
			ChunkSize:    1000,
			ChunkOverlap: 20,
			TopK:         4,
		},
		Scrape: ScrapeConfig{
			Mode:     "http",
			Selector: DefaultSelector,
			Timeout:  Duration{30 * time.Second},
		},
		Workspace: WorkspaceConfig{
			ReposDir:       "repos",
			OutputDir:      "output",
			CloneDepth:     10,
			CleanupDelay:   Duration{time.Second},
			CleanupRetries: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file on top of DefaultConfig. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
