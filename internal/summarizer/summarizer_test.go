package summarizer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/julianshen/commitpro/internal/config"
	"github.com/julianshen/commitpro/internal/logging"
	"github.com/julianshen/commitpro/internal/procrun"
	"github.com/julianshen/commitpro/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAider writes a script that records its arguments and prints body.
func fakeAider(t *testing.T, body string) (bin, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args.txt")
	bin = filepath.Join(dir, "aider")
	script := "#!/bin/sh\nfor a in \"$@\"; do echo \"$a\" >> " + argsFile + "; done\n" + body + "\n"
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile
}

func newTestSummarizer(t *testing.T, bin string, mutate func(*config.SummarizerConfig)) *Summarizer {
	t.Helper()
	cfg := config.DefaultConfig().Summarizer
	cfg.Binary = bin
	if mutate != nil {
		mutate(&cfg)
	}
	ws := workspace.NewManager(workspace.Options{Logger: logging.Discard()})
	s, err := New(cfg, ws, logging.Discard())
	require.NoError(t, err)
	return s
}

func TestAiderArgs(t *testing.T) {
	a := Aider{ExtraArgs: []string{"--model", "gpt-4o"}}
	assert.Equal(t, "aider", a.Binary())
	assert.Equal(t, []string{
		"--no-gitignore", "--reasoning-effort", "2", "--yes-always",
		"--message", "hi", "--model", "gpt-4o", "/repo",
	}, a.Args("/repo", "hi"))
}

func TestSummarizeLocalRepo(t *testing.T) {
	bin, argsFile := fakeAider(t, `printf 'Aider v0.80\nSummary of the project:\nA tiny parser.\nTokens: 1k sent\n'`)
	s := newTestSummarizer(t, bin, nil)
	repo := t.TempDir()

	sum, err := s.Summarize(context.Background(), repo, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Summary of the project:\nA tiny parser.", sum.Excerpt)
	assert.False(t, sum.Truncated)
	assert.Contains(t, sum.Raw, "Aider v0.80")

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(recorded)), "\n")
	assert.Equal(t, repo, lines[len(lines)-1])
	assert.Contains(t, lines, DefaultMessage)
}

func TestSummarizeJSONVariantAppendsSuffix(t *testing.T) {
	bin, argsFile := fakeAider(t, `echo '{"summary": "x"}'`)
	s := newTestSummarizer(t, bin, nil)

	_, err := s.Summarize(context.Background(), t.TempDir(), Options{JSON: true})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), DefaultMessage+" in a json format")
}

func TestSummarizeExtraArgs(t *testing.T) {
	bin, argsFile := fakeAider(t, `echo summary`)
	s := newTestSummarizer(t, bin, func(c *config.SummarizerConfig) {
		c.ExtraArgs = `--model "gpt 4o"`
	})

	_, err := s.Summarize(context.Background(), t.TempDir(), Options{})
	require.NoError(t, err)

	recorded, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "gpt 4o\n")
}

func TestSummarizeNonZeroExit(t *testing.T) {
	bin, _ := fakeAider(t, `echo "model not found" 1>&2; exit 2`)
	s := newTestSummarizer(t, bin, nil)

	_, err := s.Summarize(context.Background(), t.TempDir(), Options{})
	require.Error(t, err)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.ExitCode)
	assert.Contains(t, te.Error(), "model not found")
}

func TestSummarizeTimeout(t *testing.T) {
	bin, _ := fakeAider(t, `sleep 5`)
	s := newTestSummarizer(t, bin, func(c *config.SummarizerConfig) {
		c.Timeout = config.Duration{Duration: 100 * time.Millisecond}
	})

	_, err := s.Summarize(context.Background(), t.TempDir(), Options{})
	assert.ErrorIs(t, err, procrun.ErrTimeout)
}

func TestSummarizeMissingPath(t *testing.T) {
	bin, _ := fakeAider(t, `echo summary`)
	s := newTestSummarizer(t, bin, nil)

	_, err := s.Summarize(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, err, workspace.ErrPathNotFound)
}

func TestSummarizeEmptyOutput(t *testing.T) {
	bin, _ := fakeAider(t, `true`)
	s := newTestSummarizer(t, bin, nil)

	_, err := s.Summarize(context.Background(), t.TempDir(), Options{})
	assert.ErrorIs(t, err, ErrNoSummary)
}

// fakeGitOnPath puts a git script first on PATH whose clone only creates the
// destination directory.
func fakeGitOnPath(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\nif [ \"$1\" = clone ]; then\n  for a in \"$@\"; do dest=\"$a\"; done\n  mkdir -p \"$dest\"\n  echo cloned > \"$dest/README\"\nfi\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "git"), []byte(script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestSummarizeRemoteCloneIsRemoved(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		timeout time.Duration
		wantErr bool
	}{
		{name: "success", body: `printf 'Summary:\nA service.\n'`},
		{name: "non-zero exit", body: `echo boom 1>&2; exit 3`, wantErr: true},
		{name: "timeout", body: `sleep 5`, timeout: 100 * time.Millisecond, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeGitOnPath(t)
			bin, argsFile := fakeAider(t, tt.body)
			reposDir := t.TempDir()
			cfg := config.DefaultConfig().Summarizer
			cfg.Binary = bin
			if tt.timeout > 0 {
				cfg.Timeout = config.Duration{Duration: tt.timeout}
			}
			ws := workspace.NewManager(workspace.Options{ReposDir: reposDir, CloneDepth: 1, Logger: logging.Discard()})
			s, err := New(cfg, ws, logging.Discard())
			require.NoError(t, err)

			sum, err := s.Summarize(context.Background(), "https://github.com/acme/widget.git", Options{})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "Summary:\nA service.", sum.Excerpt)
			}

			recorded, err := os.ReadFile(argsFile)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(recorded)), "\n")
			assert.True(t, strings.HasPrefix(lines[len(lines)-1], filepath.Join(reposDir, "widget_")), lines[len(lines)-1])

			entries, err := os.ReadDir(reposDir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestNewRejectsBadExtraArgs(t *testing.T) {
	cfg := config.DefaultConfig().Summarizer
	cfg.ExtraArgs = `--message "unterminated`
	_, err := New(cfg, workspace.NewManager(workspace.Options{}), nil)
	assert.Error(t, err)
}
