package summarizer

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultExtract = ExtractConfig{
	StartPattern: `(?i)summary`,
	EndPattern:   `(?m)^\s*Tokens:`,
	MaxChars:     2000,
}

const aiderOutput = "\x1b[1mAider v0.82.0\x1b[0m\n" +
	"Main model: gpt-4o with diff edit format\n" +
	"Repo-map: using 1024 tokens\n" +
	"\n" +
	"## Project Summary\n" +
	"This is a CLI for shortening URLs.\n" +
	"\n" +
	"Key files:\n" +
	"- main.go: entry point\n" +
	"- store/redis.go: persistence\n" +
	"\n" +
	"Tokens: 2.1k sent, 180 received. Cost: $0.01 message.\n"

func TestExtractSummaryBetweenMarkers(t *testing.T) {
	got, truncated, err := Extract(aiderOutput, defaultExtract)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.True(t, strings.HasPrefix(got, "## Project Summary"))
	assert.Contains(t, got, "store/redis.go")
	assert.NotContains(t, got, "Tokens:")
	assert.NotContains(t, got, "Aider v0.82.0")
}

func TestExtractWithoutStartUsesWholeOutput(t *testing.T) {
	out := "The repository implements a tiny web server.\nTokens: 10 sent\n"
	got, _, err := Extract(out, defaultExtract)
	require.NoError(t, err)
	assert.Equal(t, "The repository implements a tiny web server.", got)
}

func TestExtractDropsEchoedPrompt(t *testing.T) {
	msg := "give me a brief summary of the project"
	out := msg + "\nThe project parses logs.\nSummary: small and focused.\n"
	got, _, err := Extract(out, ExtractConfig{StartPattern: `(?i)summary`, Echo: msg})
	require.NoError(t, err)
	assert.Equal(t, "Summary: small and focused.", got)
}

func TestExtractTruncatesToMaxRunes(t *testing.T) {
	out := "Summary: " + strings.Repeat("é", 50)
	got, truncated, err := Extract(out, ExtractConfig{StartPattern: "Summary", MaxChars: 20})
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, 20, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestExtractEmptyOutput(t *testing.T) {
	_, _, err := Extract("\x1b[0m   \n\n", defaultExtract)
	assert.ErrorIs(t, err, ErrNoSummary)
}

func TestExtractInvalidPattern(t *testing.T) {
	_, _, err := Extract("summary", ExtractConfig{StartPattern: "("})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start pattern")
}

func TestExtractEndMarkerOnHeadingLineIsIgnored(t *testing.T) {
	out := "Summary Tokens: heading\nbody line\nTokens: 5\n"
	got, _, err := Extract(out, ExtractConfig{StartPattern: "Summary", EndPattern: `Tokens:`})
	require.NoError(t, err)
	assert.Equal(t, "Summary Tokens: heading\nbody line", got)
}

func TestStripANSI(t *testing.T) {
	in := "\x1b[32mgreen\x1b[0m \x1b]8;;http://x\x07link\x1b]8;;\x07\nspin 1\rspin 2\rdone\r\n"
	assert.Equal(t, "green link\ndone\n", StripANSI(in))
}

func TestExtractEndMarkerOnFirstLineWithoutHeading(t *testing.T) {
	out := "The service parses feeds. Cost: $0.01\nleftover\n"
	got, _, err := Extract(out, ExtractConfig{StartPattern: `(?i)summary`, EndPattern: `Cost:`})
	require.NoError(t, err)
	assert.Equal(t, "The service parses feeds.", got)
}
