package summarizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrNoSummary is returned when the tool output holds no usable excerpt.
var ErrNoSummary = errors.New("no summary in tool output")

const ellipsis = "…"

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[@-Z\\-_]`)

// ExtractConfig controls how an excerpt is cut from raw tool output.
type ExtractConfig struct {
	StartPattern string // regexp; the excerpt starts at the line holding the first match
	EndPattern   string // regexp; the excerpt stops before the first match after the start
	MaxChars     int    // rune bound including the ellipsis; 0 disables
	Echo         string // lines containing this text are dropped before matching
}

// StripANSI removes terminal escape sequences and carriage-return redraws.
func StripANSI(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// Spinners redraw with \r; keep what was last drawn.
		if j := strings.LastIndex(strings.TrimRight(line, "\r"), "\r"); j >= 0 {
			line = line[j+1:]
		}
		lines[i] = strings.TrimRight(line, "\r")
	}
	return strings.Join(lines, "\n")
}

// Extract returns the bounded excerpt of output selected by cfg and whether
// it was truncated.
func Extract(output string, cfg ExtractConfig) (string, bool, error) {
	text := StripANSI(output)
	if cfg.Echo != "" {
		text = dropLines(text, cfg.Echo)
	}

	started := false
	if cfg.StartPattern != "" {
		startRe, err := regexp.Compile(cfg.StartPattern)
		if err != nil {
			return "", false, fmt.Errorf("start pattern: %w", err)
		}
		if loc := startRe.FindStringIndex(text); loc != nil {
			lineStart := strings.LastIndex(text[:loc[0]], "\n") + 1
			text = text[lineStart:]
			started = true
		}
	}

	if cfg.EndPattern != "" {
		endRe, err := regexp.Compile(cfg.EndPattern)
		if err != nil {
			return "", false, fmt.Errorf("end pattern: %w", err)
		}
		// Search past the heading line so an end marker never cuts it.
		offset := 0
		if started {
			offset = strings.Index(text, "\n")
			if offset < 0 {
				offset = len(text)
			}
		}
		if loc := endRe.FindStringIndex(text[offset:]); loc != nil {
			text = text[:offset+loc[0]]
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, ErrNoSummary
	}

	if cfg.MaxChars > 0 && utf8.RuneCountInString(text) > cfg.MaxChars {
		return truncateRunes(text, cfg.MaxChars), true, nil
	}
	return text, false, nil
}

func truncateRunes(s string, max int) string {
	keep := max - utf8.RuneCountInString(ellipsis)
	if keep < 0 {
		keep = 0
	}
	n := 0
	for i := range s {
		if n == keep {
			return strings.TrimRightFunc(s[:i], isSpace) + ellipsis
		}
		n++
	}
	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func dropLines(text, needle string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, needle) {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
