package rag

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order, from paragraph to character level.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// SplitConfig controls chunking. Sizes are measured in characters.
type SplitConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Split breaks text into chunks of at most cfg.ChunkSize characters, preferring
// to cut at the coarsest separator available and carrying up to
// cfg.ChunkOverlap characters from one chunk into the next. Separators stay
// attached to the piece that follows them.
func Split(text string, cfg SplitConfig) []string {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return splitRecursive(text, seps, cfg)
}

func splitRecursive(text string, separators []string, cfg SplitConfig) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeep(text, separator) {
		if runeLen(piece) < cfg.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, merge(good, cfg)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, splitRecursive(piece, rest, cfg)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, merge(good, cfg)...)
	}
	return chunks
}

// splitKeep splits text on sep, prefixing every piece after the first with sep.
// An empty sep splits into characters.
func splitKeep(text, sep string) []string {
	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	for i, p := range strings.Split(text, sep) {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

// merge packs pieces into chunks no larger than ChunkSize, retaining a tail of
// at most ChunkOverlap characters when starting the next chunk.
func merge(pieces []string, cfg SplitConfig) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := runeLen(p)
		if total+n > cfg.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > cfg.ChunkOverlap || total+n > cfg.ChunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
