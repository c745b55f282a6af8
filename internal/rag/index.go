package rag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

// ErrEmptyIndex is returned when searching an index without documents.
var ErrEmptyIndex = errors.New("index has no documents")

// Embedder turns texts into vectors. Implementations return one vector per
// input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Match is a retrieved chunk with its similarity score.
type Match struct {
	Text  string
	Score float64
	Pos   int
}

// Index is an in-memory vector store.
type Index struct {
	embedder Embedder
	chunks   []string
	vectors  [][]float64
}

// NewIndex embeds chunks and returns a searchable index.
func NewIndex(ctx context.Context, embedder Embedder, chunks []string) (*Index, error) {
	idx := &Index{embedder: embedder}
	if len(chunks) == 0 {
		return idx, nil
	}
	vecs, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	idx.chunks = chunks
	idx.vectors = vecs
	return idx, nil
}

// LoadFile reads path, splits it and builds an index over the chunks.
func LoadFile(ctx context.Context, path string, embedder Embedder, cfg SplitConfig) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return NewIndex(ctx, embedder, Split(string(data), cfg))
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.chunks)
}

// Search returns the k chunks most similar to query. Equal scores keep
// document order.
func (i *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	if i.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	qv, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(qv) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for the query", len(qv))
	}

	matches := make([]Match, len(i.chunks))
	for n, v := range i.vectors {
		matches[n] = Match{Text: i.chunks[n], Score: Cosine(qv[0], v), Pos: n}
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })

	if k <= 0 || k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

// Texts returns the text of each match.
func Texts(ms []Match) []string {
	out := make([]string, len(ms))
	for n, m := range ms {
		out[n] = m.Text
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or their lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for n := range a {
		dot += a[n] * b[n]
		na += a[n] * a[n]
		nb += b[n] * b[n]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
