package embedder

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultLexicalDim is the vector width of the lexical provider.
const DefaultLexicalDim = 2048

// Lexical is a hashed bag-of-words provider. It has no semantic knowledge:
// two texts score high only when they share words. It needs no model files,
// which makes it the offline fallback and the provider tests run against.
type Lexical struct {
	dim int
}

// NewLexical creates a lexical provider producing dim-wide vectors.
func NewLexical(dim int) *Lexical {
	if dim <= 0 {
		dim = DefaultLexicalDim
	}
	return &Lexical{dim: dim}
}

// Embed hashes every word of text into a count vector.
func (l *Lexical) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dim)
	for _, w := range lexicalWords(text) {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(l.dim)]++
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (l *Lexical) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *Lexical) Close() error { return nil }

// lexicalWords lowercases text and splits it on anything that is not a
// letter or digit.
func lexicalWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
