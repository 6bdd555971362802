// Package phrases holds the small fixed phrase sets the orchestrator matches
// whole utterances against: connector phrases and clear-context commands.
package phrases

import (
	"context"
	"fmt"

	"github.com/hejijunhao/amber/internal/engine/classifier"
	"github.com/hejijunhao/amber/internal/engine/embedder"
)

// DefaultConnectors mark a sub-query as continuing the previous one.
var DefaultConnectors = []string{
	"just like that", "for the same", "similarly", "similar to the previous", "for that", "for it",
}

// DefaultClears reset the conversation context.
var DefaultClears = []string{
	"delete", "delete context", "delete history",
	"clear", "clear context", "clear history",
	"reset", "reset context", "reset chat",
	"forget", "forget all",
}

// Set is a phrase list with one cached vector per phrase.
type Set struct {
	Phrases []string
	Vectors [][]float32
}

// Embed encodes phrases in one batch.
func Embed(ctx context.Context, emb embedder.Embedder, phrases []string) (*Set, error) {
	s := &Set{Phrases: phrases}
	if len(phrases) == 0 {
		return s, nil
	}
	vecs, err := emb.EmbedBatch(ctx, phrases)
	if err != nil {
		return nil, fmt.Errorf("phrases: %w", err)
	}
	s.Vectors = vecs
	return s, nil
}

// Match returns the highest similarity between query and any phrase.
// An empty set never matches.
func (s *Set) Match(query []float32) float64 {
	if s == nil {
		return 0
	}
	return classifier.MaxCosine(query, s.Vectors)
}
