// Package classifier scores a query vector against the children of one
// intent-tree node.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/hejijunhao/amber/internal/model"
)

// ErrCacheMissing means a node was classified before the embedding cache
// builder visited it. It is a setup bug, never a user-facing condition.
var ErrCacheMissing = errors.New("classifier: example vectors not cached")

// ErrDimension means the query and the cached example vectors come from
// embedders of different widths, typically a tree cached by another model.
var ErrDimension = errors.New("classifier: query and example vectors differ in size")

// Result is the winning child of one level and its score.
type Result struct {
	Child      model.NodeID
	Confidence float64
}

// BestChild scores every child of parent by the maximum cosine similarity
// between query and the child's example vectors, and returns the highest.
// Only a strictly greater score displaces the current best, so the
// first-declared child wins ties. A leaf parent yields Child == model.NoNode.
func BestChild(t *model.Tree, parent model.NodeID, query []float32) (Result, error) {
	children := t.Node(parent).Children
	if len(children) == 0 {
		return Result{Child: model.NoNode}, nil
	}

	best := Result{Child: model.NoNode}
	for _, id := range children {
		child := t.Node(id)
		if !child.Cached() {
			return Result{}, fmt.Errorf("%w: node %q", ErrCacheMissing, child.Label)
		}
		for _, v := range child.Vectors {
			if len(v) != len(query) {
				return Result{}, fmt.Errorf("%w: node %q has %d, query has %d", ErrDimension, child.Label, len(v), len(query))
			}
		}
		score := MaxCosine(query, child.Vectors)
		if best.Child == model.NoNode || score > best.Confidence {
			best = Result{Child: id, Confidence: score}
		}
	}
	return best, nil
}

// MaxCosine returns the highest cosine similarity between query and any
// vector in set, or 0 for an empty set.
func MaxCosine(query []float32, set [][]float32) float64 {
	if len(set) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, v := range set {
		if s := Cosine(query, v); s > best {
			best = s
		}
	}
	return best
}

// Cosine returns the cosine similarity of a and b. Vectors of different
// length, empty vectors and zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
