package taxonomy

import (
	"context"
	"fmt"

	"github.com/hejijunhao/amber/internal/engine/embedder"
	"github.com/hejijunhao/amber/internal/model"
)

// batchSize bounds the number of examples sent to the provider per call.
const batchSize = 64

// CacheEmbeddings encodes every node's examples and stores the vectors on the
// node, positionally aligned with Examples. Nodes without examples get an
// empty, non-nil cache. Existing caches are overwritten, so calling it twice
// with a deterministic provider yields identical vectors.
func CacheEmbeddings(ctx context.Context, t *model.Tree, emb embedder.Embedder) error {
	type ref struct {
		node model.NodeID
		idx  int
	}
	var texts []string
	var refs []ref
	for i := range t.Nodes {
		n := &t.Nodes[i]
		n.Vectors = make([][]float32, len(n.Examples))
		for j, ex := range n.Examples {
			texts = append(texts, ex)
			refs = append(refs, ref{n.ID, j})
		}
	}

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		vecs, err := emb.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			dropCache(t)
			return fmt.Errorf("taxonomy: cache embeddings: %w", err)
		}
		if len(vecs) != end-start {
			dropCache(t)
			return fmt.Errorf("taxonomy: cache embeddings: %w: got %d vectors for %d examples",
				embedder.ErrDimension, len(vecs), end-start)
		}
		for k, v := range vecs {
			r := refs[start+k]
			t.Nodes[r.node].Vectors[r.idx] = v
		}
	}
	return nil
}

// dropCache leaves a failed build looking unbuilt rather than half-built.
func dropCache(t *model.Tree) {
	for i := range t.Nodes {
		t.Nodes[i].Vectors = nil
	}
}
