package embedder

import (
	"context"
	"errors"
	"fmt"
)

// ErrDimension is returned when a provider yields vectors of an unexpected size.
var ErrDimension = errors.New("embedder: dimension mismatch")

// Embedder produces vector embeddings from text. Implementations must be
// deterministic for a fixed model version and safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// ONNXEmbedder wraps the ONNX runtime, tokenizer, and optional projection
// layer for local sentence-embedding inference (all-MiniLM-L12-v2 by default).
type ONNXEmbedder struct {
	session *onnxSession
	tok     *tokenizer
	proj    *projection // nil when the model output is used as-is
}

// New creates an ONNXEmbedder by loading the ONNX model and vocabulary, plus
// projection weights when projectionPath is non-empty. The pipeline is:
// tokenize → ONNX inference → mean pool → [dense projection] → L2 normalize.
func New(modelPath, vocabPath, projectionPath string) (*ONNXEmbedder, error) {
	sess, err := newONNXSession(modelPath)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	tok, err := newTokenizer(vocabPath, defaultMaxSeqLen)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("embedder: %w", err)
	}

	e := &ONNXEmbedder{session: sess, tok: tok}
	if projectionPath == "" {
		return e, nil
	}

	proj, err := loadProjection(projectionPath)
	if err != nil {
		sess.close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	if int(sess.embedDim) != proj.inDim {
		sess.close()
		return nil, fmt.Errorf("%w: ONNX output dim %d != projection input dim %d",
			ErrDimension, sess.embedDim, proj.inDim)
	}
	e.proj = proj
	return e, nil
}

// EmbedDim returns the final embedding dimensionality.
func (e *ONNXEmbedder) EmbedDim() int {
	if e.proj != nil {
		return e.proj.outDim
	}
	return int(e.session.embedDim)
}

// Embed produces a single embedding vector for the given text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch produces embedding vectors for multiple texts in one inference
// call, padded to the longest sequence in the batch. The ONNX runtime cannot
// be interrupted, so ctx is only checked before inference starts; wrap the
// embedder in Bounded to enforce deadlines.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	in := e.tok.encodeBatch(texts)
	hidden, err := e.session.infer(in)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	vecs := meanPool(hidden, in.attentionMask, in.size, in.seqLen, e.session.embedDim)
	for i, v := range vecs {
		if e.proj != nil {
			v = e.proj.apply(v)
		}
		normalize(v)
		vecs[i] = v
	}
	return vecs, nil
}

// Close releases ONNX Runtime resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.close()
	}
	return nil
}
