package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/hejijunhao/amber/internal/httpclient"
)

// TEI embeds text through a Hugging Face text-embeddings-inference server.
type TEI struct {
	client *httpclient.Client
}

// NewTEI creates a TEI provider for the server at baseURL. token may be empty.
func NewTEI(baseURL, token string, opts ...httpclient.Option) *TEI {
	opts = append([]httpclient.Option{httpclient.WithTimeout(15 * time.Second)}, opts...)
	return &TEI{client: httpclient.New(baseURL, token, opts...)}
}

type teiRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
}

// Embed produces a single embedding vector for text.
func (t *TEI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := t.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch posts all texts to /embed in one request.
func (t *TEI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out [][]float32
	if err := t.client.PostJSON(ctx, "/embed", teiRequest{Inputs: texts, Normalize: true}, &out); err != nil {
		return nil, fmt.Errorf("embedder: tei: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("embedder: tei: got %d vectors for %d inputs", len(out), len(texts))
	}
	return out, nil
}

func (t *TEI) Close() error { return nil }
