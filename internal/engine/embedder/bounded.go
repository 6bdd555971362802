package embedder

import (
	"context"
	"fmt"
	"time"
)

// Bounded enforces a deadline on providers that cannot be interrupted once a
// call is in flight (ONNX inference, a wedged connection). The inner call keeps
// running in the background after the deadline fires; its result is dropped.
type Bounded struct {
	inner   Embedder
	timeout time.Duration
}

// NewBounded wraps inner. timeout applies only when ctx carries no earlier
// deadline; zero means ctx alone bounds the call.
func NewBounded(inner Embedder, timeout time.Duration) *Bounded {
	return &Bounded{inner: inner, timeout: timeout}
}

type batchResult struct {
	vecs [][]float32
	err  error
}

// Embed produces a single embedding vector for text within the deadline.
func (b *Bounded) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns ctx.Err() as soon as the deadline passes, even if the
// inner provider is still working.
func (b *Bounded) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	done := make(chan batchResult, 1)
	go func() {
		vecs, err := b.inner.EmbedBatch(ctx, texts)
		done <- batchResult{vecs, err}
	}()

	select {
	case r := <-done:
		return r.vecs, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("embedder: %w", ctx.Err())
	}
}

// Close closes the inner provider.
func (b *Bounded) Close() error { return b.inner.Close() }
