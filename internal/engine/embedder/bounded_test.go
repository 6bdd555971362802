package embedder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// stuckEmbedder ignores ctx and blocks until release is closed.
type stuckEmbedder struct {
	release chan struct{}
}

func (s *stuckEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	<-s.release
	return []float32{1}, nil
}

func (s *stuckEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	<-s.release
	return [][]float32{{1}}, nil
}

func (s *stuckEmbedder) Close() error { return nil }

func TestBoundedTimesOutStuckProvider(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stuck := &stuckEmbedder{release: make(chan struct{})}
	b := NewBounded(stuck, 20*time.Millisecond)

	start := time.Now()
	_, err := b.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)

	// Let the abandoned call finish so no goroutine outlives the test.
	close(stuck.release)
	time.Sleep(10 * time.Millisecond)
}

func TestBoundedPassesThrough(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewBounded(NewLexical(8), time.Second)
	v, err := b.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 8)
}

func TestBoundedHonoursCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBounded(NewLexical(8), 0).Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, Providers(), []string{"lexical", "onnx", "openai", "tei"})

	e, err := Open("lexical", Options{Dim: 12})
	require.NoError(t, err)
	v, _ := e.Embed(context.Background(), "a")
	assert.Len(t, v, 12)

	_, err = Open("nope", Options{})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = Open("tei", Options{})
	assert.Error(t, err)
}
