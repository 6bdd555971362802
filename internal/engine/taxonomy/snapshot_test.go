package taxonomy

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hejijunhao/amber/internal/engine/embedder"
	"github.com/hejijunhao/amber/internal/engine/traverse"
	"github.com/hejijunhao/amber/internal/model"
)

func TestSnapshotRoundTrip(t *testing.T) {
	tr := cacheFAQ(t)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, tr, "lexical"))
	got, info, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.Equal(t, SnapshotInfo{Embedder: "lexical", Dim: 64}, info)

	if diff := cmp.Diff(tr, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
	require.True(t, got.Cached(), "empty caches must survive the round trip")

	emb := embedder.NewLexical(64)
	for _, q := range []string{"when are you open", "holiday hours", "where is the shop", "opening hours please"} {
		vec, err := emb.Embed(context.Background(), q)
		require.NoError(t, err)
		want, err := traverse.Pass(tr, tr.Root(), vec, 0.5)
		require.NoError(t, err)
		have, err := traverse.Pass(got, got.Root(), vec, 0.5)
		require.NoError(t, err)
		if diff := cmp.Diff(want, have); diff != "" {
			t.Errorf("traversal of %q differs (-original +restored):\n%s", q, diff)
		}
	}
}

func TestSnapshotUncached(t *testing.T) {
	tr, err := Parse([]byte(faqJSON), FormatJSON, "faq")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, tr, ""))
	got, info, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	assert.False(t, got.Cached())
	assert.Zero(t, info.Dim)
}

func TestSnapshotFile(t *testing.T) {
	tr := cacheFAQ(t)
	path := filepath.Join(t.TempDir(), "faq.snap")
	require.NoError(t, SaveSnapshot(path, tr, "onnx:model.onnx:"))

	got, info, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, tr.Len(), got.Len())
	assert.True(t, got.Cached())
	assert.Equal(t, "onnx:model.onnx:", info.Embedder)

	_, _, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.snap"))
	assert.Error(t, err)
}

func TestReadSnapshotRejectsGarbage(t *testing.T) {
	_, _, err := ReadSnapshot(bytes.NewReader([]byte("not a snapshot")))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, &model.Tree{Nodes: []model.Node{{ID: 0, Parent: 3}}}, ""))
	_, _, err = ReadSnapshot(&buf)
	assert.ErrorIs(t, err, ErrInvalidTree)
}

func TestReadSnapshotRejectsMixedWidths(t *testing.T) {
	tr := cacheFAQ(t)
	leaf := tr.Node(tr.Node(tr.Root()).Children[0])
	leaf.Vectors = append(leaf.Vectors, make([]float32, 8))

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, tr, "lexical"))
	_, _, err := ReadSnapshot(&buf)
	assert.ErrorIs(t, err, ErrInvalidTree)
}
