package traverse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hejijunhao/amber/internal/engine/classifier"
	"github.com/hejijunhao/amber/internal/model"
)

// fixture:
//
//	root
//	├── work   {1,0,0,0}
//	│   ├── go     {1,1,0,0}
//	│   └── rust   {1,0,1,0}
//	└── hobby  {0,0,0,1}
type fixture struct {
	tree                    *model.Tree
	work, golang, rust, hob model.NodeID
}

func newFixture() fixture {
	tr := model.NewTree("portfolio", model.Response{"hi"})
	f := fixture{tree: tr}
	f.work = tr.Add(tr.Root(), "Work", "work", []string{"work"}, model.Response{"which work?"})
	f.golang = tr.Add(f.work, "Go", "go", []string{"go"}, model.Response{"go answer"})
	f.rust = tr.Add(f.work, "Rust", "rust", []string{"rust"}, model.Response{"rust answer"})
	f.hob = tr.Add(tr.Root(), "Hobbies", "hobby", []string{"hobby"}, model.Response{"hobby answer"})
	vecs := map[model.NodeID][]float32{
		tr.Root(): nil,
		f.work:    {1, 0, 0, 0},
		f.golang:  {1, 1, 0, 0},
		f.rust:    {1, 0, 1, 0},
		f.hob:     {0, 0, 0, 1},
	}
	for id, v := range vecs {
		if v == nil {
			tr.Node(id).Vectors = [][]float32{}
			continue
		}
		tr.Node(id).Vectors = [][]float32{v}
	}
	return f
}

func TestPassReachesLeaf(t *testing.T) {
	f := newFixture()
	out, err := Pass(f.tree, f.tree.Root(), []float32{1, 1, 0, 0}, 0.6)
	require.NoError(t, err)

	assert.True(t, out.Leaf)
	assert.True(t, out.Advanced)
	assert.Equal(t, f.golang, out.Current)
	assert.Equal(t, f.golang, out.Parent)
	assert.Equal(t, f.golang, out.Resolved())
	assert.InDelta(t, 1.0, out.Confidence, 1e-9)
	require.Len(t, out.Trace, 2)
	assert.Equal(t, "work", out.Trace[0].Label)
	assert.Equal(t, "go", out.Trace[1].Label)
}

func TestPassStallsAtInternalNode(t *testing.T) {
	f := newFixture()
	// cos with work = 1, with go and rust = 1/sqrt2 ≈ 0.707
	out, err := Pass(f.tree, f.tree.Root(), []float32{1, 0, 0, 0}, 0.8)
	require.NoError(t, err)

	assert.False(t, out.Leaf)
	assert.True(t, out.Advanced)
	assert.Equal(t, f.work, out.Parent)
	assert.Equal(t, f.golang, out.Current, "unreached target is the first-declared tied child")
	assert.Equal(t, f.work, out.Resolved())
	assert.InDelta(t, 0.7071, out.Confidence, 1e-4)
}

func TestPassFailsAtRoot(t *testing.T) {
	f := newFixture()
	out, err := Pass(f.tree, f.tree.Root(), []float32{0, 0, 0.2, 1}, 0.99)
	require.NoError(t, err)

	assert.False(t, out.Advanced)
	assert.False(t, out.Leaf)
	assert.Equal(t, f.tree.Root(), out.Parent)
	assert.Equal(t, f.hob, out.Current)
	assert.Len(t, out.Trace, 1)
}

func TestPassFromContextNode(t *testing.T) {
	f := newFixture()
	out, err := Pass(f.tree, f.work, []float32{0, 0, 1, 0}, 0.6)
	require.NoError(t, err)

	assert.True(t, out.Advanced)
	assert.True(t, out.Leaf)
	assert.Equal(t, f.rust, out.Current)
	assert.Equal(t, f.work, out.Start)
}

func TestPassFromLeaf(t *testing.T) {
	f := newFixture()
	out, err := Pass(f.tree, f.hob, []float32{0, 0, 0, 1}, 0.5)
	require.NoError(t, err)

	assert.False(t, out.Advanced)
	assert.True(t, out.Leaf)
	assert.Zero(t, out.Confidence)
	assert.Empty(t, out.Trace)
}

func TestPassThresholdIsInclusive(t *testing.T) {
	f := newFixture()
	out, err := Pass(f.tree, f.tree.Root(), []float32{0, 0, 0, 1}, 1.0)
	require.NoError(t, err)
	// The hobby vector matches exactly, so the score equals the threshold.
	assert.True(t, out.Advanced)
	assert.Equal(t, f.hob, out.Current)
}

func TestPassCacheMissing(t *testing.T) {
	f := newFixture()
	f.tree.Node(f.rust).Vectors = nil
	_, err := Pass(f.tree, f.tree.Root(), []float32{1, 1, 0, 0}, 0.5)
	assert.ErrorIs(t, err, classifier.ErrCacheMissing)
}
