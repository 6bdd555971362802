package embedder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanPool(t *testing.T) {
	tests := []struct {
		name   string
		hidden []float32
		mask   []int64
		size   int64
		seqLen int64
		dim    int64
		want   [][]float32
	}{
		{
			name:   "padding ignored",
			hidden: []float32{1, 2, 3, 4, 5, 6},
			mask:   []int64{1, 1, 0},
			size:   1, seqLen: 3, dim: 2,
			want: [][]float32{{2, 3}},
		},
		{
			name:   "batch rows independent",
			hidden: []float32{10, 20, 30, 40, 5, 15, 0, 0},
			mask:   []int64{1, 1, 1, 0},
			size:   2, seqLen: 2, dim: 2,
			want: [][]float32{{20, 30}, {5, 15}},
		},
		{
			name:   "no real tokens",
			hidden: []float32{1, 2, 3, 4},
			mask:   []int64{0, 0},
			size:   1, seqLen: 2, dim: 2,
			want: [][]float32{{0, 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := meanPool(tt.hidden, tt.mask, tt.size, tt.seqLen, tt.dim)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDeltaSlice(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func TestMeanPoolRowsDoNotAlias(t *testing.T) {
	got := meanPool([]float32{1, 1, 2, 2}, []int64{1, 1}, 2, 1, 2)
	got[0][0] = 99
	assert.Equal(t, float32(2), got[1][0])
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v, 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)

	zero := []float32{0, 0, 0}
	normalize(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)
}
