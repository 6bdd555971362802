package embedder

import "math"

// meanPool averages the hidden states of the real (mask == 1) tokens of each
// sequence, the pooling all-MiniLM-L12-v2 was trained with. hidden is flat
// [size * seqLen * dim]; mask is flat [size * seqLen]. A sequence without
// real tokens pools to the zero vector.
func meanPool(hidden []float32, mask []int64, size, seqLen, dim int64) [][]float32 {
	out := make([][]float32, size)
	for b := range size {
		vec := make([]float32, dim)
		var n float32
		for s := range seqLen {
			if mask[b*seqLen+s] != 1 {
				continue
			}
			n++
			tok := hidden[(b*seqLen+s)*dim : (b*seqLen+s+1)*dim]
			for d, h := range tok {
				vec[d] += h
			}
		}
		if n > 0 {
			for d := range vec {
				vec[d] /= n
			}
		}
		out[b] = vec
	}
	return out
}

// normalize scales v to unit L2 length in place, matching the Normalize
// module of the sentence-transformers pipeline. Zero vectors are left as is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
