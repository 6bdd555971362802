package embedder

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestLexicalIdenticalTexts(t *testing.T) {
	l := NewLexical(0)
	a, _ := l.Embed(context.Background(), "Tell me about your projects")
	b, _ := l.Embed(context.Background(), "tell me, about your PROJECTS!")
	if got := cosine(a, b); math.Abs(got-1) > 1e-6 {
		t.Errorf("expected cosine 1 for texts differing only in case and punctuation, got %f", got)
	}
}

func TestLexicalOverlapOrdering(t *testing.T) {
	l := NewLexical(DefaultLexicalDim)
	q, _ := l.Embed(context.Background(), "what projects have you built")
	near, _ := l.Embed(context.Background(), "what projects")
	far, _ := l.Embed(context.Background(), "favourite food")
	if cosine(q, near) <= cosine(q, far) {
		t.Errorf("shared words should score higher: near=%f far=%f", cosine(q, near), cosine(q, far))
	}
	if got := cosine(q, far); got != 0 {
		t.Errorf("disjoint texts should score 0, got %f", got)
	}
}

func TestLexicalEmptyText(t *testing.T) {
	l := NewLexical(16)
	v, err := l.Embed(context.Background(), "  ?! ")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 16 {
		t.Fatalf("expected dim 16, got %d", len(v))
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestLexicalBatch(t *testing.T) {
	l := NewLexical(64)
	vecs, err := l.EmbedBatch(context.Background(), []string{"a b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs, _ := l.EmbedBatch(context.Background(), nil); vecs != nil {
		t.Errorf("expected nil for empty batch, got %v", vecs)
	}
}
