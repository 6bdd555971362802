package classifier

import (
	"errors"
	"math"
	"testing"

	"github.com/hejijunhao/amber/internal/model"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMaxCosine(t *testing.T) {
	q := []float32{1, 0}
	set := [][]float32{{0, 1}, {1, 1}, {-1, 0}}
	if got, want := MaxCosine(q, set), 1/math.Sqrt2; math.Abs(got-want) > 1e-9 {
		t.Errorf("MaxCosine = %f, want %f", got, want)
	}
	if got := MaxCosine(q, nil); got != 0 {
		t.Errorf("MaxCosine(empty) = %f, want 0", got)
	}
}

// levelTree builds root -> children with one cached vector each.
func levelTree(vecs ...[]float32) *model.Tree {
	tr := model.NewTree("test", model.Response{"root"})
	for i, v := range vecs {
		id := tr.Add(tr.Root(), "topic", string(rune('a'+i)), []string{"x"}, model.Response{"r"})
		tr.Node(id).Vectors = [][]float32{v}
	}
	return tr
}

func TestBestChildPicksHighest(t *testing.T) {
	tr := levelTree([]float32{0, 1}, []float32{1, 0.1}, []float32{1, 1})
	res, err := BestChild(tr, tr.Root(), []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.Node(res.Child).Label; got != "b" {
		t.Errorf("best child = %q, want b", got)
	}
}

func TestBestChildTieKeepsFirst(t *testing.T) {
	tr := levelTree([]float32{0, 1}, []float32{1, 0}, []float32{2, 0})
	res, err := BestChild(tr, tr.Root(), []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.Node(res.Child).Label; got != "b" {
		t.Errorf("tie should keep first-declared child, got %q", got)
	}
	if math.Abs(res.Confidence-1) > 1e-9 {
		t.Errorf("confidence = %f, want 1", res.Confidence)
	}
}

func TestBestChildAllNegative(t *testing.T) {
	tr := levelTree([]float32{-1, 0}, []float32{-1, -1})
	res, err := BestChild(tr, tr.Root(), []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Child == model.NoNode {
		t.Fatal("a parent with children must always yield a child")
	}
	if got := tr.Node(res.Child).Label; got != "b" {
		t.Errorf("best child = %q, want b", got)
	}
}

func TestBestChildCachedButNoExamples(t *testing.T) {
	tr := levelTree([]float32{0, 1})
	id := tr.Add(tr.Root(), "empty", "e", nil, model.Response{"r"})
	tr.Node(id).Vectors = [][]float32{}
	res, err := BestChild(tr, tr.Root(), []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Node(res.Child).Label != "a" {
		t.Errorf("expected a, got %q", tr.Node(res.Child).Label)
	}
}

func TestBestChildCacheMissing(t *testing.T) {
	tr := levelTree([]float32{1, 0})
	tr.Add(tr.Root(), "uncached", "u", []string{"x"}, model.Response{"r"})
	_, err := BestChild(tr, tr.Root(), []float32{1, 0})
	if !errors.Is(err, ErrCacheMissing) {
		t.Fatalf("expected ErrCacheMissing, got %v", err)
	}
}

func TestBestChildLeaf(t *testing.T) {
	tr := levelTree([]float32{1, 0})
	res, err := BestChild(tr, 1, []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if res.Child != model.NoNode {
		t.Errorf("leaf parent should yield NoNode, got %d", res.Child)
	}
}

func TestBestChildDimensionMismatch(t *testing.T) {
	tr := levelTree([]float32{1, 0})
	_, err := BestChild(tr, tr.Root(), []float32{1, 0, 0, 0})
	if !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension, got %v", err)
	}
}
