package testdata

import (
	"testing"

	"github.com/hejijunhao/amber/internal/engine/taxonomy"
	"github.com/hejijunhao/amber/internal/model"
)

var validKinds = map[string]bool{
	string(model.ReplyAnswer):  true,
	string(model.ReplyClarify): true,
	string(model.ReplyContext): true,
	string(model.ReplyUnknown): true,
	string(model.ReplyCleared): true,
}

func TestLoadCorpus(t *testing.T) {
	convs, err := LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus() error: %v", err)
	}
	if len(convs) == 0 {
		t.Fatal("corpus is empty")
	}
	t.Logf("Total conversations: %d", len(convs))

	names := map[string]bool{}
	for i, c := range convs {
		if c.Name == "" {
			t.Errorf("conversation[%d] has empty name", i)
		}
		if names[c.Name] {
			t.Errorf("duplicate conversation name %q", c.Name)
		}
		names[c.Name] = true
		if len(c.Turns) == 0 {
			t.Errorf("conversation %q has no turns", c.Name)
		}
		for j, turn := range c.Turns {
			if turn.Query == "" {
				t.Errorf("%s turn[%d] has empty query", c.Name, j)
			}
			for _, e := range turn.Replies() {
				if !validKinds[e.Kind] {
					t.Errorf("%s turn[%d] has invalid kind %q", c.Name, j, e.Kind)
				}
			}
		}
	}
}

// Every expected label must name a node of the built-in tree, and every
// top-level topic must be exercised.
func TestCorpusCoverage(t *testing.T) {
	convs, err := LoadCorpus()
	if err != nil {
		t.Fatalf("LoadCorpus() error: %v", err)
	}
	tree := taxonomy.Default()

	seen := map[string]bool{}
	for _, c := range convs {
		for _, turn := range c.Turns {
			for _, e := range turn.Replies() {
				if e.Label == "" {
					continue
				}
				if _, ok := tree.FindLabel(e.Label); !ok {
					t.Errorf("%s: label %q is not in the default tree", c.Name, e.Label)
				}
				seen[e.Label] = true
			}
		}
	}
	for _, id := range tree.Node(tree.Root()).Children {
		if label := tree.Node(id).Label; !seen[label] {
			t.Errorf("top-level topic %q not covered", label)
		}
	}
}
