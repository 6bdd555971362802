// Package traverse runs one confidence-gated descent through an intent tree.
package traverse

import (
	"github.com/hejijunhao/amber/internal/engine/classifier"
	"github.com/hejijunhao/amber/internal/model"
)

// Outcome is the result of one pass.
type Outcome struct {
	Start model.NodeID
	// Current is the reached leaf, or the best child that failed the
	// threshold when the pass stalled.
	Current model.NodeID
	// Parent is the last node actually entered. For a leaf it is the leaf.
	Parent model.NodeID
	// Confidence is the score of the last comparison made, 0 if none was.
	Confidence float64
	Advanced   bool // descended at least one level
	Leaf       bool
	Trace      []model.LevelScore
}

// Resolved returns the node whose response answers the pass: the leaf when
// one was reached, otherwise the node the pass stalled at.
func (o Outcome) Resolved() model.NodeID {
	if o.Leaf {
		return o.Current
	}
	return o.Parent
}

// Pass descends from start. At each level the best child is entered if its
// score is at least threshold; otherwise the pass stalls. Reaching a node
// without children ends the pass as terminal. The tree is only read.
func Pass(t *model.Tree, start model.NodeID, query []float32, threshold float64) (Outcome, error) {
	out := Outcome{Start: start, Current: start, Parent: start}
	cur := start
	for len(t.Node(cur).Children) > 0 {
		res, err := classifier.BestChild(t, cur, query)
		if err != nil {
			return Outcome{}, err
		}
		out.Trace = append(out.Trace, model.LevelScore{Label: t.Node(res.Child).Label, Score: res.Confidence})
		out.Confidence = res.Confidence
		out.Parent = cur
		out.Current = res.Child
		if res.Confidence < threshold {
			return out, nil
		}
		out.Advanced = true
		cur = res.Child
	}
	out.Current = cur
	out.Parent = cur
	out.Leaf = true
	return out, nil
}
