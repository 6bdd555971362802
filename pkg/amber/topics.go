package amber

import "github.com/hejijunhao/amber/internal/model"

// Topic is one node of the intent tree.
type Topic struct {
	Name     string  // display name, e.g. "Log Classifier"
	Label    string  // short tag, e.g. "log classifier"
	Children []Topic // empty for answerable leaves
}

// Topics returns the active intent tree, root first. The result is a copy.
func (b *Bot) Topics() Topic {
	t, _ := b.engine.Tree()
	return topicOf(t, t.Root())
}

func topicOf(t *model.Tree, id model.NodeID) Topic {
	n := t.Node(id)
	top := Topic{Name: n.Topic, Label: n.Label}
	for _, c := range n.Children {
		top.Children = append(top.Children, topicOf(t, c))
	}
	return top
}
