package taxonomy

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/hejijunhao/amber/internal/model"
)

var (
	rootStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F4A259"))
	topicStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E9D8A6"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
	enumStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C677D"))
)

// Render draws t as an indented tree: each node shows its topic, label and
// example count. Colors are dropped automatically when the terminal has none.
func Render(t *model.Tree) string {
	var build func(id model.NodeID) *tree.Tree
	build = func(id model.NodeID) *tree.Tree {
		n := t.Node(id)
		sub := tree.Root(nodeLine(n))
		for _, c := range n.Children {
			child := t.Node(c)
			if child.IsLeaf() {
				sub.Child(nodeLine(child))
				continue
			}
			sub.Child(build(c))
		}
		return sub
	}
	return build(t.Root()).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumStyle).
		RootStyle(rootStyle).
		String()
}

func nodeLine(n *model.Node) string {
	return fmt.Sprintf("%s %s",
		topicStyle.Render(n.Topic),
		labelStyle.Render(fmt.Sprintf("[%s, %d examples]", n.Label, len(n.Examples))))
}
