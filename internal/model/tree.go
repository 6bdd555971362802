package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RootLabel is the label carried by every tree root.
const RootLabel = "Everything"

// NodeID indexes a node inside its Tree. IDs are stable for the lifetime of a
// tree and are what sessions remember between turns.
type NodeID int

// NoNode marks the absent parent of the root.
const NoNode NodeID = -1

// Response is a node's canned answer: one string or a set of alternatives,
// one of which is picked at answer time.
type Response []string

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (r *Response) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*r = Response{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("response must be a string or a list of strings: %w", err)
	}
	*r = Response(many)
	return nil
}

// UnmarshalYAML accepts either a scalar or a sequence of scalars.
func (r *Response) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*r = Response{value.Value}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*r = Response(many)
		return nil
	}
	return fmt.Errorf("response must be a string or a list of strings (line %d)", value.Line)
}

// Node is one intent in the hierarchy.
type Node struct {
	ID       NodeID
	Topic    string   // display name, used in clarification prompts
	Label    string   // short tag, appended to connector follow-ups
	Examples []string // example phrases, positionally aligned with Vectors
	Response Response
	Parent   NodeID
	Children []NodeID

	// Vectors caches one embedding per example. nil means the cache builder
	// has not visited this node; an empty non-nil slice means "cached, no examples".
	Vectors [][]float32
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Cached reports whether the example-vector cache has been populated.
func (n *Node) Cached() bool { return n.Vectors != nil }

// Tree is an arena of nodes. Nodes[0] is the root. Parent links are indices
// into the arena, never pointers, so the tree stays a plain ownership graph.
type Tree struct {
	Nodes []Node
}

// NewTree creates a tree holding only a root with the given topic and response.
func NewTree(topic string, response Response) *Tree {
	return &Tree{Nodes: []Node{{
		ID:       0,
		Topic:    topic,
		Label:    RootLabel,
		Response: response,
		Parent:   NoNode,
	}}}
}

// Root returns the ID of the root node.
func (t *Tree) Root() NodeID { return 0 }

// Node returns the node with the given ID. It panics on an out-of-range ID,
// which can only come from a stale or corrupted reference.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Valid reports whether id refers to a node of this tree.
func (t *Tree) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.Nodes)
}

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.Nodes) }

// Add appends a child under parent and returns its ID. Children keep
// declaration order.
func (t *Tree) Add(parent NodeID, topic, label string, examples []string, response Response) NodeID {
	id := NodeID(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{
		ID:       id,
		Topic:    topic,
		Label:    label,
		Examples: examples,
		Response: response,
		Parent:   parent,
	})
	p := &t.Nodes[parent]
	p.Children = append(p.Children, id)
	return id
}

// Ancestry returns id followed by its ancestors, most specific first,
// stopping before the root. The root's ancestry is empty.
func (t *Tree) Ancestry(id NodeID) []NodeID {
	var chain []NodeID
	for cur := id; cur != NoNode && t.Nodes[cur].Parent != NoNode; cur = t.Nodes[cur].Parent {
		chain = append(chain, cur)
	}
	return chain
}

// Depth returns the number of edges between id and the root.
func (t *Tree) Depth(id NodeID) int {
	d := 0
	for cur := t.Nodes[id].Parent; cur != NoNode; cur = t.Nodes[cur].Parent {
		d++
	}
	return d
}

// Walk visits every node depth-first in declaration order.
func (t *Tree) Walk(fn func(n *Node)) {
	var visit func(id NodeID)
	visit = func(id NodeID) {
		n := &t.Nodes[id]
		fn(n)
		for _, c := range n.Children {
			visit(c)
		}
	}
	if len(t.Nodes) > 0 {
		visit(t.Root())
	}
}

// FindLabel returns the first node (depth-first) carrying label.
func (t *Tree) FindLabel(label string) (NodeID, bool) {
	found := NoNode
	t.Walk(func(n *Node) {
		if found == NoNode && n.Label == label {
			found = n.ID
		}
	})
	return found, found != NoNode
}

// Cached reports whether every node has a populated example-vector cache.
func (t *Tree) Cached() bool {
	for i := range t.Nodes {
		if !t.Nodes[i].Cached() {
			return false
		}
	}
	return true
}

// VectorDim returns the width of the cached example vectors, or 0 when no
// node holds a vector yet.
func (t *Tree) VectorDim() int {
	for i := range t.Nodes {
		for _, v := range t.Nodes[i].Vectors {
			return len(v)
		}
	}
	return 0
}
