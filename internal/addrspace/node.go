// Package addrspace holds the client-side view of an OPC UA server's
// address space as returned by the backend's browse call: node trees,
// flattening and search for the object browser, and the operator's
// selection of nodes to monitor.
package addrspace

import "strings"

// NodeType is the type tag the backend attaches to each node.
type NodeType string

const (
	Folder       NodeType = "Folder"
	Object       NodeType = "Object"
	Variable     NodeType = "Variable"
	ObjectType   NodeType = "ObjectType"
	VariableType NodeType = "VariableType"
)

// Is compares type tags case-insensitively; backends disagree on casing.
func (t NodeType) Is(other NodeType) bool {
	return strings.EqualFold(string(t), string(other))
}

// Node is one entry of a browse response. Children are owned by the node
// and replaced wholesale when the node is browsed again.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	NodeType NodeType `json:"nodeType"`
	Children []Node   `json:"children,omitempty"`
	DataType string   `json:"dataType,omitempty"`
}

// HasChildren reports whether the node has been browsed into and has children.
func (n Node) HasChildren() bool {
	return len(n.Children) > 0
}

// Flatten returns every node of the given trees in depth-first pre-order,
// parents before their children.
func Flatten(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	stack := make([]Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// Search filters the flattened trees by a case-insensitive substring of the
// node name, type tag or data type. An empty query returns the top-level
// nodes unchanged so the browser shows the tree instead of a flat list.
func Search(nodes []Node, query string) []Node {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nodes
	}

	var matches []Node
	for _, n := range Flatten(nodes) {
		if strings.Contains(strings.ToLower(n.Name), q) ||
			strings.Contains(strings.ToLower(string(n.NodeType)), q) ||
			(n.DataType != "" && strings.Contains(strings.ToLower(n.DataType), q)) {
			matches = append(matches, n)
		}
	}
	return matches
}

// Find returns the first node with the given id anywhere in the trees.
func Find(nodes []Node, id string) (Node, bool) {
	for _, n := range Flatten(nodes) {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
