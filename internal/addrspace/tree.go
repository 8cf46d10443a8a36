package addrspace

// Tree is a browse session: the root level plus whatever subtrees the
// operator has expanded since.
type Tree struct {
	Roots []Node
}

// NewTree starts a session from a root browse result.
func NewTree(roots []Node) *Tree {
	return &Tree{Roots: roots}
}

// Replace swaps the children of the node with parentID for a fresh browse
// result. Existing children are discarded, never merged. It reports whether
// the parent was found.
func (t *Tree) Replace(parentID string, children []Node) bool {
	return replaceIn(t.Roots, parentID, children)
}

func replaceIn(nodes []Node, parentID string, children []Node) bool {
	for i := range nodes {
		if nodes[i].ID == parentID {
			nodes[i].Children = append([]Node(nil), children...)
			return true
		}
		if replaceIn(nodes[i].Children, parentID, children) {
			return true
		}
	}
	return false
}

// ReplaceAll is Replace for every node with parentID. Address spaces are
// graphs, so one node may be reachable through several parents. Each
// occurrence gets its own copy of children, and replaced subtrees are not
// searched again. It returns the number of nodes updated.
func (t *Tree) ReplaceAll(parentID string, children []Node) int {
	return replaceAllIn(t.Roots, parentID, children)
}

func replaceAllIn(nodes []Node, parentID string, children []Node) int {
	n := 0
	for i := range nodes {
		if nodes[i].ID == parentID {
			nodes[i].Children = append([]Node(nil), children...)
			n++
			continue
		}
		n += replaceAllIn(nodes[i].Children, parentID, children)
	}
	return n
}

// Flatten returns every node in the session.
func (t *Tree) Flatten() []Node {
	return Flatten(t.Roots)
}

// Search filters the session; see Search.
func (t *Tree) Search(query string) []Node {
	return Search(t.Roots, query)
}

// Len returns the total number of nodes in the session.
func (t *Tree) Len() int {
	return len(t.Flatten())
}
