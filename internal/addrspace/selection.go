package addrspace

// Selection is the set of nodes an operator picked for monitoring. It keeps
// insertion order so lists render stably.
type Selection struct {
	order []string
	nodes map[string]Node
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{nodes: make(map[string]Node)}
}

// Toggle adds the node if it is absent and removes it otherwise.
// It returns true when the node is selected afterwards.
func (s *Selection) Toggle(n Node) bool {
	if _, ok := s.nodes[n.ID]; ok {
		s.Remove(n.ID)
		return false
	}
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	return true
}

// Remove drops a node by id.
func (s *Selection) Remove(id string) {
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether id is selected.
func (s *Selection) Contains(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Selected returns the selected nodes in the order they were picked.
func (s *Selection) Selected() []Node {
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.nodes[id])
	}
	return out
}

// IDs returns the selected node ids in selection order.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of selected nodes.
func (s *Selection) Len() int {
	return len(s.order)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.order = nil
	s.nodes = make(map[string]Node)
}
