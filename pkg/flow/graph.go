package flow

import "fmt"

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// AddNode appends a node to the graph. The node becomes the last step in
// dispatch order.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("node id is empty")
	}
	if _, ok := g.Node(n.ID); ok {
		return fmt.Errorf("add node %s: %w", n.ID, ErrDuplicateNode)
	}
	if n.Type == "" {
		n.Type = DefaultNodeType
	}
	g.Nodes = append(g.Nodes, n)
	return nil
}

// UpdateNode replaces the value and position of an existing node while
// keeping its place in the dispatch order.
func (g *Graph) UpdateNode(n Node) error {
	for i := range g.Nodes {
		if g.Nodes[i].ID != n.ID {
			continue
		}
		if n.Type == "" {
			n.Type = g.Nodes[i].Type
		}
		g.Nodes[i] = n
		return nil
	}
	return fmt.Errorf("update node %s: %w", n.ID, ErrNodeNotFound)
}

// Connect adds the edge from source to target. Both nodes must exist.
// Connecting an already connected pair returns the existing edge.
func (g *Graph) Connect(source, target string) (Edge, error) {
	if _, ok := g.Node(source); !ok {
		return Edge{}, fmt.Errorf("connect source %s: %w", source, ErrNodeNotFound)
	}
	if _, ok := g.Node(target); !ok {
		return Edge{}, fmt.Errorf("connect target %s: %w", target, ErrNodeNotFound)
	}

	edge := NewEdge(source, target)
	for _, e := range g.Edges {
		if e.ID == edge.ID {
			return e, nil
		}
	}
	g.Edges = append(g.Edges, edge)
	return edge, nil
}

// Disconnect removes the edge with the given id and reports whether it
// existed.
func (g *Graph) Disconnect(id string) bool {
	for i, e := range g.Edges {
		if e.ID == id {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveNodes deletes the nodes with the given ids and repairs the edge set
// around them. Unknown ids are ignored. It returns the removed nodes.
func (g *Graph) RemoveNodes(ids ...string) []Node {
	var deleted []Node
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if n, ok := g.Node(id); ok {
			deleted = append(deleted, n)
		}
	}
	if len(deleted) == 0 {
		return nil
	}

	g.Edges = Repair(deleted, g.Nodes, g.Edges)

	remaining := make([]Node, 0, len(g.Nodes)-len(deleted))
	for _, n := range g.Nodes {
		if _, gone := seen[n.ID]; !gone {
			remaining = append(remaining, n)
		}
	}
	g.Nodes = remaining

	return deleted
}
