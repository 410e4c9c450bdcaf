package flow

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Incomers returns the nodes that have a direct edge into n. Edges whose
// source is not part of nodes are ignored, as is a self-loop on n.
func Incomers(n Node, nodes []Node, edges []Edge) []Node {
	sources := make(map[string]struct{})
	for _, e := range edges {
		if e.Target == n.ID && e.Source != n.ID {
			sources[e.Source] = struct{}{}
		}
	}
	return pick(nodes, sources)
}

// Outgoers returns the nodes that n has a direct edge to. Edges whose target
// is not part of nodes are ignored, as is a self-loop on n.
func Outgoers(n Node, nodes []Node, edges []Edge) []Node {
	targets := make(map[string]struct{})
	for _, e := range edges {
		if e.Source == n.ID && e.Target != n.ID {
			targets[e.Target] = struct{}{}
		}
	}
	return pick(nodes, targets)
}

// ConnectedEdges returns every edge that has one of the given nodes as its
// source or target.
func ConnectedEdges(nodes []Node, edges []Edge) []Edge {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}

	var connected []Edge
	for _, e := range edges {
		_, src := ids[e.Source]
		_, dst := ids[e.Target]
		if src || dst {
			connected = append(connected, e)
		}
	}
	return connected
}

// Repair computes the edge set that remains after the deleted nodes are
// removed from the graph. Every edge touching a deleted node is dropped and
// each of its incomers is connected directly to each of its outgoers, so
// paths that ran through the node are kept.
//
// Deleted nodes are processed one after another against the edge set left by
// the previous ones. A bridge created for one deleted node is therefore
// re-bridged when its other end is deleted in the same call, and the result
// never references any of the deleted nodes regardless of their order.
//
// Edges are keyed by ID; a bridge that already exists overwrites the existing
// edge in place. The relative order of surviving edges is preserved and new
// bridges are appended.
func Repair(deleted []Node, nodes []Node, edges []Edge) []Edge {
	working := orderedmap.New[string, Edge]()
	for _, e := range edges {
		working.Set(e.ID, e)
	}

	live := make([]Node, len(nodes))
	copy(live, nodes)

	for _, n := range deleted {
		current := values(working)

		incomers := Incomers(n, live, current)
		outgoers := Outgoers(n, live, current)

		for _, e := range ConnectedEdges([]Node{n}, current) {
			working.Delete(e.ID)
		}

		for _, src := range incomers {
			for _, dst := range outgoers {
				bridge := NewEdge(src.ID, dst.ID)
				working.Set(bridge.ID, bridge)
			}
		}

		live = without(live, n.ID)
	}

	return values(working)
}

func values(m *orderedmap.OrderedMap[string, Edge]) []Edge {
	out := make([]Edge, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// pick returns the nodes whose IDs are in ids, in the order of nodes.
func pick(nodes []Node, ids map[string]struct{}) []Node {
	var out []Node
	for _, n := range nodes {
		if _, ok := ids[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

func without(nodes []Node, id string) []Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}
