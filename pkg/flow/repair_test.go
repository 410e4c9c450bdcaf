package flow

import (
	"reflect"
	"sort"
	"testing"
)

func nodes(ids ...string) []Node {
	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = Node{ID: id, Type: DefaultNodeType}
	}
	return out
}

func edges(pairs ...string) []Edge {
	if len(pairs)%2 != 0 {
		panic("edges needs source/target pairs")
	}
	out := make([]Edge, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, NewEdge(pairs[i], pairs[i+1]))
	}
	return out
}

func edgeIDs(es []Edge) []string {
	ids := make([]string, len(es))
	for i, e := range es {
		ids[i] = e.ID
	}
	sort.Strings(ids)
	return ids
}

func nodeIDs(ns []Node) []string {
	ids := make([]string, len(ns))
	for i, n := range ns {
		ids[i] = n.ID
	}
	return ids
}

func TestEdgeID(t *testing.T) {
	if got := EdgeID("a", "b"); got != "a->b" {
		t.Fatalf("EdgeID(a, b) = %q, want %q", got, "a->b")
	}
	e := NewEdge("1", "2")
	if e.ID != "1->2" || e.Source != "1" || e.Target != "2" {
		t.Fatalf("unexpected edge: %+v", e)
	}
}

func TestIncomersOutgoers(t *testing.T) {
	ns := nodes("A", "B", "C", "D")
	es := edges("A", "B", "C", "B", "B", "D", "B", "B", "X", "B")
	b := ns[1]

	if got := nodeIDs(Incomers(b, ns, es)); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("incomers = %v, want [A C]", got)
	}
	if got := nodeIDs(Outgoers(b, ns, es)); !reflect.DeepEqual(got, []string{"D"}) {
		t.Fatalf("outgoers = %v, want [D]", got)
	}
}

func TestConnectedEdges(t *testing.T) {
	es := edges("A", "B", "B", "C", "C", "D")
	got := edgeIDs(ConnectedEdges(nodes("B"), es))
	want := []string{"A->B", "B->C"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("connected = %v, want %v", got, want)
	}
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []Node
		edges   []Edge
		deleted []string
		want    []string
	}{
		{
			name:    "chain bridges predecessor to successor",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "B", "B", "C"),
			deleted: []string{"B"},
			want:    []string{"A->C"},
		},
		{
			name:    "only incomers adds no bridge",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "B", "C", "B"),
			deleted: []string{"B"},
			want:    []string{},
		},
		{
			name:    "only outgoers adds no bridge",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "B", "A", "C"),
			deleted: []string{"A"},
			want:    []string{},
		},
		{
			name:    "isolated node",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "C"),
			deleted: []string{"B"},
			want:    []string{"A->C"},
		},
		{
			name:    "cartesian product of incomers and outgoers",
			nodes:   nodes("A", "B", "X", "C", "D"),
			edges:   edges("A", "X", "B", "X", "X", "C", "X", "D"),
			deleted: []string{"X"},
			want:    []string{"A->C", "A->D", "B->C", "B->D"},
		},
		{
			name:    "existing bridge is not duplicated",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "B", "B", "C", "A", "C"),
			deleted: []string{"B"},
			want:    []string{"A->C"},
		},
		{
			name:    "unrelated edges survive",
			nodes:   nodes("A", "B", "C", "D", "E"),
			edges:   edges("A", "B", "B", "C", "D", "E"),
			deleted: []string{"B"},
			want:    []string{"A->C", "D->E"},
		},
		{
			name:    "edge from unknown node is removed but not bridged",
			nodes:   nodes("B", "C"),
			edges:   edges("ghost", "B", "B", "C"),
			deleted: []string{"B"},
			want:    []string{},
		},
		{
			name:    "self loop does not survive",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "B", "B", "B", "B", "C"),
			deleted: []string{"B"},
			want:    []string{"A->C"},
		},
		{
			name:    "two cycle collapses into self loop",
			nodes:   nodes("A", "B"),
			edges:   edges("A", "B", "B", "A"),
			deleted: []string{"B"},
			want:    []string{"A->A"},
		},
		{
			name:    "adjacent deletions bridge across both",
			nodes:   nodes("A", "B", "C", "D"),
			edges:   edges("A", "B", "B", "C", "C", "D"),
			deleted: []string{"B", "C"},
			want:    []string{"A->D"},
		},
		{
			name:    "adjacent deletions in reverse order",
			nodes:   nodes("A", "B", "C", "D"),
			edges:   edges("A", "B", "B", "C", "C", "D"),
			deleted: []string{"C", "B"},
			want:    []string{"A->D"},
		},
		{
			name:    "independent deletions",
			nodes:   nodes("A", "B", "C", "D", "E", "F"),
			edges:   edges("A", "B", "B", "C", "D", "E", "E", "F"),
			deleted: []string{"B", "E"},
			want:    []string{"A->C", "D->F"},
		},
		{
			name:    "deleting a whole tail leaves nothing dangling",
			nodes:   nodes("A", "B", "C"),
			edges:   edges("A", "B", "B", "C"),
			deleted: []string{"B", "C"},
			want:    []string{},
		},
		{
			name:    "nothing deleted",
			nodes:   nodes("A", "B"),
			edges:   edges("A", "B"),
			deleted: nil,
			want:    []string{"A->B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			byID := make(map[string]Node)
			for _, n := range tt.nodes {
				byID[n.ID] = n
			}
			var deleted []Node
			for _, id := range tt.deleted {
				deleted = append(deleted, byID[id])
			}

			got := Repair(deleted, tt.nodes, tt.edges)

			if ids := edgeIDs(got); !reflect.DeepEqual(ids, tt.want) {
				t.Fatalf("Repair() = %v, want %v", ids, tt.want)
			}
			for _, e := range got {
				for _, d := range tt.deleted {
					if e.Source == d || e.Target == d {
						t.Fatalf("edge %s references deleted node %s", e.ID, d)
					}
				}
			}
		})
	}
}

func TestRepairPreservesReachability(t *testing.T) {
	ns := nodes("A", "B", "C", "D", "E", "F")
	es := edges(
		"A", "C", "B", "C",
		"C", "D", "C", "E",
		"E", "F", "A", "B",
	)

	for _, n := range ns {
		got := Repair([]Node{n}, ns, es)
		have := make(map[string]struct{}, len(got))
		for _, e := range got {
			have[e.ID] = struct{}{}
		}

		for _, p := range Incomers(n, ns, es) {
			for _, s := range Outgoers(n, ns, es) {
				if _, ok := have[EdgeID(p.ID, s.ID)]; !ok {
					t.Fatalf("deleting %s lost path %s->%s: %v", n.ID, p.ID, s.ID, edgeIDs(got))
				}
			}
		}
	}
}

func TestRepairKeepsSurvivorOrder(t *testing.T) {
	ns := nodes("A", "B", "C", "D", "E")
	es := edges("D", "E", "A", "B", "B", "C", "C", "A")

	got := Repair(ns[1:2], ns, es)

	want := []Edge{NewEdge("D", "E"), NewEdge("C", "A"), NewEdge("A", "C")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Repair() = %+v, want %+v", got, want)
	}
}

func TestRepairDoesNotMutateInput(t *testing.T) {
	ns := nodes("A", "B", "C")
	es := edges("A", "B", "B", "C")
	origNodes := append([]Node(nil), ns...)
	origEdges := append([]Edge(nil), es...)

	Repair(ns[1:2], ns, es)

	if !reflect.DeepEqual(ns, origNodes) {
		t.Fatalf("nodes mutated: %+v", ns)
	}
	if !reflect.DeepEqual(es, origEdges) {
		t.Fatalf("edges mutated: %+v", es)
	}
}
