package pgx

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/outreach/pkg/flow"
)

func TestGraphRows(t *testing.T) {
	g := &flow.Graph{
		Nodes: []flow.Node{
			{ID: "b", Type: "mail", Position: flow.Position{X: 1, Y: 2}, Value: "second"},
			{ID: "a", Value: "first"},
		},
		Edges: []flow.Edge{flow.NewEdge("b", "a")},
	}

	nodes, edges := graphRows("f1", g)

	wantNodes := [][]any{
		{"f1", "b", int32(0), "mail", 1.0, 2.0, "second"},
		{"f1", "a", int32(1), flow.DefaultNodeType, 0.0, 0.0, "first"},
	}
	if !reflect.DeepEqual(nodes, wantNodes) {
		t.Fatalf("nodes = %v, want %v", nodes, wantNodes)
	}
	wantEdges := [][]any{{"f1", "b->a", "b", "a", int32(0)}}
	if !reflect.DeepEqual(edges, wantEdges) {
		t.Fatalf("edges = %v, want %v", edges, wantEdges)
	}
	for _, row := range nodes {
		if len(row) != len(nodeColumns) {
			t.Fatalf("node row has %d values for %d columns", len(row), len(nodeColumns))
		}
	}
	for _, row := range edges {
		if len(row) != len(edgeColumns) {
			t.Fatalf("edge row has %d values for %d columns", len(row), len(edgeColumns))
		}
	}
}

func TestGraphRowsEmpty(t *testing.T) {
	nodes, edges := graphRows("f1", &flow.Graph{})
	if len(nodes) != 0 || len(edges) != 0 {
		t.Fatalf("expected no rows, got %v %v", nodes, edges)
	}
}
