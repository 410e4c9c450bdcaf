package flow

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrDuplicateNode = errors.New("node already exists")
)

// DefaultNodeType is the display kind assigned to nodes created without one.
const DefaultNodeType = "task"

// Position holds the display coordinates of a node on the editing surface.
// The graph logic never looks at it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a single step of a flow. Value is the payload that is sent
// when the step is dispatched.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Value    string   `json:"value"`
}

// Edge represents a directed connection between two nodes. Its ID is always
// derived from the source and target, so two edges between the same pair of
// nodes collide.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the editable state of a flow. The order of Nodes is the order in
// which the steps are dispatched.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// EdgeID returns the identifier of the edge from source to target.
func EdgeID(source, target string) string {
	return fmt.Sprintf("%s->%s", source, target)
}

// NewEdge creates the edge from source to target.
func NewEdge(source, target string) Edge {
	return Edge{
		ID:     EdgeID(source, target),
		Source: source,
		Target: target,
	}
}
