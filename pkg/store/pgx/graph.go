package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/outreach/pkg/flow"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	pgxv5 "github.com/jackc/pgx/v5"
)

const lockFlowSQL = `
SELECT id
FROM flows
WHERE id = $1
FOR UPDATE;
`

const loadNodesSQL = `
SELECT id, type, x, y, value
FROM flow_nodes
WHERE flow_id = $1
ORDER BY position;
`

const loadEdgesSQL = `
SELECT id, source, target
FROM flow_edges
WHERE flow_id = $1
ORDER BY position;
`

const clearEdgesSQL = `
DELETE FROM flow_edges
WHERE flow_id = $1;
`

const clearNodesSQL = `
DELETE FROM flow_nodes
WHERE flow_id = $1;
`

const touchFlowSQL = `
UPDATE flows
SET updated_at = now()
WHERE id = $1;
`

var (
	nodeColumns = []string{"flow_id", "id", "position", "type", "x", "y", "value"}
	edgeColumns = []string{"flow_id", "id", "source", "target", "position"}
)

type querier interface {
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
}

func (s *FlowDBStorage) LoadGraph(ctx context.Context, flowID string) (*flow.Graph, error) {
	if _, err := s.GetFlow(ctx, flowID); err != nil {
		return nil, err
	}
	return loadGraph(ctx, s.conn, flowID)
}

func (s *FlowDBStorage) EditGraph(
	ctx context.Context,
	flowID string,
	fn func(g *flow.Graph) error,
) (*flow.Graph, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id string
	if err := tx.QueryRow(ctx, lockFlowSQL, flowID).Scan(&id); err != nil {
		return nil, notFound(err)
	}

	g, err := loadGraph(ctx, tx, flowID)
	if err != nil {
		return nil, err
	}
	if err := fn(g); err != nil {
		return nil, err
	}

	nodeRows, edgeRows := graphRows(flowID, g)
	if _, err := tx.Exec(ctx, clearEdgesSQL, flowID); err != nil {
		return nil, fmt.Errorf("failed to clear edges: %w", err)
	}
	if _, err := tx.Exec(ctx, clearNodesSQL, flowID); err != nil {
		return nil, fmt.Errorf("failed to clear nodes: %w", err)
	}
	if len(nodeRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgxv5.Identifier{"flow_nodes"}, nodeColumns, pgxv5.CopyFromRows(nodeRows)); err != nil {
			return nil, fmt.Errorf("failed to write nodes: %w", err)
		}
	}
	if len(edgeRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgxv5.Identifier{"flow_edges"}, edgeColumns, pgxv5.CopyFromRows(edgeRows)); err != nil {
			return nil, fmt.Errorf("failed to write edges: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, touchFlowSQL, flowID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	logger.Debug("[Store] Graph saved", "flow_id", flowID, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

func loadGraph(ctx context.Context, q querier, flowID string) (*flow.Graph, error) {
	rows, err := q.Query(ctx, loadNodesSQL, flowID)
	if err != nil {
		return nil, err
	}
	nodes, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (flow.Node, error) {
		var n flow.Node
		err := row.Scan(&n.ID, &n.Type, &n.Position.X, &n.Position.Y, &n.Value)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}

	rows, err = q.Query(ctx, loadEdgesSQL, flowID)
	if err != nil {
		return nil, err
	}
	edges, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (flow.Edge, error) {
		var e flow.Edge
		err := row.Scan(&e.ID, &e.Source, &e.Target)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}

	return &flow.Graph{Nodes: nodes, Edges: edges}, nil
}

// graphRows flattens g into COPY rows. Slice order becomes the stored
// position so that the graph loads back in the same order.
func graphRows(flowID string, g *flow.Graph) (nodes [][]any, edges [][]any) {
	nodes = make([][]any, 0, len(g.Nodes))
	for i, n := range g.Nodes {
		typ := n.Type
		if typ == "" {
			typ = flow.DefaultNodeType
		}
		nodes = append(nodes, []any{flowID, n.ID, int32(i), typ, n.Position.X, n.Position.Y, n.Value})
	}
	edges = make([][]any, 0, len(g.Edges))
	for i, e := range g.Edges {
		edges = append(edges, []any{flowID, e.ID, e.Source, e.Target, int32(i)})
	}
	return nodes, edges
}
