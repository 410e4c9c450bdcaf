package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/outreach/pkg/store"
	pgxv5 "github.com/jackc/pgx/v5"
)

const createFlowSQL = `
INSERT INTO flows (id, name, owner_id)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at;
`

const getFlowSQL = `
SELECT id, name, owner_id, created_at, updated_at
FROM flows
WHERE id = $1;
`

const listFlowsSQL = `
SELECT id, name, owner_id, created_at, updated_at
FROM flows
WHERE $2::boolean OR owner_id = $1
ORDER BY created_at DESC, id;
`

const deleteFlowSQL = `
DELETE FROM flows
WHERE id = $1;
`

func (s *FlowDBStorage) CreateFlow(ctx context.Context, f *store.Flow) error {
	err := s.conn.QueryRow(ctx, createFlowSQL, f.ID, f.Name, f.OwnerID).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}
	return nil
}

func (s *FlowDBStorage) GetFlow(ctx context.Context, id string) (*store.Flow, error) {
	rows, err := s.conn.Query(ctx, getFlowSQL, id)
	if err != nil {
		return nil, err
	}
	f, err := pgxv5.CollectExactlyOneRow(rows, scanFlow)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (s *FlowDBStorage) ListFlows(ctx context.Context, ownerID int32, all bool) ([]store.Flow, error) {
	rows, err := s.conn.Query(ctx, listFlowsSQL, ownerID, all)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, scanFlow)
}

func (s *FlowDBStorage) DeleteFlow(ctx context.Context, id string) error {
	tag, err := s.conn.Exec(ctx, deleteFlowSQL, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanFlow(row pgxv5.CollectableRow) (store.Flow, error) {
	var f store.Flow
	err := row.Scan(&f.ID, &f.Name, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}
