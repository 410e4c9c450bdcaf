package pgx

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/outreach/pkg/store"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// FlowDBStorage implements store.FlowStorage on PostgreSQL. Graph edits are
// serialised per flow by locking the flow row for the duration of the
// transaction.
type FlowDBStorage struct {
	conn pgxIConn
}

var _ store.FlowStorage = (*FlowDBStorage)(nil)

// NewFlowDBStorageWithConnection creates a FlowDBStorage on an existing
// connection or pool.
func NewFlowDBStorageWithConnection(conn pgxIConn) *FlowDBStorage {
	return &FlowDBStorage{conn: conn}
}

func notFound(err error) error {
	if errors.Is(err, pgxv5.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
