package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/outreach/pkg/store"
	pgxv5 "github.com/jackc/pgx/v5"
)

const createRunSQL = `
INSERT INTO dispatch_runs (id, flow_id, recipient, subject, delay_ms, status, total)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at;
`

const runColumns = `id, flow_id, recipient, subject, delay_ms, status, total, sent, failed, created_at, finished_at`

const getRunSQL = `
SELECT ` + runColumns + `
FROM dispatch_runs
WHERE flow_id = $1 AND id = $2;
`

const activeRunsSQL = `
SELECT ` + runColumns + `
FROM dispatch_runs
WHERE flow_id = $1 AND status IN ('pending', 'running')
ORDER BY created_at;
`

const staleRunsSQL = `
SELECT ` + runColumns + `
FROM dispatch_runs r
WHERE r.status = 'running'
  AND NOT EXISTS (
      SELECT 1
      FROM run_locks l
      WHERE l.lock_key = 'flow:' || r.flow_id
        AND l.expires_at > now()
  )
ORDER BY r.created_at;
`

const setRunStatusSQL = `
UPDATE dispatch_runs
SET status = $2::text,
    finished_at = CASE
        WHEN $2::text IN ('done', 'cancelled', 'failed') THEN COALESCE(finished_at, now())
        ELSE finished_at
    END
WHERE id = $1
  AND status NOT IN ('done', 'cancelled', 'failed');
`

const recordOutcomeSQL = `
WITH ins AS (
    INSERT INTO dispatch_outcomes (run_id, idx, node_id, message_id, error, started_at, finished_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    ON CONFLICT (run_id, idx) DO NOTHING
    RETURNING error
)
UPDATE dispatch_runs
SET sent = sent + (SELECT count(*) FROM ins WHERE error = ''),
    failed = failed + (SELECT count(*) FROM ins WHERE error <> '')
WHERE id = $1;
`

const listOutcomesSQL = `
SELECT run_id, idx, node_id, message_id, error, started_at, finished_at
FROM dispatch_outcomes
WHERE run_id = $1
ORDER BY idx;
`

func (s *FlowDBStorage) CreateRun(ctx context.Context, r *store.Run) error {
	if r.Status == "" {
		r.Status = store.RunPending
	}
	err := s.conn.QueryRow(
		ctx, createRunSQL,
		r.ID, r.FlowID, r.Recipient, r.Subject, r.DelayMs, r.Status, r.Total,
	).Scan(&r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (s *FlowDBStorage) GetRun(ctx context.Context, flowID, runID string) (*store.Run, error) {
	rows, err := s.conn.Query(ctx, getRunSQL, flowID, runID)
	if err != nil {
		return nil, err
	}
	r, err := pgxv5.CollectExactlyOneRow(rows, scanRun)
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

// SetRunStatus moves a run to status. Terminal runs are never changed again,
// so a late cancel cannot overwrite a finished run.
func (s *FlowDBStorage) SetRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.conn.Exec(ctx, setRunStatusSQL, runID, status)
	return err
}

// RecordOutcome stores the outcome of one item and bumps the run counters.
// Recording the same item twice is a no-op.
func (s *FlowDBStorage) RecordOutcome(ctx context.Context, o store.RunOutcome) error {
	_, err := s.conn.Exec(
		ctx, recordOutcomeSQL,
		o.RunID, o.Index, o.NodeID, o.MessageID, o.Error, o.StartedAt, o.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

func (s *FlowDBStorage) ListOutcomes(ctx context.Context, runID string) ([]store.RunOutcome, error) {
	rows, err := s.conn.Query(ctx, listOutcomesSQL, runID)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (store.RunOutcome, error) {
		var o store.RunOutcome
		err := row.Scan(&o.RunID, &o.Index, &o.NodeID, &o.MessageID, &o.Error, &o.StartedAt, &o.FinishedAt)
		return o, err
	})
}

func (s *FlowDBStorage) ActiveRuns(ctx context.Context, flowID string) ([]store.Run, error) {
	rows, err := s.conn.Query(ctx, activeRunsSQL, flowID)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, scanRun)
}

func scanRun(row pgxv5.CollectableRow) (store.Run, error) {
	var r store.Run
	err := row.Scan(
		&r.ID, &r.FlowID, &r.Recipient, &r.Subject, &r.DelayMs, &r.Status,
		&r.Total, &r.Sent, &r.Failed, &r.CreatedAt, &r.FinishedAt,
	)
	return r, err
}

func (s *FlowDBStorage) StaleRuns(ctx context.Context) ([]store.Run, error) {
	rows, err := s.conn.Query(ctx, staleRunsSQL)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, scanRun)
}
