package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
	"github.com/OFFIS-RIT/outreach/pkg/flow"
)

var ErrNotFound = errors.New("not found")

// Run statuses as stored in the database.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunDone      = "done"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// Flow is the metadata of an editable step graph.
type Flow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   int32     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run is one dispatch run of a flow together with its counters.
type Run struct {
	ID         string     `json:"id"`
	FlowID     string     `json:"flow_id"`
	Recipient  string     `json:"recipient"`
	Subject    string     `json:"subject"`
	DelayMs    int64      `json:"delay_ms"`
	Status     string     `json:"status"`
	Total      int32      `json:"total"`
	Sent       int32      `json:"sent"`
	Failed     int32      `json:"failed"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	switch r.Status {
	case RunDone, RunCancelled, RunFailed:
		return true
	}
	return false
}

// RunOutcome is the stored result of one item of a run.
type RunOutcome struct {
	RunID      string    `json:"run_id"`
	Index      int32     `json:"index"`
	NodeID     string    `json:"node_id"`
	MessageID  string    `json:"message_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRunOutcome converts a dispatch outcome into its stored form.
func NewRunOutcome(o dispatch.Outcome) RunOutcome {
	ro := RunOutcome{
		RunID:      o.RunID,
		Index:      int32(o.Item.Index),
		NodeID:     o.Item.NodeID,
		MessageID:  o.MessageID,
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	if o.Err != nil {
		ro.Error = o.Err.Error()
	}
	return ro
}

// FlowStorage persists flows, their graphs and their dispatch runs.
type FlowStorage interface {
	CreateFlow(ctx context.Context, f *Flow) error
	GetFlow(ctx context.Context, id string) (*Flow, error)
	ListFlows(ctx context.Context, ownerID int32, all bool) ([]Flow, error)
	DeleteFlow(ctx context.Context, id string) error

	LoadGraph(ctx context.Context, flowID string) (*flow.Graph, error)
	// EditGraph loads the graph of a flow under a row lock, hands it to fn
	// and writes the result back in the same transaction. Nothing is written
	// when fn returns an error.
	EditGraph(ctx context.Context, flowID string, fn func(g *flow.Graph) error) (*flow.Graph, error)

	CreateRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, flowID, runID string) (*Run, error)
	SetRunStatus(ctx context.Context, runID, status string) error
	RecordOutcome(ctx context.Context, o RunOutcome) error
	ListOutcomes(ctx context.Context, runID string) ([]RunOutcome, error)
	ActiveRuns(ctx context.Context, flowID string) ([]Run, error)
	// StaleRuns returns runs marked running whose flow lock has expired,
	// which means the worker driving them is gone.
	StaleRuns(ctx context.Context) ([]Run, error)
}
