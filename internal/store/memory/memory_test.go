package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/outreach/pkg/flow"
	"github.com/OFFIS-RIT/outreach/pkg/store"
)

func TestEditGraphRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.CreateFlow(ctx, &store.Flow{ID: "f1", Name: "demo"}); err != nil {
		t.Fatalf("CreateFlow: %v", err)
	}

	_, err := s.EditGraph(ctx, "f1", func(g *flow.Graph) error {
		return g.AddNode(flow.Node{ID: "a"})
	})
	if err != nil {
		t.Fatalf("EditGraph: %v", err)
	}

	boom := errors.New("boom")
	_, err = s.EditGraph(ctx, "f1", func(g *flow.Graph) error {
		_ = g.AddNode(flow.Node{ID: "b"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	g, err := s.LoadGraph(ctx, "f1")
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(g.Nodes) != 1 || g.Nodes[0].ID != "a" {
		t.Fatalf("unexpected graph %+v", g)
	}
}

func TestRunCounters(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.CreateFlow(ctx, &store.Flow{ID: "f1"})
	if err := s.CreateRun(ctx, &store.Run{ID: "r1", FlowID: "f1", Total: 2}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	_ = s.RecordOutcome(ctx, store.RunOutcome{RunID: "r1", Index: 0})
	_ = s.RecordOutcome(ctx, store.RunOutcome{RunID: "r1", Index: 0})
	_ = s.RecordOutcome(ctx, store.RunOutcome{RunID: "r1", Index: 1, Error: "bounced"})

	r, err := s.GetRun(ctx, "f1", "r1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if r.Sent != 1 || r.Failed != 1 {
		t.Fatalf("unexpected counters sent=%d failed=%d", r.Sent, r.Failed)
	}

	_ = s.SetRunStatus(ctx, "r1", store.RunCancelled)
	_ = s.SetRunStatus(ctx, "r1", store.RunDone)
	r, _ = s.GetRun(ctx, "f1", "r1")
	if r.Status != store.RunCancelled || r.FinishedAt == nil {
		t.Fatalf("terminal status must stick: %+v", r)
	}

	if _, err := s.GetRun(ctx, "other", "r1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a run of another flow, got %v", err)
	}
}
