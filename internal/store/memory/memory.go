// Package memory is an in-process store.FlowStorage that backs the queue and
// route tests. It keeps everything in maps guarded by one mutex. Nothing
// durable lives here; the server and worker always use pkg/store/pgx.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/OFFIS-RIT/outreach/pkg/flow"
	"github.com/OFFIS-RIT/outreach/pkg/store"
)

type Storage struct {
	mu       sync.Mutex
	flows    map[string]store.Flow
	graphs   map[string]flow.Graph
	runs     map[string]store.Run
	outcomes map[string]map[int32]store.RunOutcome
	locked   map[string]bool
}

var _ store.FlowStorage = (*Storage)(nil)

func New() *Storage {
	return &Storage{
		flows:    make(map[string]store.Flow),
		graphs:   make(map[string]flow.Graph),
		runs:     make(map[string]store.Run),
		outcomes: make(map[string]map[int32]store.RunOutcome),
		locked:   make(map[string]bool),
	}
}

func cloneGraph(g flow.Graph) *flow.Graph {
	return &flow.Graph{
		Nodes: append([]flow.Node{}, g.Nodes...),
		Edges: append([]flow.Edge{}, g.Edges...),
	}
}

func (s *Storage) CreateFlow(_ context.Context, f *store.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	f.CreatedAt, f.UpdatedAt = now, now
	s.flows[f.ID] = *f
	s.graphs[f.ID] = flow.Graph{}
	return nil
}

func (s *Storage) GetFlow(_ context.Context, id string) (*store.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *Storage) ListFlows(_ context.Context, ownerID int32, all bool) ([]store.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		if all || f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Storage) DeleteFlow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.flows, id)
	delete(s.graphs, id)
	for runID, r := range s.runs {
		if r.FlowID == id {
			delete(s.runs, runID)
			delete(s.outcomes, runID)
		}
	}
	return nil
}

func (s *Storage) LoadGraph(_ context.Context, flowID string) (*flow.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.graphs[flowID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneGraph(g), nil
}

// EditGraph holds the store lock while fn runs, so edits never interleave.
func (s *Storage) EditGraph(_ context.Context, flowID string, fn func(g *flow.Graph) error) (*flow.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.graphs[flowID]
	if !ok {
		return nil, store.ErrNotFound
	}
	g := cloneGraph(stored)
	if err := fn(g); err != nil {
		return nil, err
	}
	s.graphs[flowID] = *cloneGraph(*g)
	f := s.flows[flowID]
	f.UpdatedAt = time.Now()
	s.flows[flowID] = f
	return g, nil
}

func (s *Storage) CreateRun(_ context.Context, r *store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flows[r.FlowID]; !ok {
		return store.ErrNotFound
	}
	if r.Status == "" {
		r.Status = store.RunPending
	}
	r.CreatedAt = time.Now()
	s.runs[r.ID] = *r
	return nil
}

func (s *Storage) GetRun(_ context.Context, flowID, runID string) (*store.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok || r.FlowID != flowID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Storage) SetRunStatus(_ context.Context, runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok || r.Finished() {
		return nil
	}
	r.Status = status
	if r.Finished() {
		now := time.Now()
		r.FinishedAt = &now
	}
	s.runs[runID] = r
	return nil
}

func (s *Storage) RecordOutcome(_ context.Context, o store.RunOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[o.RunID]
	if !ok {
		return nil
	}
	if s.outcomes[o.RunID] == nil {
		s.outcomes[o.RunID] = make(map[int32]store.RunOutcome)
	}
	if _, dup := s.outcomes[o.RunID][o.Index]; dup {
		return nil
	}
	s.outcomes[o.RunID][o.Index] = o
	if o.Error == "" {
		r.Sent++
	} else {
		r.Failed++
	}
	s.runs[o.RunID] = r
	return nil
}

func (s *Storage) ListOutcomes(_ context.Context, runID string) ([]store.RunOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.RunOutcome, 0, len(s.outcomes[runID]))
	for _, o := range s.outcomes[runID] {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Storage) ActiveRuns(_ context.Context, flowID string) ([]store.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Run
	for _, r := range s.runs {
		if r.FlowID == flowID && !r.Finished() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetFlowLocked marks the run lock of a flow as held, which hides its
// running runs from StaleRuns.
func (s *Storage) SetFlowLocked(flowID string, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked[flowID] = locked
}

func (s *Storage) StaleRuns(_ context.Context) ([]store.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Run
	for _, r := range s.runs {
		if r.Status == store.RunRunning && !s.locked[r.FlowID] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
