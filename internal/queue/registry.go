package queue

import (
	"context"
	"sync"
)

type activeRun struct {
	flowID string
	cancel context.CancelCauseFunc
}

// Registry tracks the runs this worker is driving so that cancel events can
// reach them.
type Registry struct {
	mu   sync.Mutex
	runs map[string]activeRun
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]activeRun)}
}

// Track derives a cancellable context for a run and registers it. The
// returned release function must be called when the run is over.
func (r *Registry) Track(ctx context.Context, flowID, runID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	r.runs[runID] = activeRun{flowID: flowID, cancel: cancel}
	r.mu.Unlock()

	return runCtx, func() {
		r.mu.Lock()
		delete(r.runs, runID)
		r.mu.Unlock()
		cancel(context.Canceled)
	}
}

// Cancel stops the matching runs of flowID with cause and returns how many
// were hit. An empty runID matches every run of the flow.
func (r *Registry) Cancel(flowID, runID string, cause error) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, run := range r.runs {
		if run.flowID != flowID {
			continue
		}
		if runID != "" && id != runID {
			continue
		}
		run.cancel(cause)
		n++
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
