package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/OFFIS-RIT/outreach/internal/storage"
	"github.com/OFFIS-RIT/outreach/internal/util"
	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/runlock"
	"github.com/OFFIS-RIT/outreach/pkg/store"
)

var ErrRunCancelled = errors.New("run cancelled")

type Locker interface {
	WithLease(ctx context.Context, key string, opts runlock.Options, fn func(ctx context.Context) error) error
}

type ReportArchive interface {
	PutRunReport(ctx context.Context, report storage.RunReport) (string, error)
}

// Worker executes dispatch runs received from the dispatch queue. Pub,
// Metrics and Reports are optional.
type Worker struct {
	Store    store.FlowStorage
	Locks    Locker
	Send     dispatch.SendFunc
	Pub      Publisher
	Metrics  *dispatch.Metrics
	Reports  ReportArchive
	Registry *Registry
	Owner    string
}

// ProcessDispatchMessage runs the dispatch described by msg to completion.
// Only one run per flow is active at a time; a run that finds its flow busy
// is marked failed.
func (w *Worker) ProcessDispatchMessage(ctx context.Context, msg []byte) error {
	data, err := ParseDispatchMsg(msg)
	if err != nil {
		return err
	}
	logger.Info("[Queue] Starting dispatch run", "run_id", data.RunID, "flow_id", data.FlowID, "items", len(data.Items), "delay", data.Delay())

	runCtx, release := w.Registry.Track(ctx, data.FlowID, data.RunID)
	defer release()

	err = w.Locks.WithLease(
		runCtx,
		runlock.FlowKey(data.FlowID),
		runlock.Options{Owner: w.Owner},
		func(leaseCtx context.Context) error {
			return w.run(leaseCtx, data)
		},
	)
	switch {
	case errors.Is(err, runlock.ErrBusy):
		logger.Warn("[Queue] Flow already has an active run", "run_id", data.RunID, "flow_id", data.FlowID)
		w.finish(ctx, data, store.RunFailed)
	case err != nil && runCtx.Err() != nil && ctx.Err() == nil:
		// Cancelled while waiting for the lock.
		w.finish(ctx, data, store.RunCancelled)
	case err != nil:
		return err
	}

	w.archive(ctx, data)
	return nil
}

func (w *Worker) run(ctx context.Context, data *DispatchMsg) error {
	run, err := w.Store.GetRun(ctx, data.FlowID, data.RunID)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("[Queue] Run no longer exists, skipping", "run_id", data.RunID, "flow_id", data.FlowID)
		return nil
	}
	if err != nil {
		return err
	}
	if run.Finished() {
		logger.Info("[Queue] Run already finished, skipping", "run_id", run.ID, "status", run.Status)
		return nil
	}
	if err := w.Store.SetRunStatus(ctx, run.ID, store.RunRunning); err != nil {
		return err
	}

	d, err := dispatch.New(data.Delay(), w.Send, w.sinks(data.FlowID))
	if err != nil {
		w.finish(ctx, data, store.RunFailed)
		return err
	}

	// Sends are detached from ctx so that a cancel only stops the sends that
	// have not started yet.
	r := d.Start(context.WithoutCancel(ctx), data.RunID, data.Items)
	select {
	case <-ctx.Done():
		r.Cancel()
	case <-r.Done():
	}
	r.Wait()

	status := store.RunDone
	if r.State() == dispatch.Cancelled {
		status = store.RunCancelled
		if errors.Is(context.Cause(ctx), runlock.ErrLost) {
			status = store.RunFailed
		}
	}
	w.finish(ctx, data, status)
	return nil
}

func (w *Worker) sinks(flowID string) dispatch.Sink {
	sinks := dispatch.MultiSink{dispatch.LogSink{}, StoreSink(w.Store)}
	if w.Pub != nil {
		sinks = append(sinks, OutcomeSink(w.Pub, flowID))
	}
	if w.Metrics != nil {
		sinks = append(sinks, w.Metrics)
	}
	return sinks
}

func (w *Worker) finish(ctx context.Context, data *DispatchMsg, status string) {
	ctx = context.WithoutCancel(ctx)
	if err := w.Store.SetRunStatus(ctx, data.RunID, status); err != nil {
		logger.Error("[Queue] Failed to update run status", "run_id", data.RunID, "status", status, "err", err)
	}
	if w.Metrics != nil {
		w.Metrics.RunFinished(status)
	}
	logger.Info("[Queue] Dispatch run finished", "run_id", data.RunID, "flow_id", data.FlowID, "status", status)
}

func (w *Worker) archive(ctx context.Context, data *DispatchMsg) {
	if w.Reports == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	run, err := w.Store.GetRun(ctx, data.FlowID, data.RunID)
	if err != nil {
		logger.Warn("[Queue] Could not load run for report", "run_id", data.RunID, "err", err)
		return
	}
	outcomes, err := w.Store.ListOutcomes(ctx, data.RunID)
	if err != nil {
		logger.Warn("[Queue] Could not load outcomes for report", "run_id", data.RunID, "err", err)
		return
	}

	report := storage.RunReport{Run: *run, Outcomes: outcomes, GeneratedAt: time.Now().UTC()}
	err = util.RetryErrWithBackoff(ctx, 3, time.Second, func(ctx context.Context) error {
		_, err := w.Reports.PutRunReport(ctx, report)
		return err
	})
	if err != nil {
		logger.Error("[Queue] Failed to archive run report", "run_id", data.RunID, "err", err)
	}
}

// StoreSink records every outcome and keeps the run counters current.
// Recording is idempotent per item, so failed writes are retried.
func StoreSink(st store.FlowStorage) dispatch.Sink {
	return dispatch.SinkFunc(func(ctx context.Context, o dispatch.Outcome) {
		outcome := store.NewRunOutcome(o)
		err := util.RetryErrWithContext(context.WithoutCancel(ctx), 3, func(ctx context.Context) error {
			return st.RecordOutcome(ctx, outcome)
		})
		if err != nil {
			logger.Error("[Queue] Failed to record outcome", "run_id", o.RunID, "message", o.Item.Index+1, "err", err)
		}
	})
}

// OutcomeSink publishes every outcome on the flow's outcome topic.
func OutcomeSink(pub Publisher, flowID string) dispatch.Sink {
	return dispatch.SinkFunc(func(_ context.Context, o dispatch.Outcome) {
		body, err := json.Marshal(OutcomeMsg{FlowID: flowID, RunOutcome: store.NewRunOutcome(o)})
		if err != nil {
			return
		}
		if err := pub.PublishTopic(OutcomeTopic(flowID), body); err != nil {
			logger.Warn("[Queue] Failed to publish outcome", "run_id", o.RunID, "err", err)
		}
	})
}
