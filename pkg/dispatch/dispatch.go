package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/outreach/pkg/flow"
	"github.com/OFFIS-RIT/outreach/pkg/logger"
)

var ErrNegativeDelay = errors.New("dispatch delay must not be negative")

// Item is a single message of a dispatch run. Recipient and Subject are the
// same for every item of a run.
type Item struct {
	Index     int    `json:"index"`
	NodeID    string `json:"node_id"`
	Payload   string `json:"payload"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

// Items snapshots the nodes of a flow into dispatch items, keeping their order.
func Items(nodes []flow.Node, recipient, subject string) []Item {
	items := make([]Item, len(nodes))
	for i, n := range nodes {
		items[i] = Item{
			Index:     i,
			NodeID:    n.ID,
			Payload:   n.Value,
			Recipient: recipient,
			Subject:   subject,
		}
	}
	return items
}

// SendFunc transmits one item and returns the provider's message id.
type SendFunc func(ctx context.Context, item Item) (string, error)

// State of a dispatch run.
type State int32

const (
	Pending State = iota
	Done
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Dispatcher sends the items of a run one after another with a fixed delay
// between the start of consecutive sends.
type Dispatcher struct {
	delay time.Duration
	send  SendFunc
	sink  Sink
}

// New creates a Dispatcher. A nil sink discards outcomes.
func New(delay time.Duration, send SendFunc, sink Sink) (*Dispatcher, error) {
	if delay < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegativeDelay, delay)
	}
	if send == nil {
		return nil, errors.New("dispatch send function is nil")
	}
	if sink == nil {
		sink = MultiSink(nil)
	}
	return &Dispatcher{
		delay: delay,
		send:  send,
		sink:  sink,
	}, nil
}

// Delay returns the configured gap between two send starts.
func (d *Dispatcher) Delay() time.Duration {
	return d.delay
}

// Run is one pass of a Dispatcher over an item sequence.
type Run struct {
	ID string

	items  []Item
	cancel context.CancelFunc

	state  atomic.Int32
	cursor atomic.Int64

	mu        sync.Mutex
	initiated []time.Time

	done     chan struct{}
	inflight sync.WaitGroup
}

// Start begins a run over items and returns immediately. The first item is
// sent right away; every following item is sent d.Delay() after the previous
// one was started, whether or not that send has finished.
//
// Sends are given ctx. Cancelling ctx or calling Run.Cancel stops the run
// before its next tick; sends already started keep going unless ctx itself
// is cancelled.
func (d *Dispatcher) Start(ctx context.Context, runID string, items []Item) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		ID:     runID,
		items:  items,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.state.Store(int32(Pending))

	go r.loop(ctx, runCtx, d)

	return r
}

// Run starts a run and blocks until it has finished, including all sends.
func (d *Dispatcher) Run(ctx context.Context, runID string, items []Item) State {
	r := d.Start(ctx, runID, items)
	r.Wait()
	return r.State()
}

func (r *Run) loop(ctx, runCtx context.Context, d *Dispatcher) {
	defer close(r.done)
	defer r.cancel()

	logger.Debug("[Dispatch] Run started", "run_id", r.ID, "items", len(r.items), "delay", d.delay)

	for {
		if runCtx.Err() != nil {
			r.state.Store(int32(Cancelled))
			logger.Info("[Dispatch] Run cancelled", "run_id", r.ID, "sent", r.Cursor(), "total", len(r.items))
			return
		}

		cursor := int(r.cursor.Load())
		if cursor >= len(r.items) {
			r.state.Store(int32(Done))
			logger.Debug("[Dispatch] Run finished", "run_id", r.ID, "total", len(r.items))
			return
		}

		r.initiate(ctx, d, r.items[cursor])
		r.cursor.Add(1)

		if cursor+1 >= len(r.items) {
			r.state.Store(int32(Done))
			logger.Debug("[Dispatch] Run finished", "run_id", r.ID, "total", len(r.items))
			return
		}

		timer := time.NewTimer(d.delay)
		select {
		case <-runCtx.Done():
		case <-timer.C:
		}
		timer.Stop()
	}
}

// initiate starts the send of item on its own goroutine and returns once the
// goroutine is about to call send.
func (r *Run) initiate(ctx context.Context, d *Dispatcher, item Item) {
	started := time.Now()
	r.mu.Lock()
	r.initiated = append(r.initiated, started)
	r.mu.Unlock()

	entered := make(chan struct{})
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		close(entered)

		id, err := call(ctx, d.send, item)
		d.sink.Report(ctx, Outcome{
			RunID:      r.ID,
			Item:       item,
			MessageID:  id,
			Err:        err,
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
	}()
	<-entered
}

func call(ctx context.Context, send SendFunc, item Item) (id string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send panicked: %v", p)
		}
	}()
	return send(ctx, item)
}

// Cancel stops the run before its next tick. It has no effect once the run
// is done.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when no further sends will be started.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run has stopped and every started send has reported
// its outcome.
func (r *Run) Wait() {
	<-r.done
	r.inflight.Wait()
}

func (r *Run) State() State {
	return State(r.state.Load())
}

// Cursor is the number of items whose send has been started.
func (r *Run) Cursor() int {
	return int(r.cursor.Load())
}

func (r *Run) Len() int {
	return len(r.items)
}

// Initiated returns the start time of every send so far.
func (r *Run) Initiated() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.initiated))
	copy(out, r.initiated)
	return out
}
