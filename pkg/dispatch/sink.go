package dispatch

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/outreach/pkg/logger"
)

// Outcome is the result of sending one item.
type Outcome struct {
	RunID      string
	Item       Item
	MessageID  string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Sink receives the outcome of every send. Report is called from the send
// goroutines, so implementations must be safe for concurrent use.
type Sink interface {
	Report(ctx context.Context, o Outcome)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, o Outcome)

func (f SinkFunc) Report(ctx context.Context, o Outcome) {
	f(ctx, o)
}

// MultiSink reports every outcome to each of its sinks in order.
type MultiSink []Sink

func (m MultiSink) Report(ctx context.Context, o Outcome) {
	for _, s := range m {
		if s != nil {
			s.Report(ctx, o)
		}
	}
}

// LogSink writes one log line per outcome. Messages are numbered from 1.
type LogSink struct{}

func (LogSink) Report(_ context.Context, o Outcome) {
	if o.OK() {
		logger.Info(
			"Message delivered",
			"run_id", o.RunID,
			"message", o.Item.Index+1,
			"node_id", o.Item.NodeID,
			"message_id", o.MessageID,
			"duration", o.Duration(),
		)
		return
	}
	logger.Error(
		"Encountered an error when sending message",
		"run_id", o.RunID,
		"message", o.Item.Index+1,
		"node_id", o.Item.NodeID,
		"err", o.Err,
	)
}
