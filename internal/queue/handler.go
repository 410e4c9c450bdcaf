package queue

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/outreach/pkg/logger"
	"github.com/OFFIS-RIT/outreach/pkg/store"

	"github.com/rabbitmq/amqp091-go"
)

// RecoverStaleRuns fails runs left in running by a worker that died. Their
// remaining messages are not sent again, because the ones already in flight
// cannot be told apart from the ones that never started.
func RecoverStaleRuns(ctx context.Context, st store.FlowStorage) error {
	staleRuns, err := st.StaleRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stale runs: %w", err)
	}

	if len(staleRuns) == 0 {
		logger.Debug("[Queue] No stale runs found")
		return nil
	}

	logger.Info("[Queue] Found stale runs", "count", len(staleRuns))

	for _, run := range staleRuns {
		if err := st.SetRunStatus(ctx, run.ID, store.RunFailed); err != nil {
			logger.Error("[Queue] Failed to reset stale run", "run_id", run.ID, "err", err)
			continue
		}
		logger.Info("[Queue] Marked stale run as failed", "run_id", run.ID, "flow_id", run.FlowID, "sent", run.Sent, "total", run.Total)
	}

	return nil
}

// ListenForCancels forwards cancel events to the runs tracked in reg until
// ctx is done or the delivery channel closes.
func ListenForCancels(ctx context.Context, msgs <-chan amqp091.Delivery, reg *Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Cancel subscription closed")
				return
			}
			data, err := ParseCancelMsg(msg.RoutingKey, msg.Body)
			if err != nil {
				logger.Warn("[Queue] Ignoring cancel message", "err", err)
				continue
			}
			n := reg.Cancel(data.FlowID, data.RunID, ErrRunCancelled)
			if n > 0 {
				logger.Info("[Queue] Cancelled runs", "flow_id", data.FlowID, "run_id", data.RunID, "count", n, "reason", data.Reason)
			}
		}
	}
}

// HandleProcessingError moves a failed message to the dead letter queue of
// queueName. Dispatch runs are never retried automatically.
func HandleProcessingError(pub Publisher, msg amqp091.Delivery, queueName string) {
	dlqName := DeadLetterQueue(queueName)
	logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName)
	if err := pub.PublishFIFO(dlqName, msg.Body); err != nil {
		logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
