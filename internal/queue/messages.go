package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/outreach/pkg/dispatch"
	"github.com/OFFIS-RIT/outreach/pkg/store"
)

const (
	cancelTopicPrefix  = "dispatch.cancel."
	outcomeTopicPrefix = "dispatch.outcome."
)

// CancelPattern matches the cancel events of every flow.
const CancelPattern = cancelTopicPrefix + "*"

// DispatchMsg asks a worker to run a dispatch. Items is the snapshot of the
// flow's nodes taken when the run was started.
type DispatchMsg struct {
	Message   string          `json:"message,omitempty"`
	RunID     string          `json:"run_id"`
	FlowID    string          `json:"flow_id"`
	Recipient string          `json:"recipient"`
	Subject   string          `json:"subject"`
	DelayMs   int64           `json:"delay_ms"`
	Items     []dispatch.Item `json:"items"`
}

func (m DispatchMsg) Delay() time.Duration {
	return time.Duration(m.DelayMs) * time.Millisecond
}

// CancelMsg stops active runs of a flow. An empty RunID cancels all of them.
type CancelMsg struct {
	FlowID string `json:"flow_id"`
	RunID  string `json:"run_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// OutcomeMsg is published for every finished send.
type OutcomeMsg struct {
	FlowID string `json:"flow_id"`
	store.RunOutcome
}

func CancelTopic(flowID string) string {
	return cancelTopicPrefix + flowID
}

func OutcomeTopic(flowID string) string {
	return outcomeTopicPrefix + flowID
}

func ParseDispatchMsg(body []byte) (*DispatchMsg, error) {
	data := new(DispatchMsg)
	if err := json.Unmarshal(body, data); err != nil {
		return nil, fmt.Errorf("invalid dispatch message: %w", err)
	}
	if data.RunID == "" || data.FlowID == "" {
		return nil, errors.New("dispatch message without run or flow id")
	}
	if data.DelayMs < 0 {
		return nil, fmt.Errorf("%w: %dms", dispatch.ErrNegativeDelay, data.DelayMs)
	}
	return data, nil
}

// ParseCancelMsg decodes a cancel event. The flow id falls back to the last
// segment of the routing key.
func ParseCancelMsg(routingKey string, body []byte) (*CancelMsg, error) {
	data := new(CancelMsg)
	if len(body) > 0 {
		if err := json.Unmarshal(body, data); err != nil {
			return nil, fmt.Errorf("invalid cancel message: %w", err)
		}
	}
	if data.FlowID == "" && strings.HasPrefix(routingKey, cancelTopicPrefix) {
		data.FlowID = strings.TrimPrefix(routingKey, cancelTopicPrefix)
	}
	if data.FlowID == "" {
		return nil, errors.New("cancel message without flow id")
	}
	return data, nil
}

// PublishCancel announces that active runs of a flow must stop.
func PublishCancel(pub Publisher, msg CancelMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return pub.PublishTopic(CancelTopic(msg.FlowID), body)
}

// PublishDispatch enqueues a run for the workers.
func PublishDispatch(pub Publisher, msg DispatchMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return pub.PublishFIFO(DispatchQueue, body)
}
