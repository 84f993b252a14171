package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Dispatcher hands a manual trigger to whatever executes rule actions.
type Dispatcher interface {
	Dispatch(ctx context.Context, run *Run) error
}

// Publisher is the slice of the MQTT client the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// dispatchQoS is at-least-once; rule executors deduplicate on run_id.
const dispatchQoS byte = 1

// MQTTDispatcher publishes manual triggers as JSON messages.
type MQTTDispatcher struct {
	client Publisher
	topic  func(uid string) string
}

// NewMQTTDispatcher creates a dispatcher publishing to topic(uid) for each run.
//
// Example:
//
//	d := rules.NewMQTTDispatcher(mqttClient, mqtt.Topics{}.RuleRun)
func NewMQTTDispatcher(client Publisher, topic func(uid string) string) *MQTTDispatcher {
	return &MQTTDispatcher{client: client, topic: topic}
}

// runMessage is the wire format of a manual trigger.
type runMessage struct {
	RunID              string         `json:"run_id"`
	RuleUID            string         `json:"rule_uid"`
	Inputs             map[string]any `json:"inputs"`
	ConsiderConditions bool           `json:"consider_conditions"`
	Source             string         `json:"source,omitempty"`
	Timestamp          string         `json:"timestamp"`
}

// Dispatch publishes run. Returns ErrDispatchUnavailable when no client is set.
func (d *MQTTDispatcher) Dispatch(_ context.Context, run *Run) error {
	if d == nil || d.client == nil {
		return ErrDispatchUnavailable
	}

	inputs := run.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	payload, err := json.Marshal(runMessage{
		RunID:              run.ID,
		RuleUID:            run.RuleUID,
		Inputs:             inputs,
		ConsiderConditions: run.ConsiderConditions,
		Source:             run.Source,
		Timestamp:          run.TriggeredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling run: %w", err)
	}

	topic := d.topic(run.RuleUID)
	if err := d.client.Publish(topic, payload, dispatchQoS, false); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	return nil
}
