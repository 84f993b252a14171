package walker

import (
	"context"
	"encoding/json"
	"time"
)

// Observer is notified after every walk step. Implementations must not
// block for long; they run inline with the walk.
type Observer interface {
	OnStep(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// OnStep calls f.
func (f ObserverFunc) OnStep(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans an event out to each member in order. Nil members are
// skipped.
type Observers []Observer

// OnStep delivers ev to every observer.
func (o Observers) OnStep(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.OnStep(ctx, ev)
		}
	}
}

// LogObserver writes one log line per step.
type LogObserver struct {
	logger Logger
}

// NewLogObserver creates a logging observer.
func NewLogObserver(logger Logger) *LogObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogObserver{logger: logger}
}

// OnStep logs ev at info, or at error when the step failed.
func (l *LogObserver) OnStep(_ context.Context, ev Event) {
	args := []any{
		"walk_id", ev.WalkID,
		"rule_uid", ev.RuleUID,
		"step", string(ev.Step),
		"duration", ev.Duration,
	}
	if ev.Status != nil {
		args = append(args, "status", ev.Status.String())
	}
	if ev.Err != nil {
		l.logger.Error("walk step failed", append(args, "error", ev.Err)...)
		return
	}
	l.logger.Info("walk step", args...)
}

// Publisher is the slice of the MQTT client BusObserver needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// busEventQoS is at-most-once; step events are informational.
const busEventQoS byte = 0

// BusObserver publishes each step as a JSON message.
type BusObserver struct {
	client Publisher
	topic  func(walkID, step string) string
	logger Logger
}

// NewBusObserver creates an observer publishing to topic(walkID, step).
//
// Example:
//
//	obs := walker.NewBusObserver(mqttClient, mqtt.Topics{}.WalkEvent, log)
func NewBusObserver(client Publisher, topic func(walkID, step string) string, logger Logger) *BusObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &BusObserver{client: client, topic: topic, logger: logger}
}

// StepMessage is the JSON payload BusObserver publishes for each step.
type StepMessage struct {
	WalkID     string `json:"walk_id"`
	Tag        string `json:"tag"`
	RuleUID    string `json:"rule_uid"`
	Step       string `json:"step"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"`
}

// OnStep publishes ev. Publish failures are logged and otherwise ignored.
func (b *BusObserver) OnStep(_ context.Context, ev Event) {
	if b.client == nil {
		return
	}

	msg := StepMessage{
		WalkID:     ev.WalkID,
		Tag:        ev.Tag,
		RuleUID:    ev.RuleUID,
		Step:       string(ev.Step),
		Outcome:    ev.Outcome(),
		DurationMS: ev.Duration.Milliseconds(),
		Timestamp:  ev.At.UTC().Format(time.RFC3339),
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	if ev.Status != nil {
		msg.Status = string(ev.Status.Status)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("marshalling step event", "error", err)
		return
	}
	topic := b.topic(ev.WalkID, string(ev.Step))
	if err := b.client.Publish(topic, payload, busEventQoS, false); err != nil {
		b.logger.Warn("publishing step event", "topic", topic, "error", err)
	}
}

// StepWriter records step timings in a time-series store.
type StepWriter interface {
	WriteWalkStep(ruleUID, step, outcome string, duration time.Duration, at time.Time)
}

// MetricsObserver forwards step timings to a StepWriter.
type MetricsObserver struct {
	writer StepWriter
}

// NewMetricsObserver creates a metrics observer.
func NewMetricsObserver(writer StepWriter) *MetricsObserver {
	return &MetricsObserver{writer: writer}
}

// OnStep writes one point per step.
func (m *MetricsObserver) OnStep(_ context.Context, ev Event) {
	if m.writer == nil {
		return
	}
	m.writer.WriteWalkStep(ev.RuleUID, string(ev.Step), ev.Outcome(), ev.Duration, ev.At)
}
