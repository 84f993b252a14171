package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rulewalk/internal/walker"
)

// eventPrinter writes walk step events received from the bus. paho calls
// handle from its own goroutines, so writes are serialised.
type eventPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	rawJSON bool
}

func newEventPrinter(w io.Writer, rawJSON bool) *eventPrinter {
	return &eventPrinter{w: w, rawJSON: rawJSON}
}

func (p *eventPrinter) handle(topic string, payload []byte) error {
	if _, _, ok := mqtt.ParseWalkEventTopic(topic); !ok {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rawJSON {
		_, err := fmt.Fprintf(p.w, "%s\n", payload)
		return err
	}

	var msg walker.StepMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding walk event: %w", err)
	}

	line := fmt.Sprintf("%s  walk=%s  rule=%s  %-8s %s  %dms",
		msg.Timestamp, msg.WalkID, msg.RuleUID, msg.Step, msg.Outcome, msg.DurationMS)
	if msg.Status != "" {
		line += "  status=" + msg.Status
	}
	if msg.Error != "" {
		line += "  error=" + msg.Error
	}
	_, err := fmt.Fprintln(p.w, line)
	return err
}
