package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementWalkSteps = "rulewalk_steps"
	MeasurementWalks     = "rulewalk_walks"
)

// WriteWalkStep records the outcome and duration of one walk step.
//
// Parameters:
//   - ruleUID: Rule the step ran against (tag rule_uid)
//   - step: Step name such as "disable" or "run_now" (tag step)
//   - outcome: "ok" or "failed" (tag outcome)
//   - duration: Time the step took (field duration_ms)
//   - at: Point timestamp; zero means now
//
// The write is non-blocking; failures surface through SetOnError.
func (c *Client) WriteWalkStep(ruleUID, step, outcome string, duration time.Duration, at time.Time) {
	c.writePoint(
		MeasurementWalkSteps,
		map[string]string{
			"rule_uid": ruleUID,
			"step":     step,
			"outcome":  outcome,
		},
		map[string]interface{}{
			"duration_ms": durationMillis(duration),
		},
		at,
	)
}

// WriteWalkSummary records one point per finished walk.
//
// Parameters:
//   - tag: Tag the walk selected rules by (tag tag)
//   - matched: Number of rules the tag matched (field matched)
//   - completed: Number of rules that finished every step (field completed)
//   - succeeded: Whether the walk finished without error (tag succeeded)
//   - duration: Wall time of the walk (field duration_ms)
//   - at: Point timestamp; zero means now
func (c *Client) WriteWalkSummary(tag string, matched, completed int, succeeded bool, duration time.Duration, at time.Time) {
	outcome := "ok"
	if !succeeded {
		outcome = "error"
	}
	c.writePoint(
		MeasurementWalks,
		map[string]string{
			"tag":     tag,
			"outcome": outcome,
		},
		map[string]interface{}{
			"matched":     matched,
			"completed":   completed,
			"duration_ms": durationMillis(duration),
		},
		at,
	)
}

func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, at))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
