package walker

import (
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-rulewalk/internal/rules"
)

// Step names one operation of the per-rule sequence.
type Step string

// Walk steps in execution order. StepRestore only occurs after an abort
// with Options.RestoreOnAbort set.
const (
	StepStatus  Step = "status"
	StepDisable Step = "disable"
	StepDelay   Step = "delay"
	StepEnable  Step = "enable"
	StepRunNow  Step = "run_now"
	StepRestore Step = "restore"
)

// Sequence returns the per-rule steps in the order they run.
func Sequence() []Step {
	return []Step{StepStatus, StepDisable, StepDelay, StepEnable, StepRunNow}
}

// Event describes one executed step.
type Event struct {
	WalkID   string
	Tag      string
	RuleUID  string
	Step     Step
	Err      error
	Duration time.Duration
	At       time.Time

	// Status is set on StepStatus events that succeeded.
	Status *rules.StatusInfo
}

// Outcome returns "ok" or "error".
func (e Event) Outcome() string {
	if e.Err != nil {
		return "error"
	}
	return "ok"
}

// RuleOutcome records what happened to one rule during a walk.
type RuleOutcome struct {
	UID       string
	Name      string
	Status    rules.StatusInfo
	Completed []Step
	Err       error
	Restored  bool
}

// Done reports whether all steps of the sequence completed.
func (o RuleOutcome) Done() bool {
	return o.Err == nil && len(o.Completed) == len(Sequence())
}

// completed reports whether step finished successfully.
func (o RuleOutcome) completed(step Step) bool {
	for _, s := range o.Completed {
		if s == step {
			return true
		}
	}
	return false
}

// Report summarises a walk. Rules lists every rule the walk reached, in
// order; on abort the last entry carries the error.
type Report struct {
	WalkID      string
	Tag         string
	Matched     int
	Rules       []RuleOutcome
	StartedAt   time.Time
	CompletedAt time.Time
}

// Succeeded returns how many rules completed the full sequence.
func (r *Report) Succeeded() int {
	n := 0
	for _, o := range r.Rules {
		if o.Done() {
			n++
		}
	}
	return n
}

// Duration returns the elapsed walk time.
func (r *Report) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// StepError is returned when a step fails. It wraps the registry's error.
type StepError struct {
	RuleUID string
	Step    Step
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("rule %s: %s: %v", e.RuleUID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
