package rules

import "context"

// Registry is the rule engine surface a walk consumes.
//
// Implementations report unknown UIDs as ErrRuleNotFound (possibly
// wrapped). No implementation retries on its own; a failed call is
// returned to the caller as is.
type Registry interface {
	// GetByTag returns the rules carrying tag. An empty result is not an error.
	// Whether case matters is up to the backend.
	GetByTag(ctx context.Context, tag string) ([]Rule, error)

	// GetStatusInfo returns the current status of a rule.
	GetStatusInfo(ctx context.Context, uid string) (StatusInfo, error)

	// SetEnabled enables or disables a rule.
	SetEnabled(ctx context.Context, uid string, enabled bool) error

	// RunNow triggers a rule manually. inputs are passed through untouched.
	RunNow(ctx context.Context, uid string, considerConditions bool, inputs map[string]any) error
}

// ConditionEvaluator is implemented by registries that can say up front
// whether RunNow honours considerConditions. A registry that does not
// implement it is assumed to honour the flag.
type ConditionEvaluator interface {
	EvaluatesConditions() bool
}

// EvaluatesConditions reports whether reg honours considerConditions.
func EvaluatesConditions(reg Registry) bool {
	if ce, ok := reg.(ConditionEvaluator); ok {
		return ce.EvaluatesConditions()
	}
	return true
}

// Logger defines the logging interface used by the local registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
