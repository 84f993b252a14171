package rules

import "time"

// Status is the coarse runtime state of a rule.
type Status string

// Rule status values.
const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusInitializing  Status = "INITIALIZING"
	StatusIdle          Status = "IDLE"
	StatusRunning       Status = "RUNNING"
)

// StatusDetail refines a Status, typically explaining why a rule is
// UNINITIALIZED.
type StatusDetail string

// Rule status detail values.
const (
	DetailNone                     StatusDetail = "NONE"
	DetailDisabled                 StatusDetail = "DISABLED"
	DetailHandlerMissing           StatusDetail = "HANDLER_MISSING_ERROR"
	DetailHandlerInitializingError StatusDetail = "HANDLER_INITIALIZING_ERROR"
	DetailConfigurationError       StatusDetail = "CONFIGURATION_ERROR"
	DetailTemplateMissing          StatusDetail = "TEMPLATE_MISSING_ERROR"
	DetailInvalidRule              StatusDetail = "INVALID_RULE"
)

// AllStatuses returns every known status.
func AllStatuses() []Status {
	return []Status{StatusUninitialized, StatusInitializing, StatusIdle, StatusRunning}
}

// StatusInfo is the status snapshot a registry reports for one rule.
type StatusInfo struct {
	Status      Status       `json:"status" yaml:"status"`
	Detail      StatusDetail `json:"statusDetail,omitempty" yaml:"detail,omitempty"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
}

// String renders the status as "STATUS" or "STATUS (DETAIL)".
func (s StatusInfo) String() string {
	if s.Detail == "" || s.Detail == DetailNone {
		return string(s.Status)
	}
	return string(s.Status) + " (" + string(s.Detail) + ")"
}

// statusFor returns the resting status for a rule with the given enabled flag.
func statusFor(enabled bool) StatusInfo {
	if enabled {
		return StatusInfo{Status: StatusIdle, Detail: DetailNone}
	}
	return StatusInfo{Status: StatusUninitialized, Detail: DetailDisabled}
}

// Condition is an input equality check evaluated by the local backend when a
// manual trigger asks for conditions to be considered.
type Condition struct {
	Input  string `json:"input" yaml:"input"`
	Equals any    `json:"equals" yaml:"equals"`
}

// Rule is an automation rule as seen through a registry.
//
// Only UID, Tags, Enabled and Status matter to a walk; the remaining fields
// are carried for listing and for the local backend.
type Rule struct {
	UID         string      `json:"uid" yaml:"uid"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string    `json:"tags" yaml:"tags"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Conditions  []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Status      StatusInfo  `json:"status" yaml:"-"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`
}

// Run records one manual trigger of a rule.
type Run struct {
	ID                 string         `json:"id"`
	RuleUID            string         `json:"rule_uid"`
	Inputs             map[string]any `json:"inputs"`
	ConsiderConditions bool           `json:"consider_conditions"`
	Skipped            bool           `json:"skipped"`
	Source             string         `json:"source,omitempty"`
	TriggeredAt        time.Time      `json:"triggered_at"`
}

// DeepCopy creates a complete independent copy of the Rule.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}

	cpy := *r

	if r.Tags != nil {
		cpy.Tags = make([]string, len(r.Tags))
		copy(cpy.Tags, r.Tags)
	}
	if r.Conditions != nil {
		cpy.Conditions = make([]Condition, len(r.Conditions))
		for i, c := range r.Conditions {
			cpy.Conditions[i] = Condition{Input: c.Input, Equals: deepCopyValue(c.Equals)}
		}
	}

	return &cpy
}

// HasTag reports whether the rule carries the tag after normalisation.
func (r *Rule) HasTag(tag string) bool {
	want := normaliseTag(tag)
	for _, t := range r.Tags {
		if normaliseTag(t) == want {
			return true
		}
	}
	return false
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
