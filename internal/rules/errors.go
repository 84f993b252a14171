package rules

import "errors"

// Domain errors for the rules package.
//
// Registry implementations return (or wrap) these so callers can use
// errors.Is regardless of backend:
//
//	if errors.Is(err, rules.ErrRuleNotFound) {
//	    // handle unknown uid
//	}
var (
	// ErrRuleNotFound is returned when a rule UID does not exist.
	ErrRuleNotFound = errors.New("rules: not found")

	// ErrRuleExists is returned when creating a rule with a UID that already exists.
	ErrRuleExists = errors.New("rules: already exists")

	// ErrRuleNotIdle is returned when a manual trigger hits a rule that is
	// disabled, uninitialised or already running.
	ErrRuleNotIdle = errors.New("rules: not idle")

	// ErrInvalidRule is returned when rule validation fails.
	ErrInvalidRule = errors.New("rules: invalid")

	// ErrInvalidUID is returned when a rule UID is empty or malformed.
	ErrInvalidUID = errors.New("rules: invalid uid")

	// ErrInvalidTag is returned when a tag is empty or too long.
	ErrInvalidTag = errors.New("rules: invalid tag")

	// ErrConditionsUnsupported is returned when a trigger asks for the rule's
	// conditions to be evaluated but the registry always skips them.
	ErrConditionsUnsupported = errors.New("rules: conditions not supported")

	// ErrDispatchUnavailable is returned when a manual trigger cannot be
	// handed to the message bus.
	ErrDispatchUnavailable = errors.New("rules: dispatch unavailable")
)
