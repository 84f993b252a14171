package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxUIDLength         = 128
	maxNameLength        = 100
	maxDescriptionLength = 500
	maxTags              = 20
	maxTagLength         = 50
	maxConditions        = 20
	uidPattern           = `^[A-Za-z0-9][A-Za-z0-9_.:-]*$`
)

var uidRegex = regexp.MustCompile(uidPattern)

// ValidateRule checks a rule before it is persisted by the local registry.
// Returns an error describing the first validation failure found.
func ValidateRule(r *Rule) error {
	if r == nil {
		return ErrInvalidRule
	}

	if err := ValidateUID(r.UID); err != nil {
		return err
	}

	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidRule)
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRule, maxNameLength)
	}
	if len(r.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRule, maxDescriptionLength)
	}

	if len(r.Tags) > maxTags {
		return fmt.Errorf("%w: exceeds maximum of %d tags", ErrInvalidTag, maxTags)
	}
	for _, tag := range r.Tags {
		if err := ValidateTag(tag); err != nil {
			return err
		}
	}

	if len(r.Conditions) > maxConditions {
		return fmt.Errorf("%w: exceeds maximum of %d conditions", ErrInvalidRule, maxConditions)
	}
	for i, c := range r.Conditions {
		if strings.TrimSpace(c.Input) == "" {
			return fmt.Errorf("%w: condition[%d]: input is required", ErrInvalidRule, i)
		}
	}

	return nil
}

// ValidateUID checks that a rule UID is non-empty and well formed.
func ValidateUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: uid cannot be empty", ErrInvalidUID)
	}
	if len(uid) > maxUIDLength {
		return fmt.Errorf("%w: uid exceeds %d characters", ErrInvalidUID, maxUIDLength)
	}
	if !uidRegex.MatchString(uid) {
		return fmt.Errorf("%w: %q must be alphanumeric with _ . : -", ErrInvalidUID, uid)
	}
	return nil
}

// ValidateTag checks a single tag after normalisation.
func ValidateTag(tag string) error {
	t := normaliseTag(tag)
	if t == "" {
		return fmt.Errorf("%w: tag cannot be empty", ErrInvalidTag)
	}
	if len(t) > maxTagLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidTag, t, maxTagLength)
	}
	return nil
}

// GenerateID creates a new identifier for a rule or run.
func GenerateID() string {
	return uuid.New().String()
}
