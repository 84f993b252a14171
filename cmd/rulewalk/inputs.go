package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"
	"strings"
)

var (
	canonicalInt   = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)
	canonicalFloat = regexp.MustCompile(`^-?(0|[1-9][0-9]*)\.[0-9]+$`)
)

// parseInputs merges key=value flags over defaults and checks that the result
// encodes as JSON, so a bad value is rejected before any rule is touched.
//
// Only true, false and plain decimal numbers are decoded; every other value,
// including 007, 0x10, dates and .inf, is passed on as the string typed.
// Wrap a value in double quotes to force a string. The defaults map is not
// modified.
func parseInputs(defaults map[string]any, pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(defaults)+len(pairs))
	maps.Copy(inputs, defaults)

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q: want key=value", pair)
		}
		inputs[key] = decodeScalar(raw)
	}

	if _, err := json.Marshal(inputs); err != nil {
		return nil, fmt.Errorf("inputs cannot be encoded: %w", err)
	}
	return inputs, nil
}

func decodeScalar(raw string) any {
	switch {
	case raw == "true":
		return true
	case raw == "false":
		return false
	case len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"':
		if s, err := strconv.Unquote(raw); err == nil {
			return s
		}
	case canonicalInt.MatchString(raw):
		// Out of int range stays a string rather than losing digits.
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case canonicalFloat.MatchString(raw):
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
