package rules

import (
	"sort"
	"strings"
)

// normaliseTag trims and lowercases a single tag.
func normaliseTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// normaliseTags trims, lowercases, deduplicates and sorts tags.
// Empty entries are dropped.
func normaliseTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := normaliseTag(tag)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormaliseTags is the exported form of the tag normalisation applied on
// every write. Useful for callers comparing tag sets.
func NormaliseTags(tags []string) []string {
	return normaliseTags(tags)
}
