package rules

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the YAML layout accepted by LoadFile.
//
//	rules:
//	  - uid: R1
//	    name: Hallway motion
//	    tags: [a, lighting]
//	    conditions:
//	      - input: name
//	        equals: EXAMPLE
type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	UID         string      `yaml:"uid"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Tags        []string    `yaml:"tags"`
	Enabled     *bool       `yaml:"enabled"`
	Conditions  []Condition `yaml:"conditions"`
}

// LoadFile parses a YAML rule file. Rules default to enabled; every rule is
// validated and duplicate uids are rejected.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}

	seen := make(map[string]bool, len(file.Rules))
	out := make([]Rule, 0, len(file.Rules))
	for i, entry := range file.Rules {
		rule := Rule{
			UID:         entry.UID,
			Name:        entry.Name,
			Description: entry.Description,
			Tags:        normaliseTags(entry.Tags),
			Enabled:     entry.Enabled == nil || *entry.Enabled,
			Conditions:  entry.Conditions,
		}
		if err := ValidateRule(&rule); err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
		if seen[rule.UID] {
			return nil, fmt.Errorf("rule[%d]: %w: duplicate uid %q", i, ErrInvalidRule, rule.UID)
		}
		seen[rule.UID] = true
		out = append(out, rule)
	}
	return out, nil
}

// ImportResult summarises an Import call.
type ImportResult struct {
	Created int
	Updated int
}

// Import upserts rules into the registry: unknown uids are added, known
// uids are updated in place. It stops at the first failure.
func (r *LocalRegistry) Import(ctx context.Context, list []Rule) (ImportResult, error) {
	var res ImportResult
	for i := range list {
		rule := list[i].DeepCopy()

		_, err := r.Get(ctx, rule.UID)
		switch {
		case err == nil:
			if err := r.Update(ctx, rule); err != nil {
				return res, fmt.Errorf("updating %s: %w", rule.UID, err)
			}
			res.Updated++
		case errors.Is(err, ErrRuleNotFound):
			if err := r.Add(ctx, rule); err != nil {
				return res, fmt.Errorf("adding %s: %w", rule.UID, err)
			}
			res.Created++
		default:
			return res, err
		}
	}
	return res, nil
}
