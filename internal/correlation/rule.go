// Package correlation flags suspicious rows of a normalized log table.
package correlation

import (
	"fmt"

	"logsentry/internal/schema"
)

// RuleType defines the type of detection rule.
type RuleType string

const (
	// RuleTypeSeverity flags individual rows by level.
	RuleTypeSeverity RuleType = "severity"
	// RuleTypeSequence fires when matching rows occur back to back for one identity.
	RuleTypeSequence RuleType = "sequence"
)

// Condition operators.
const (
	OpEq        = "eq"
	OpNe        = "ne"
	OpIn        = "in"
	OpNotIn     = "not_in"
	OpExists    = "exists"
	OpNotExists = "not_exists"
)

// Rule describes one fixed detection policy.
type Rule struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description"`
	Type        RuleType        `yaml:"type" json:"type"`
	Severity    int             `yaml:"severity" json:"severity"`
	Category    string          `yaml:"category,omitempty" json:"category,omitempty"`
	Tags        []string        `yaml:"tags,omitempty" json:"tags,omitempty"`
	MITRE       *MITREMapping   `yaml:"mitre,omitempty" json:"mitre,omitempty"`
	Condition   Condition       `yaml:"condition" json:"condition"`
	Sequence    *SequenceConfig `yaml:"sequence,omitempty" json:"sequence,omitempty"`
}

// MITREMapping maps the rule to MITRE ATT&CK.
type MITREMapping struct {
	TacticID    string `yaml:"tactic_id" json:"tactic_id"`
	TacticName  string `yaml:"tactic_name" json:"tactic_name"`
	TechniqueID string `yaml:"technique_id" json:"technique_id"`
}

// SequenceConfig defines how sequence rules group and count rows.
type SequenceConfig struct {
	GroupBy string `yaml:"group_by" json:"group_by"`
	Length  int    `yaml:"length" json:"length"`
}

// Condition represents a filter condition for records.
type Condition struct {
	Field    string      `yaml:"field,omitempty" json:"field,omitempty"`
	Operator string      `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value    string      `yaml:"value,omitempty" json:"value,omitempty"`
	Values   []string    `yaml:"values,omitempty" json:"values,omitempty"` // For "in" operator
	And      []Condition `yaml:"and,omitempty" json:"and,omitempty"`
}

// Validate validates the rule configuration.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Severity < 1 || r.Severity > 10 {
		return fmt.Errorf("rule severity must be between 1 and 10")
	}

	switch r.Type {
	case RuleTypeSeverity:
	case RuleTypeSequence:
		if r.Sequence == nil {
			return fmt.Errorf("sequence config required for sequence rules")
		}
		if r.Sequence.GroupBy == "" {
			return fmt.Errorf("sequence rules require a group_by field")
		}
		if r.Sequence.Length < 2 {
			return fmt.Errorf("sequence length must be at least 2")
		}
	case "":
		return fmt.Errorf("rule type is required")
	default:
		return fmt.Errorf("unknown rule type: %s", r.Type)
	}

	if err := r.Condition.Validate(); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	return nil
}

// Fields returns every field name the rule's condition reads.
func (r *Rule) Fields() []string {
	seen := make(map[string]struct{})
	var out []string
	var walk func(c *Condition)
	walk = func(c *Condition) {
		if c.Field != "" {
			if _, ok := seen[c.Field]; !ok {
				seen[c.Field] = struct{}{}
				out = append(out, c.Field)
			}
		}
		for i := range c.And {
			walk(&c.And[i])
		}
	}
	walk(&r.Condition)
	return out
}

// Match reports whether the record satisfies the rule's condition.
func (r *Rule) Match(record schema.Record) bool {
	return r.Condition.Match(record)
}

// Validate validates a condition.
func (c *Condition) Validate() error {
	if c.Field == "" && len(c.And) == 0 {
		return fmt.Errorf("field is required")
	}
	if c.Field != "" {
		switch c.Operator {
		case OpEq, OpNe, OpExists, OpNotExists:
		case OpIn, OpNotIn:
			if len(c.Values) == 0 {
				return fmt.Errorf("values required for %s operator", c.Operator)
			}
		case "":
			return fmt.Errorf("operator is required")
		default:
			return fmt.Errorf("invalid operator: %s", c.Operator)
		}
	}
	for i := range c.And {
		if err := c.And[i].Validate(); err != nil {
			return fmt.Errorf("and[%d]: %w", i, err)
		}
	}
	return nil
}

// Match checks if a record matches this condition and all of its And
// conditions. Only string values take part in eq and in comparisons, so an
// absent or null field never equals anything.
func (c *Condition) Match(record schema.Record) bool {
	if c.Field != "" && !c.matchField(record) {
		return false
	}
	for i := range c.And {
		if !c.And[i].Match(record) {
			return false
		}
	}
	return true
}

func (c *Condition) matchField(record schema.Record) bool {
	v, present := record.Get(c.Field)
	switch c.Operator {
	case OpEq:
		return c.matchEquals(v)
	case OpNe:
		return !c.matchEquals(v)
	case OpIn:
		return c.matchIn(v)
	case OpNotIn:
		return !c.matchIn(v)
	case OpExists:
		return present && !v.IsNull()
	case OpNotExists:
		return !present || v.IsNull()
	}
	return false
}

func (c *Condition) matchEquals(v schema.Value) bool {
	s, ok := v.Str()
	return ok && s == c.Value
}

func (c *Condition) matchIn(v schema.Value) bool {
	s, ok := v.Str()
	if !ok {
		return false
	}
	for _, want := range c.Values {
		if s == want {
			return true
		}
	}
	return false
}
