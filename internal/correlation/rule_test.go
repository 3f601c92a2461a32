package correlation

import (
	"testing"

	"logsentry/internal/schema"
)

func rec(pairs ...string) schema.Record {
	fields := make([]schema.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, schema.Field{Name: pairs[i], Value: schema.String(pairs[i+1])})
	}
	return schema.NewRecord(fields...)
}

func TestCondition_Match(t *testing.T) {
	withNull := schema.NewRecord(
		schema.Field{Name: "level", Value: schema.Null()},
	)
	numeric := schema.NewRecord(
		schema.Field{Name: "level", Value: schema.NumberText("3")},
	)

	tests := []struct {
		name      string
		condition Condition
		record    schema.Record
		expected  bool
	}{
		{
			name:      "eq string match",
			condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			record:    rec("level", "ERROR"),
			expected:  true,
		},
		{
			name:      "eq is case sensitive",
			condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			record:    rec("level", "error"),
			expected:  false,
		},
		{
			name:      "eq absent field",
			condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			record:    rec("user", "bob"),
			expected:  false,
		},
		{
			name:      "eq null field",
			condition: Condition{Field: "level", Operator: OpEq, Value: "null"},
			record:    withNull,
			expected:  false,
		},
		{
			name:      "eq numeric value",
			condition: Condition{Field: "level", Operator: OpEq, Value: "3"},
			record:    numeric,
			expected:  false,
		},
		{
			name:      "ne match",
			condition: Condition{Field: "level", Operator: OpNe, Value: "INFO"},
			record:    rec("level", "ERROR"),
			expected:  true,
		},
		{
			name:      "in list match",
			condition: Condition{Field: "level", Operator: OpIn, Values: []string{"ERROR", "CRITICAL"}},
			record:    rec("level", "CRITICAL"),
			expected:  true,
		},
		{
			name:      "in list no match",
			condition: Condition{Field: "level", Operator: OpIn, Values: []string{"ERROR", "CRITICAL"}},
			record:    rec("level", "WARNING"),
			expected:  false,
		},
		{
			name:      "in absent field",
			condition: Condition{Field: "level", Operator: OpIn, Values: []string{"ERROR"}},
			record:    rec("message", "x"),
			expected:  false,
		},
		{
			name:      "not_in absent field",
			condition: Condition{Field: "level", Operator: OpNotIn, Values: []string{"ERROR"}},
			record:    rec("message", "x"),
			expected:  true,
		},
		{
			name:      "exists match",
			condition: Condition{Field: "user", Operator: OpExists},
			record:    rec("user", "bob"),
			expected:  true,
		},
		{
			name:      "exists null",
			condition: Condition{Field: "level", Operator: OpExists},
			record:    withNull,
			expected:  false,
		},
		{
			name:      "not_exists absent",
			condition: Condition{Field: "user", Operator: OpNotExists},
			record:    rec("level", "INFO"),
			expected:  true,
		},
		{
			name: "and all match",
			condition: Condition{And: []Condition{
				{Field: "level", Operator: OpEq, Value: "ERROR"},
				{Field: "message", Operator: OpEq, Value: "Failed login"},
			}},
			record:   rec("level", "ERROR", "message", "Failed login"),
			expected: true,
		},
		{
			name: "and one fails",
			condition: Condition{And: []Condition{
				{Field: "level", Operator: OpEq, Value: "ERROR"},
				{Field: "message", Operator: OpEq, Value: "Failed login"},
			}},
			record:   rec("level", "CRITICAL", "message", "Failed login"),
			expected: false,
		},
		{
			name:      "unknown operator",
			condition: Condition{Field: "level", Operator: "regex", Value: ".*"},
			record:    rec("level", "ERROR"),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.condition.Match(tt.record)
			if result != tt.expected {
				t.Errorf("Match() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{
			name: "valid severity rule",
			rule: Rule{
				ID:        "test-1",
				Name:      "Test Rule",
				Type:      RuleTypeSeverity,
				Severity:  7,
				Condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			rule: Rule{
				Name:      "Test Rule",
				Type:      RuleTypeSeverity,
				Severity:  7,
				Condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			},
			wantErr: true,
		},
		{
			name: "missing type",
			rule: Rule{
				ID:        "test-1",
				Name:      "Test Rule",
				Severity:  7,
				Condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			},
			wantErr: true,
		},
		{
			name: "severity out of range",
			rule: Rule{
				ID:        "test-1",
				Name:      "Test Rule",
				Type:      RuleTypeSeverity,
				Severity:  11,
				Condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			},
			wantErr: true,
		},
		{
			name: "sequence rule without config",
			rule: Rule{
				ID:        "test-1",
				Name:      "Test Rule",
				Type:      RuleTypeSequence,
				Severity:  7,
				Condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
			},
			wantErr: true,
		},
		{
			name: "sequence rule too short",
			rule: Rule{
				ID:        "test-1",
				Name:      "Test Rule",
				Type:      RuleTypeSequence,
				Severity:  7,
				Condition: Condition{Field: "level", Operator: OpEq, Value: "ERROR"},
				Sequence:  &SequenceConfig{GroupBy: "user", Length: 1},
			},
			wantErr: true,
		},
		{
			name: "in without values",
			rule: Rule{
				ID:        "test-1",
				Name:      "Test Rule",
				Type:      RuleTypeSeverity,
				Severity:  7,
				Condition: Condition{Field: "level", Operator: OpIn},
			},
			wantErr: true,
		},
		{
			name: "invalid nested operator",
			rule: Rule{
				ID:       "test-1",
				Name:     "Test Rule",
				Type:     RuleTypeSeverity,
				Severity: 7,
				Condition: Condition{And: []Condition{
					{Field: "level", Operator: "gt", Value: "3"},
				}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuiltinRules(t *testing.T) {
	rules := BuiltinRules()
	if len(rules) != 2 {
		t.Fatalf("BuiltinRules() returned %d rules, want 2", len(rules))
	}

	seen := make(map[string]bool)
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			t.Errorf("rule %s invalid: %v", r.ID, err)
		}
		if seen[r.ID] {
			t.Errorf("duplicate rule ID %s", r.ID)
		}
		seen[r.ID] = true
	}

	seq := ConsecutiveFailedLoginsRule()
	if seq.MITRE == nil || seq.MITRE.TechniqueID != "T1110" {
		t.Errorf("MITRE = %+v, want technique T1110", seq.MITRE)
	}
	fields := seq.Fields()
	if len(fields) != 2 || fields[0] != schema.FieldLevel || fields[1] != schema.FieldMessage {
		t.Errorf("Fields() = %v, want [level message]", fields)
	}
}

func TestPolicy(t *testing.T) {
	source := []ExclusionRule{
		{Message: "Failed login", User: "bob"},
		{Message: "Disk full", User: "ops"},
		{Message: "Failed login", User: "bob"},
	}
	p := NewPolicy(source)

	source[0].User = "mallory"
	if !p.Excluded("Failed login", "bob") {
		t.Error("policy should keep its own copy of the exclusions")
	}
	if p.Excluded("Failed login", "mallory") {
		t.Error("mutating the source must not change the policy")
	}

	got := p.Exclusions()
	if len(got) != 2 {
		t.Fatalf("Exclusions() = %v, want 2 unique entries", got)
	}
	got[0].User = "eve"
	if p.Excluded("Failed login", "eve") {
		t.Error("Exclusions() must return a copy")
	}

	if p.Excluded("failed login", "bob") {
		t.Error("matching is exact")
	}
	if !DefaultPolicy().Excluded(FailedLoginMessage, "bob") {
		t.Error("default policy should exclude (Failed login, bob)")
	}
}
