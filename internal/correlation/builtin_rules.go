package correlation

import "logsentry/internal/schema"

// Rule IDs of the builtin policy.
const (
	RuleHighSeverity     = "builtin-high-severity"
	RuleConsecutiveFails = "builtin-consecutive-failed-logins"
)

// Severity scores assigned to flagged rows.
const (
	SeverityError    = 7
	SeverityCritical = 10
)

// BuiltinRules returns the built-in detection rules.
func BuiltinRules() []*Rule {
	return []*Rule{
		HighSeverityRule(),
		ConsecutiveFailedLoginsRule(),
	}
}

// HighSeverityRule flags rows logged at the error or critical tier.
func HighSeverityRule() *Rule {
	return &Rule{
		ID:          RuleHighSeverity,
		Name:        "High Severity Log Entry",
		Description: "Entry logged at ERROR or CRITICAL level and not on the exclusion list",
		Type:        RuleTypeSeverity,
		Severity:    SeverityError,
		Category:    "Operations",
		Tags:        []string{"severity", "error"},
		Condition: Condition{
			Field:    schema.FieldLevel,
			Operator: OpIn,
			Values:   []string{LevelError, LevelCritical},
		},
	}
}

// ConsecutiveFailedLoginsRule detects back to back login failures for one user.
func ConsecutiveFailedLoginsRule() *Rule {
	return &Rule{
		ID:          RuleConsecutiveFails,
		Name:        "Consecutive Failed Logins",
		Description: "Three consecutive failed logins for the same user",
		Type:        RuleTypeSequence,
		Severity:    SeverityError,
		Category:    "Authentication",
		Tags:        []string{"authentication", "attack", "brute-force"},
		MITRE: &MITREMapping{
			TacticID:    "TA0006",
			TacticName:  "Credential Access",
			TechniqueID: "T1110",
		},
		Condition: Condition{
			And: []Condition{
				{Field: schema.FieldLevel, Operator: OpEq, Value: LevelError},
				{Field: schema.FieldMessage, Operator: OpEq, Value: FailedLoginMessage},
			},
		},
		Sequence: &SequenceConfig{
			GroupBy: schema.FieldUser,
			Length:  RunLength,
		},
	}
}
