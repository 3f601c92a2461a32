package correlation

import (
	"logsentry/internal/schema"

	"github.com/google/uuid"
)

// SeverityFilter flags rows at the error or critical tier that are not
// covered by the policy's exclusions.
type SeverityFilter struct {
	policy *Policy
	rule   *Rule
}

// NewSeverityFilter creates a filter for policy. A nil policy excludes nothing.
func NewSeverityFilter(policy *Policy) *SeverityFilter {
	if policy == nil {
		policy = NewPolicy(nil)
	}
	return &SeverityFilter{policy: policy, rule: HighSeverityRule()}
}

// FilterAnomalies returns one record anomaly per flagged row, in table order.
func (f *SeverityFilter) FilterAnomalies(table *schema.Table) []schema.Anomaly {
	var out []schema.Anomaly
	for _, row := range table.Rows {
		if !f.rule.Match(row) {
			continue
		}
		if f.excluded(row) {
			continue
		}

		level, _ := row.Text(schema.FieldLevel)
		severity := SeverityError
		if level == LevelCritical {
			severity = SeverityCritical
		}

		flagged := row
		a := schema.Anomaly{
			ID:          uuid.New(),
			RuleID:      f.rule.ID,
			Kind:        schema.AnomalyRecord,
			Severity:    severity,
			Record:      &flagged,
			Description: row.String(),
		}
		if v, ok := row.Get(schema.FieldUser); ok && !v.IsNull() {
			a.Identity = v.String()
		}
		if v, ok := row.Get(schema.FieldTimestamp); ok && !v.IsNull() {
			a.Timestamps = []string{v.String()}
		}
		out = append(out, a)
	}
	return out
}

// excluded requires both message and user to be strings.
func (f *SeverityFilter) excluded(row schema.Record) bool {
	message, ok := row.Text(schema.FieldMessage)
	if !ok {
		return false
	}
	user, ok := row.Text(schema.FieldUser)
	if !ok {
		return false
	}
	return f.policy.Excluded(message, user)
}
