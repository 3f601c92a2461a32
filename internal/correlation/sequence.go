package correlation

import (
	"fmt"
	"sort"
	"strings"

	"logsentry/internal/schema"

	"github.com/google/uuid"
)

// SequenceDetector finds runs of consecutive failed logins per user.
type SequenceDetector struct {
	rule *Rule
}

// NewSequenceDetector creates a detector for the builtin consecutive failure rule.
func NewSequenceDetector() *SequenceDetector {
	return &SequenceDetector{rule: ConsecutiveFailedLoginsRule()}
}

type group struct {
	identity string
	rows     []schema.Record
}

// DetectRuns scans each user's rows in table order with a sliding window and
// emits one anomaly for every window whose rows all match. Overlapping
// windows are reported separately, so a run of k failures yields k-2
// anomalies. Groups are reported in ascending identity order.
//
// A table missing any of the user, level, message and timestamp columns
// produces no anomalies.
func (d *SequenceDetector) DetectRuns(table *schema.Table) []schema.Anomaly {
	groupBy := d.rule.Sequence.GroupBy
	required := append([]string{groupBy, schema.FieldTimestamp}, d.rule.Fields()...)
	if table.Len() == 0 || !table.HasColumns(required...) {
		return nil
	}

	groups := partition(table.Rows, groupBy)
	width := d.rule.Sequence.Length

	var out []schema.Anomaly
	for _, g := range groups {
		for i := 0; i+width <= len(g.rows); i++ {
			window := g.rows[i : i+width]
			if !d.allMatch(window) {
				continue
			}
			out = append(out, d.anomaly(g.identity, window))
		}
	}
	return out
}

func (d *SequenceDetector) allMatch(rows []schema.Record) bool {
	for _, r := range rows {
		if !d.rule.Match(r) {
			return false
		}
	}
	return true
}

func (d *SequenceDetector) anomaly(identity string, window []schema.Record) schema.Anomaly {
	timestamps := make([]string, len(window))
	for i, r := range window {
		v, _ := r.Get(schema.FieldTimestamp)
		timestamps[i] = v.String()
	}
	return schema.Anomaly{
		ID:         uuid.New(),
		RuleID:     d.rule.ID,
		Kind:       schema.AnomalySequence,
		Severity:   d.rule.Severity,
		Identity:   identity,
		Timestamps: timestamps,
		Description: fmt.Sprintf("User '%s' had %d consecutive failed logins at %s",
			identity, len(window), strings.Join(timestamps, ", ")),
	}
}

// partition groups rows by the display value of field, keeping table order
// inside each group. Rows with a null value are skipped.
func partition(rows []schema.Record, field string) []group {
	index := make(map[string]int)
	var groups []group
	for _, r := range rows {
		v, ok := r.Get(field)
		if !ok || v.IsNull() {
			continue
		}
		key := v.String()
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{identity: key})
		}
		groups[i].rows = append(groups[i].rows, r)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].identity < groups[b].identity
	})
	return groups
}
