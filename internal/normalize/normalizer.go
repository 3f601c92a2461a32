// Package normalize deduplicates parsed tables and orders them
// chronologically when every row carries a usable timestamp.
package normalize

import (
	"log/slog"
	"sort"
	"time"

	"logsentry/internal/schema"
)

// Result is the outcome of normalizing a table.
type Result struct {
	Table      *schema.Table
	Duplicates int  // rows removed as exact duplicates
	Sorted     bool // rows were reordered by timestamp
}

// Normalizer turns parsed tables into their canonical form.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil logger uses slog.Default.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize pads rows to the union of columns, removes exact duplicates
// keeping first occurrences, and stable-sorts by timestamp when every row's
// timestamp parses. Otherwise the input order is kept as is.
func (n *Normalizer) Normalize(table *schema.Table) *Result {
	padded := schema.NewTable(table.Rows)
	deduped, removed := padded.Dedup()

	res := &Result{Table: deduped, Duplicates: removed}

	instants, ok := timestamps(deduped)
	if ok {
		sortByTime(deduped.Rows, instants)
		res.Sorted = true
	}

	n.logger.Debug("table normalized",
		"rows", deduped.Len(),
		"columns", len(deduped.Columns),
		"duplicates", removed,
		"sorted", res.Sorted,
	)

	return res
}

// Normalize normalizes table with the default logger and returns the
// resulting table.
func Normalize(table *schema.Table) *schema.Table {
	return NewNormalizer(nil).Normalize(table).Table
}

// timestamps parses every row's timestamp. It reports false as soon as one
// row lacks a parseable string timestamp.
func timestamps(table *schema.Table) ([]time.Time, bool) {
	if !table.HasColumn(schema.FieldTimestamp) {
		return nil, false
	}
	out := make([]time.Time, len(table.Rows))
	for i, row := range table.Rows {
		s, ok := row.Text(schema.FieldTimestamp)
		if !ok {
			return nil, false
		}
		t, ok := ParseTimestamp(s)
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

type byTime struct {
	rows  []schema.Record
	times []time.Time
}

func (b byTime) Len() int           { return len(b.rows) }
func (b byTime) Less(i, j int) bool { return b.times[i].Before(b.times[j]) }
func (b byTime) Swap(i, j int) {
	b.rows[i], b.rows[j] = b.rows[j], b.rows[i]
	b.times[i], b.times[j] = b.times[j], b.times[i]
}

func sortByTime(rows []schema.Record, times []time.Time) {
	sort.Stable(byTime{rows: rows, times: times})
}
