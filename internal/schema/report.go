package schema

import (
	"time"

	"github.com/google/uuid"
)

// Format labels reported for each supported input format.
const (
	LabelCSV       = "CSV"
	LabelJSON      = "JSON"
	LabelCleartext = "Cleartext (space-separated)"
)

// AnomalyKind distinguishes flagged records from synthesized patterns.
type AnomalyKind string

const (
	// AnomalyRecord is a single high-severity record.
	AnomalyRecord AnomalyKind = "record"
	// AnomalySequence describes a run of consecutive failures.
	AnomalySequence AnomalyKind = "sequence"
)

// Anomaly is a suspicious condition found in a table. It is created once
// during detection and never modified.
type Anomaly struct {
	ID          uuid.UUID   `json:"id" validate:"required"`
	RuleID      string      `json:"rule_id" validate:"required"`
	Kind        AnomalyKind `json:"kind" validate:"required,oneof=record sequence"`
	Severity    int         `json:"severity" validate:"min=1,max=10"`
	Identity    string      `json:"identity,omitempty"`
	Timestamps  []string    `json:"timestamps,omitempty"`
	Record      *Record     `json:"record,omitempty"`
	Description string      `json:"description" validate:"required"`
}

// String returns the display description.
func (a Anomaly) String() string { return a.Description }

// Report is the result of analyzing one file.
type Report struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	GeneratedAt time.Time `json:"generated_at" validate:"required"`
	Format      string    `json:"format" validate:"required,format_label"`
	Columns     []string  `json:"columns"`
	Rows        []Record  `json:"rows"`
	Anomalies   []Anomaly `json:"anomalies" validate:"dive"`
}

// NewReport assembles a report for a normalized table.
func NewReport(format string, table *Table, anomalies []Anomaly) *Report {
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	return &Report{
		ID:          uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Format:      format,
		Columns:     table.Columns,
		Rows:        table.Rows,
		Anomalies:   anomalies,
	}
}

// Descriptions returns the anomaly descriptions in report order.
func (r *Report) Descriptions() []string {
	out := make([]string, len(r.Anomalies))
	for i, a := range r.Anomalies {
		out[i] = a.Description
	}
	return out
}

// CountByKind returns how many anomalies of kind the report holds.
func (r *Report) CountByKind(kind AnomalyKind) int {
	n := 0
	for _, a := range r.Anomalies {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
