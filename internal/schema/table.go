package schema

// Table is an ordered sequence of Records sharing one column set.
type Table struct {
	Columns []string
	Rows    []Record
}

// NewTable builds a Table whose columns are the union of field names across
// records, in first-seen order. Every row is rewritten to the full column
// set in column order, with null for missing fields.
func NewTable(records []Record) *Table {
	var columns []string
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, f := range r.fields {
			if _, ok := seen[f.Name]; ok {
				continue
			}
			seen[f.Name] = struct{}{}
			columns = append(columns, f.Name)
		}
	}

	rows := make([]Record, len(records))
	for i, r := range records {
		fields := make([]Field, len(columns))
		for j, col := range columns {
			v, _ := r.Get(col)
			fields[j] = Field{Name: col, Value: v}
		}
		rows[i] = NewRecord(fields...)
	}

	return &Table{Columns: columns, Rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is part of the column set.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// HasColumns reports whether every name is part of the column set.
func (t *Table) HasColumns(names ...string) bool {
	for _, n := range names {
		if !t.HasColumn(n) {
			return false
		}
	}
	return true
}

// Dedup returns a table without rows equal in every value, keeping the first
// occurrence of each. Rows must share the column set.
func (t *Table) Dedup() (*Table, int) {
	seen := make(map[string]struct{}, len(t.Rows))
	rows := make([]Record, 0, len(t.Rows))
	for _, r := range t.Rows {
		k := r.rowKey()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		rows = append(rows, r)
	}
	columns := make([]string, len(t.Columns))
	copy(columns, t.Columns)
	return &Table{Columns: columns, Rows: rows}, len(t.Rows) - len(rows)
}
