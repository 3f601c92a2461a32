package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"logsentry/internal/schema"
)

// CSVParser parses comma-delimited files with a header row.
type CSVParser struct {
	comma rune
}

// NewCSVParser creates a comma-delimited parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{comma: ','}
}

// Parse parses data into one record per data row, keyed by header names.
// Numeric columns are typed as numbers when every non-empty cell parses.
func (p *CSVParser) Parse(data []byte) ([]schema.Record, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = p.comma
	r.FieldsPerRecord = -1 // row width is checked against the header below

	header, err := r.Read()
	if err == io.EOF {
		return nil, newParseError(FormatCSV, 0, "no columns to parse from file", nil)
	}
	if err != nil {
		return nil, csvError(err)
	}
	header = uniqueHeader(header)

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(row) > len(header) {
			line, _ := r.FieldPos(0)
			return nil, newParseError(FormatCSV, line,
				fmt.Sprintf("expected %d fields, saw %d", len(header), len(row)), nil)
		}
		rows = append(rows, row)
	}

	numeric := numericColumns(header, rows)

	records := make([]schema.Record, 0, len(rows))
	for _, row := range rows {
		fields := make([]schema.Field, len(header))
		for i, name := range header {
			fields[i] = schema.Field{Name: name, Value: cellValue(row, i, numeric[i])}
		}
		records = append(records, schema.NewRecord(fields...))
	}
	return records, nil
}

// uniqueHeader suffixes repeated column names with .1, .2, ...
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))
	for i, name := range header {
		candidate := name
		for used[candidate] {
			counts[name]++
			candidate = name + "." + strconv.Itoa(counts[name])
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

func numericColumns(header []string, rows [][]string) []bool {
	numeric := make([]bool, len(header))
	for i := range header {
		seen := false
		numeric[i] = true
		for _, row := range rows {
			if i >= len(row) || isMissing(row[i]) {
				continue
			}
			seen = true
			if schema.NumberText(row[i]).Kind() != schema.KindNumber {
				numeric[i] = false
				break
			}
		}
		numeric[i] = numeric[i] && seen
	}
	return numeric
}

func cellValue(row []string, i int, numeric bool) schema.Value {
	if i >= len(row) || isMissing(row[i]) {
		return schema.Null()
	}
	if numeric {
		return schema.NumberText(row[i])
	}
	return schema.String(row[i])
}

// isMissing reports whether cell is null. Only the empty cell is; texts
// such as NA or None are ordinary values.
func isMissing(cell string) bool {
	return cell == ""
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return newParseError(FormatCSV, pe.Line, pe.Err.Error(), err)
	}
	return newParseError(FormatCSV, 0, err.Error(), err)
}
