// Package ingest parses raw log files into the uniform row model.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"logsentry/internal/schema"
)

var (
	// ErrUnsupportedExtension indicates a format token or file suffix
	// outside the recognized set.
	ErrUnsupportedExtension = errors.New("unsupported file type")
	// ErrMalformed indicates structurally invalid input for its format.
	ErrMalformed = errors.New("malformed input")
)

// Format is the declared input format token.
type Format string

const (
	// FormatCSV is comma-delimited tabular data with a header row.
	FormatCSV Format = "csv"
	// FormatJSON is a JSON array of objects, or JSON Lines.
	FormatJSON Format = "json"
	// FormatText is whitespace-separated "date time level message user" lines.
	FormatText Format = "text"
)

// Label returns the human-readable format label.
func (f Format) Label() string {
	switch f {
	case FormatCSV:
		return schema.LabelCSV
	case FormatJSON:
		return schema.LabelJSON
	case FormatText:
		return schema.LabelCleartext
	}
	return ""
}

// ParseFormat validates a format token.
func ParseFormat(token string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(token))); f {
	case FormatCSV, FormatJSON, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, token)
}

// FormatForFilename maps a file name suffix to its format token. A trailing
// .gz or .zst suffix is ignored.
func FormatForFilename(name string) (Format, error) {
	name = strings.ToLower(name)
	for _, suffix := range []string{".gz", ".zst"} {
		name = strings.TrimSuffix(name, suffix)
	}
	switch ext := filepath.Ext(name); ext {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".log", ".txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
}

// ParseError reports a structural failure while parsing a file.
type ParseError struct {
	Format Format
	Line   int // 1-based line number, 0 when not applicable
	Detail string
	Err    error
}

// Error returns the error message.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Format, e.Line, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Detail)
}

// Unwrap exposes ErrMalformed and the underlying decoder error, if any.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformed}
	}
	return []error{ErrMalformed, e.Err}
}

func newParseError(format Format, line int, detail string, err error) *ParseError {
	return &ParseError{Format: format, Line: line, Detail: detail, Err: err}
}

// Stats describes what a parse kept and skipped.
type Stats struct {
	Lines   int // non-blank input lines seen (text and JSON Lines)
	Records int
	Dropped int // text lines that did not split into four tokens
}

// Result is the output of a successful parse.
type Result struct {
	Records []schema.Record
	Label   string
	Stats   Stats
}

// Table returns the parsed records as a table padded to the union of
// columns.
func (r *Result) Table() *schema.Table {
	return schema.NewTable(r.Records)
}

// Parser converts files of every supported format into records.
type Parser struct {
	csv  *CSVParser
	json *JSONParser
	text *TextParser
}

// NewParser creates a Parser for all supported formats.
func NewParser() *Parser {
	return &Parser{
		csv:  NewCSVParser(),
		json: NewJSONParser(),
		text: NewTextParser(),
	}
}

// ParseFile reads the file at path and parses it as format.
// The file is only read, never modified.
func (p *Parser) ParseFile(path string, format Format) (*Result, error) {
	if format.Label() == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, string(format))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	return p.Parse(data, format)
}

// Parse parses raw file contents as format.
func (p *Parser) Parse(data []byte, format Format) (*Result, error) {
	if format.Label() == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, string(format))
	}

	data, err := decodeInput(data, format)
	if err != nil {
		return nil, err
	}

	var (
		records []schema.Record
		stats   Stats
	)
	switch format {
	case FormatCSV:
		records, err = p.csv.Parse(data)
	case FormatJSON:
		records, stats, err = p.json.Parse(data)
	case FormatText:
		records, stats = p.text.Parse(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, string(format))
	}
	if err != nil {
		return nil, err
	}

	stats.Records = len(records)
	return &Result{Records: records, Label: format.Label(), Stats: stats}, nil
}

// Parse is a convenience wrapper returning the padded table and format
// label for the file at path.
func Parse(path string, format Format) (*schema.Table, string, error) {
	res, err := NewParser().ParseFile(path, format)
	if err != nil {
		return nil, "", err
	}
	return res.Table(), res.Label, nil
}

