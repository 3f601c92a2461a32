package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"logsentry/internal/schema"
)

// TextParser parses whitespace-separated lines of the shape
// "<date> <time> <level> <message...> <user>".
//
// Lines that do not split into four tokens are dropped rather than
// failing the parse; CSV and JSON fail hard on malformed input instead.
type TextParser struct{}

// NewTextParser creates a cleartext parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse returns one record per well-formed line and counts dropped lines.
func (p *TextParser) Parse(data []byte) ([]schema.Record, Stats) {
	var (
		records []schema.Record
		stats   Stats
	)

	for _, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		stats.Lines++

		record, ok := p.ParseLine(line)
		if !ok {
			stats.Dropped++
			continue
		}
		records = append(records, record)
	}

	return records, stats
}

// ParseLine splits a trimmed line into timestamp, level, message and user.
func (p *TextParser) ParseLine(line string) (schema.Record, bool) {
	parts := splitFields(line, 4)
	if len(parts) != 4 {
		return schema.Record{}, false
	}

	message, user := splitLast(parts[3])

	return schema.NewRecord(
		schema.Field{Name: schema.FieldTimestamp, Value: schema.String(parts[0] + " " + parts[1])},
		schema.Field{Name: schema.FieldLevel, Value: schema.String(parts[2])},
		schema.Field{Name: schema.FieldMessage, Value: schema.String(message)},
		schema.Field{Name: schema.FieldUser, Value: schema.String(user)},
	), true
}

// splitFields splits s on whitespace runs into at most n tokens. The last
// token keeps its inner whitespace.
func splitFields(s string, n int) []string {
	var parts []string
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	for s != "" {
		if len(parts) == n-1 {
			parts = append(parts, strings.TrimRightFunc(s, unicode.IsSpace))
			break
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			parts = append(parts, s)
			break
		}
		parts = append(parts, s[:end])
		s = strings.TrimLeftFunc(s[end:], unicode.IsSpace)
	}
	return parts
}

// splitLast splits s at its last whitespace boundary. When s holds a single
// token, that token is both the head and the tail.
func splitLast(s string) (head, tail string) {
	i := strings.LastIndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, s
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return strings.TrimRightFunc(s[:i], unicode.IsSpace), s[i+size:]
}
